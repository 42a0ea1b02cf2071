package access

import (
	"encoding/json"
	"fmt"
)

// TagVisibility is the object tag consulted by the bucket policy. Only the
// uploader writes it; the policy makes it the single switch that exposes an
// object to anonymous reads.
const TagVisibility = "pagehost-visibility"

// PolicyVersion is the IAM policy language version used in rendered
// documents.
const PolicyVersion = "2012-10-17"

type bucketPolicy struct {
	Version   string      `json:"Version"`
	Statement []statement `json:"Statement"`
}

type statement struct {
	Sid       string                       `json:"Sid"`
	Effect    string                       `json:"Effect"`
	Principal string                       `json:"Principal"`
	Action    string                       `json:"Action"`
	Resource  string                       `json:"Resource"`
	Condition map[string]map[string]string `json:"Condition,omitempty"`
}

// BucketPolicyJSON renders the bucket policy that serves public pages
// straight from the store: anonymous s3:GetObject is allowed only for
// objects tagged pagehost-visibility=public. Guarded objects carry no such
// tag and stay private, reachable only through the token gate or a
// presigned URL. The document is static per bucket and deploys once.
func BucketPolicyJSON(bucket string) (string, error) {
	if bucket == "" {
		return "", fmt.Errorf("bucket name required")
	}
	doc := bucketPolicy{
		Version: PolicyVersion,
		Statement: []statement{
			{
				Sid:       "PagehostPublicRead",
				Effect:    "Allow",
				Principal: "*",
				Action:    "s3:GetObject",
				Resource:  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
				Condition: map[string]map[string]string{
					"StringEquals": {
						"s3:ExistingObjectTag/" + TagVisibility: VisibilityPublic.String(),
					},
				},
			},
		},
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal bucket policy: %w", err)
	}
	return string(raw), nil
}

// PublicTag returns the object tags marking an object public. Guarded
// objects get no tags at all.
func PublicTag() map[string]string {
	return map[string]string{TagVisibility: VisibilityPublic.String()}
}
