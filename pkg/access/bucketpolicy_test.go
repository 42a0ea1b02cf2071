package access

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketPolicyJSON(t *testing.T) {
	raw, err := BucketPolicyJSON("alice-pagehost")
	require.NoError(t, err)

	var doc struct {
		Version   string `json:"Version"`
		Statement []struct {
			Sid       string                       `json:"Sid"`
			Effect    string                       `json:"Effect"`
			Principal string                       `json:"Principal"`
			Action    string                       `json:"Action"`
			Resource  string                       `json:"Resource"`
			Condition map[string]map[string]string `json:"Condition"`
		} `json:"Statement"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, PolicyVersion, doc.Version)
	require.Len(t, doc.Statement, 1)

	st := doc.Statement[0]
	assert.Equal(t, "Allow", st.Effect)
	assert.Equal(t, "*", st.Principal)
	assert.Equal(t, "s3:GetObject", st.Action)
	assert.Equal(t, "arn:aws:s3:::alice-pagehost/*", st.Resource)
	assert.Equal(t, "public", st.Condition["StringEquals"]["s3:ExistingObjectTag/pagehost-visibility"])
}

func TestBucketPolicyJSONRequiresBucket(t *testing.T) {
	_, err := BucketPolicyJSON("")
	assert.Error(t, err)
}

func TestPublicTag(t *testing.T) {
	assert.Equal(t, map[string]string{"pagehost-visibility": "public"}, PublicTag())
}
