package s3

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// PutObjectTagging replaces the tag set of an object. Tags drive the bucket
// policy's public-read condition, so tagging an object is what actually
// exposes it.
func (p *Provider) PutObjectTagging(ctx context.Context, key string, tags map[string]string) error {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		set = append(set, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}

	_, err := p.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(p.bucket),
		Key:     aws.String(key),
		Tagging: &types.Tagging{TagSet: set},
	})
	if err != nil {
		return p.wrapError("PutObjectTagging", key, err)
	}
	return nil
}

// GetObjectTagging returns the tag set of an object.
func (p *Provider) GetObjectTagging(ctx context.Context, key string) (map[string]string, error) {
	output, err := p.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, p.wrapError("GetObjectTagging", key, err)
	}

	tags := make(map[string]string, len(output.TagSet))
	for _, tag := range output.TagSet {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return tags, nil
}

// PutBucketPolicy deploys the bucket-wide policy document.
func (p *Provider) PutBucketPolicy(ctx context.Context, policyJSON string) error {
	_, err := p.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(p.bucket),
		Policy: aws.String(policyJSON),
	})
	if err != nil {
		return p.wrapError("PutBucketPolicy", "", err)
	}
	return nil
}

// GetBucketPolicy returns the current bucket policy document.
// Returns ErrNoBucketPolicy when none has been deployed yet.
func (p *Provider) GetBucketPolicy(ctx context.Context) (string, error) {
	output, err := p.client.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{
		Bucket: aws.String(p.bucket),
	})
	if err != nil {
		return "", p.wrapError("GetBucketPolicy", "", err)
	}
	return aws.ToString(output.Policy), nil
}
