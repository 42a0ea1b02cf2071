package s3

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pagehost/pagehost/pkg/provider"
)

// PresignGetObject mints a time-limited URL for a direct object read. Used
// by the presigned link mode, where the store checks the signature instead
// of a token.
func (p *Provider) PresignGetObject(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := p.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", p.wrapError("PresignGetObject", key, err)
	}
	return req.URL, nil
}

// PresignPostObject mints a browser upload form for a single object. The
// signed policy caps the payload at maxBytes, so a leaked form cannot be
// used to store arbitrarily large bodies.
func (p *Provider) PresignPostObject(ctx context.Context, key string, expires time.Duration, maxBytes int64) (*provider.PresignedPost, error) {
	req, err := p.presigner.PresignPostObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignPostOptions) {
		opts.Expires = expires
		opts.Conditions = []interface{}{
			[]interface{}{"content-length-range", 0, maxBytes},
		}
	})
	if err != nil {
		return nil, p.wrapError("PresignPostObject", key, err)
	}
	return &provider.PresignedPost{URL: req.URL, Fields: req.Values}, nil
}
