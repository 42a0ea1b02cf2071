package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/pagehost/pagehost/pkg/provider"
)

// EnsureBucket creates the configured bucket if it does not exist yet.
// Regions other than us-east-1 require an explicit location constraint on
// CreateBucket; us-east-1 rejects one.
func (p *Provider) EnsureBucket(ctx context.Context) (bool, error) {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err == nil {
		return false, nil
	}

	wrapped := p.wrapError("HeadBucket", "", err)
	// HeadBucket reports a missing bucket as a plain 404.
	if !provider.IsNotFound(wrapped) && !provider.IsBucketNotFound(wrapped) {
		return false, wrapped
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(p.bucket)}
	if p.region != "" && p.region != DefaultAWSRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(p.region),
		}
	}

	if _, err := p.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			// Lost a race with ourselves; the bucket is usable.
			return false, nil
		}
		return false, p.wrapError("CreateBucket", "", err)
	}
	return true, nil
}

// CallerUsername resolves the IAM user name or assumed-role session name
// behind the active credentials, via STS GetCallerIdentity. It is the seed
// for the default per-user bucket name and needs no bucket to exist, so the
// config's Bucket field may be empty.
func CallerUsername(ctx context.Context, cfg Config) (string, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}

	var stsOpts []func(*sts.Options)
	if cfg.Endpoint != "" {
		stsOpts = append(stsOpts, func(o *sts.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	output, err := sts.NewFromConfig(awsCfg, stsOpts...).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("sts get-caller-identity: %w", err)
	}

	// arn:aws:iam::123456789012:user/alice -> alice
	// arn:aws:sts::123456789012:assumed-role/deploy/session -> session
	arn := aws.ToString(output.Arn)
	parts := strings.Split(arn, "/")
	name := parts[len(parts)-1]
	if name == "" {
		return "", fmt.Errorf("cannot derive username from arn %q", arn)
	}
	return name, nil
}
