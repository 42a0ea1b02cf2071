//go:build cloudintegration

package publish_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagehost/pagehost/pkg/access"
	"github.com/pagehost/pagehost/pkg/keys"
	"github.com/pagehost/pagehost/pkg/page"
	providers3 "github.com/pagehost/pagehost/pkg/provider/s3"
	"github.com/pagehost/pagehost/pkg/publish"
	"github.com/pagehost/pagehost/test/cloudtest"
)

func newCloudStore(t *testing.T, ctx context.Context, bucket string) *providers3.Provider {
	t.Helper()
	p, err := providers3.New(ctx, providers3.Config{
		Bucket:          bucket,
		Endpoint:        cloudtest.Endpoint,
		Region:          cloudtest.Region,
		AccessKeyID:     cloudtest.TestAccessKeyID,
		SecretAccessKey: cloudtest.TestSecretAccessKey,
		ForcePathStyle:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPublish_EndToEnd(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	store := newCloudStore(t, ctx, bucket)

	src := filepath.Join(t.TempDir(), "e2e.html")
	require.NoError(t, os.WriteFile(src, []byte(docWithHead), 0o644))

	pub := publish.New(store, nil, "job-e2e", publish.Config{
		URL: publish.URLBuilder{Endpoint: cloudtest.Endpoint, Bucket: bucket},
	})
	rec, err := pub.Publish(ctx, publish.Request{Path: src})
	require.NoError(t, err)

	assert.Regexp(t, `^[A-Za-z0-9_-]{22}-e2e$`, rec.Key)
	assert.Regexp(t, `/[A-Za-z0-9_-]{22}-e2e\?token=[A-Za-z0-9_-]{43}$`, rec.URL)
	require.Len(t, rec.DatastoreID, keys.DatastoreIDLen)

	// The page went up with the datastore block injected.
	body := cloudtest.GetObjectBody(t, ctx, bucket, rec.Key)
	assert.Contains(t, string(body), page.Marker)
	assert.Contains(t, string(body), rec.DatastoreID)

	// The empty datastore object exists alongside it.
	ds := cloudtest.GetObjectBody(t, ctx, bucket, rec.DatastoreID+".json")
	assert.Equal(t, "{}", string(ds))

	// Policy metadata and cache headers round-trip through S3.
	client := cloudtest.ClientT(t)
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(rec.Key),
	})
	require.NoError(t, err)
	assert.Equal(t, "text/html", aws.ToString(head.ContentType))
	assert.Equal(t, "max-age=31536000, public", aws.ToString(head.CacheControl))
	assert.Equal(t, "token-guarded", head.Metadata[access.MetaVisibility])
	assert.Equal(t, access.DigestToken(rec.Token), head.Metadata[access.MetaTokenDigest])
	assert.Equal(t, "job-e2e", head.Metadata[publish.MetaUploadID])
}

func TestPublish_PublicFlow(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	store := newCloudStore(t, ctx, bucket)

	require.NoError(t, publish.EnsurePolicy(ctx, store, bucket))

	src := filepath.Join(t.TempDir(), "open.html")
	require.NoError(t, os.WriteFile(src, []byte(docWithHead), 0o644))

	pub := publish.New(store, nil, "", publish.Config{
		URL: publish.URLBuilder{Endpoint: cloudtest.Endpoint, Bucket: bucket},
	})
	rec, err := pub.Publish(ctx, publish.Request{Path: src, Visibility: access.VisibilityPublic})
	require.NoError(t, err)

	assert.Empty(t, rec.Token)
	assert.Equal(t, access.PublicTag(), cloudtest.ObjectTags(t, ctx, bucket, rec.Key))

	policy, err := store.GetBucketPolicy(ctx)
	require.NoError(t, err)
	assert.Contains(t, policy, access.TagVisibility)
}
