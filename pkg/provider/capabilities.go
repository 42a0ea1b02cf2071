package provider

import (
	"context"
	"io"
	"time"
)

// Optional provider capability interfaces.
//
// These interfaces are used for feature detection (type assertions). The core
// Provider interface remains intentionally small; publishing, tagging, and
// policy deployment each negotiate the capabilities they need.

// ObjectPutter can create/overwrite objects.
type ObjectPutter interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts PutOptions) error
}

// ObjectDeleter can delete objects.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}

// ObjectGetter can download objects as a stream. The returned metadata comes
// from the same response as the body, so no separate Head round trip is
// needed to serve it.
type ObjectGetter interface {
	GetObject(ctx context.Context, key string) (body io.ReadCloser, meta *ObjectMeta, err error)
}

// ObjectTagger can read and replace the tag set of an object. Tags are the
// switch consulted by bucket policies, distinct from user metadata.
type ObjectTagger interface {
	PutObjectTagging(ctx context.Context, key string, tags map[string]string) error
	GetObjectTagging(ctx context.Context, key string) (map[string]string, error)
}

// BucketPolicySetter can deploy and read the bucket-wide access policy
// document.
type BucketPolicySetter interface {
	PutBucketPolicy(ctx context.Context, policyJSON string) error
	GetBucketPolicy(ctx context.Context) (string, error)
}

// BucketEnsurer can create the configured bucket when it does not exist yet.
// EnsureBucket reports whether it created the bucket.
type BucketEnsurer interface {
	EnsureBucket(ctx context.Context) (created bool, err error)
}

// Presigner can mint time-limited URLs for direct object reads without
// exposing credentials.
type Presigner interface {
	PresignGetObject(ctx context.Context, key string, expires time.Duration) (url string, err error)
}

// PresignedPost is a signed HTML form target for a browser-side object write.
// Fields must be submitted verbatim alongside the file part.
type PresignedPost struct {
	URL    string
	Fields map[string]string
}

// PostPresigner can mint time-limited browser upload forms. The maxBytes
// limit is enforced by the signed policy, not by the client.
type PostPresigner interface {
	PresignPostObject(ctx context.Context, key string, expires time.Duration, maxBytes int64) (*PresignedPost, error)
}

// MultipartUploader can create and abort multipart uploads.
//
// This provides a low-side-effect write probe when supported.
type MultipartUploader interface {
	CreateMultipartUpload(ctx context.Context, key string) (uploadID string, err error)
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
}
