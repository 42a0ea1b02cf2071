package publish

import (
	"net/url"
	"strings"
)

// DefaultRegion is assumed when the store region is not configured.
const DefaultRegion = "us-east-1"

// URLBuilder renders the stable share URL for an object key.
//
// Resolution order: BaseURL when set (CDN or custom domain in front of the
// bucket), then Endpoint for S3-compatible stores (always path-style), then
// the AWS endpoint for the bucket's region, virtual-hosted unless PathStyle
// is set.
type URLBuilder struct {
	// BaseURL overrides all endpoint derivation when set.
	BaseURL string

	// Endpoint is a custom S3-compatible endpoint, scheme included.
	Endpoint string

	// Bucket is the target bucket name.
	Bucket string

	// Region is the bucket's AWS region. Empty means DefaultRegion.
	Region string

	// PathStyle forces path-style addressing on the AWS endpoint.
	PathStyle bool
}

// PageURL returns the URL a reader uses to fetch the object. Guarded pages
// carry their access token in the token query parameter; pass an empty token
// for public pages.
func (b URLBuilder) PageURL(key, token string) string {
	u := b.base() + "/" + escapeKey(key)
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

func (b URLBuilder) base() string {
	if b.BaseURL != "" {
		return strings.TrimRight(b.BaseURL, "/")
	}
	if b.Endpoint != "" {
		return strings.TrimRight(b.Endpoint, "/") + "/" + b.Bucket
	}
	region := b.Region
	if region == "" {
		region = DefaultRegion
	}
	if b.PathStyle {
		return "https://s3." + region + ".amazonaws.com/" + b.Bucket
	}
	return "https://" + b.Bucket + ".s3." + region + ".amazonaws.com"
}

// escapeKey escapes each key segment while keeping the separators literal.
func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
