// Package file implements the provider interface over a local directory.
//
// Keys are treated as relative paths under BaseDir. Serving headers, policy
// metadata, object tags, and the bucket policy document are persisted under
// a reserved .pagehost directory, so publishing and serving behave the same
// way they do against a real object store. Presigned URLs are the one
// capability a plain filesystem cannot offer.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pagehost/pagehost/pkg/provider"
)

// metaDir is the reserved directory holding sidecar state. Keys may not
// begin with it.
const metaDir = ".pagehost"

// Provider implements provider.Provider for local filesystem paths.
type Provider struct {
	baseDir string
}

// Ensure Provider implements provider capability interfaces.
var (
	_ provider.Provider           = (*Provider)(nil)
	_ provider.ObjectGetter       = (*Provider)(nil)
	_ provider.ObjectPutter       = (*Provider)(nil)
	_ provider.ObjectDeleter      = (*Provider)(nil)
	_ provider.ObjectTagger       = (*Provider)(nil)
	_ provider.BucketPolicySetter = (*Provider)(nil)
	_ provider.BucketEnsurer      = (*Provider)(nil)
)

type Config struct {
	BaseDir string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	return nil
}

func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := filepath.Clean(cfg.BaseDir)
	return &Provider{baseDir: base}, nil
}

func (p *Provider) Close() error { return nil }

// sidecar is the per-object state an object store would keep outside the
// body: serving headers, user metadata, and tags.
type sidecar struct {
	ContentType  string            `json:"content_type,omitempty"`
	CacheControl string            `json:"cache_control,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	_ = ctx
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	prefix := strings.TrimPrefix(opts.Prefix, "/")
	keys, err := p.collectKeys(prefix)
	if err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}
	sort.Strings(keys)

	start := 0
	if opts.ContinuationToken != "" {
		// Start strictly after the last returned key.
		idx := sort.SearchStrings(keys, opts.ContinuationToken)
		for idx < len(keys) && keys[idx] <= opts.ContinuationToken {
			idx++
		}
		start = idx
	}

	end := start + maxKeys
	if end > len(keys) {
		end = len(keys)
	}

	objects := make([]provider.ObjectSummary, 0, end-start)
	for _, k := range keys[start:end] {
		full, err := p.fullPath(k)
		if err != nil {
			continue
		}
		st, err := os.Stat(full)
		if err != nil || st.IsDir() {
			continue
		}
		objects = append(objects, provider.ObjectSummary{Key: k, Size: st.Size(), LastModified: st.ModTime()})
	}

	res := &provider.ListResult{Objects: objects}
	if end < len(keys) {
		res.IsTruncated = true
		res.ContinuationToken = keys[end-1]
	}
	return res, nil
}

func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	_ = ctx
	full, err := p.fullPath(key)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	st, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &provider.ProviderError{Op: "Head", Provider: provider.ProviderFile, Key: key, Err: provider.ErrNotFound}
		}
		return nil, p.wrapError("Head", key, err)
	}
	if st.IsDir() {
		return nil, &provider.ProviderError{Op: "Head", Provider: provider.ProviderFile, Key: key, Err: provider.ErrNotFound}
	}

	meta := &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{Key: strings.TrimPrefix(key, "/"), Size: st.Size(), LastModified: st.ModTime()},
	}
	if sc, err := p.readSidecar(key); err == nil && sc != nil {
		meta.ContentType = sc.ContentType
		meta.CacheControl = sc.CacheControl
		meta.Metadata = sc.Metadata
	}
	return meta, nil
}

func (p *Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, *provider.ObjectMeta, error) {
	meta, err := p.Head(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	full, err := p.fullPath(key)
	if err != nil {
		return nil, nil, p.wrapError("GetObject", key, err)
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, &provider.ProviderError{Op: "GetObject", Provider: provider.ProviderFile, Key: key, Err: provider.ErrNotFound}
		}
		return nil, nil, p.wrapError("GetObject", key, err)
	}
	return f, meta, nil
}

func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts provider.PutOptions) error {
	_ = ctx
	_ = contentLength
	full, err := p.fullPath(key)
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return p.wrapError("PutObject", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), "pagehost-put-*")
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := tmp.Close(); err != nil {
		return p.wrapError("PutObject", key, err)
	}

	if err := os.Rename(tmpName, full); err != nil {
		return p.wrapError("PutObject", key, err)
	}

	sc := &sidecar{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		Metadata:     opts.Metadata,
	}
	if prev, err := p.readSidecar(key); err == nil && prev != nil {
		// Overwriting a body replaces headers and metadata but, like S3
		// PutObject, leaves the tag set alone.
		sc.Tags = prev.Tags
	}
	if err := p.writeSidecar(key, sc); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	_ = ctx
	full, err := p.fullPath(key)
	if err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return p.wrapError("DeleteObject", key, err)
	}
	_ = os.Remove(p.sidecarPath(key))
	return nil
}

// PutObjectTagging replaces the tag set of an existing object.
func (p *Provider) PutObjectTagging(ctx context.Context, key string, tags map[string]string) error {
	if _, err := p.Head(ctx, key); err != nil {
		return err
	}
	sc, err := p.readSidecar(key)
	if err != nil {
		return p.wrapError("PutObjectTagging", key, err)
	}
	if sc == nil {
		sc = &sidecar{}
	}
	sc.Tags = tags
	if err := p.writeSidecar(key, sc); err != nil {
		return p.wrapError("PutObjectTagging", key, err)
	}
	return nil
}

// GetObjectTagging returns the tag set of an existing object.
func (p *Provider) GetObjectTagging(ctx context.Context, key string) (map[string]string, error) {
	if _, err := p.Head(ctx, key); err != nil {
		return nil, err
	}
	sc, err := p.readSidecar(key)
	if err != nil {
		return nil, p.wrapError("GetObjectTagging", key, err)
	}
	if sc == nil || sc.Tags == nil {
		return map[string]string{}, nil
	}
	return sc.Tags, nil
}

// PutBucketPolicy stores the policy document for inspection. The filesystem
// enforces nothing; the stored document is what `policy show` reports.
func (p *Provider) PutBucketPolicy(ctx context.Context, policyJSON string) error {
	_ = ctx
	if err := p.writeFileAtomic(p.policyPath(), []byte(policyJSON)); err != nil {
		return p.wrapError("PutBucketPolicy", "", err)
	}
	return nil
}

// GetBucketPolicy returns the stored policy document.
func (p *Provider) GetBucketPolicy(ctx context.Context) (string, error) {
	_ = ctx
	raw, err := os.ReadFile(p.policyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", &provider.ProviderError{Op: "GetBucketPolicy", Provider: provider.ProviderFile, Err: provider.ErrNoBucketPolicy}
		}
		return "", p.wrapError("GetBucketPolicy", "", err)
	}
	return string(raw), nil
}

// EnsureBucket creates the base directory if it does not exist yet.
func (p *Provider) EnsureBucket(ctx context.Context) (bool, error) {
	_ = ctx
	if st, err := os.Stat(p.baseDir); err == nil {
		if !st.IsDir() {
			return false, p.wrapError("EnsureBucket", "", fmt.Errorf("%s exists and is not a directory", p.baseDir))
		}
		return false, nil
	}
	if err := os.MkdirAll(p.baseDir, 0o755); err != nil {
		return false, p.wrapError("EnsureBucket", "", err)
	}
	return true, nil
}

func (p *Provider) fullPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "/")
	// Prevent path traversal.
	clean := filepath.Clean("/" + key)
	clean = strings.TrimPrefix(clean, "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key path")
	}
	// The sidecar directory is not addressable as an object.
	if clean == metaDir || strings.HasPrefix(clean, metaDir+"/") {
		return "", fmt.Errorf("invalid key path")
	}
	return filepath.Join(p.baseDir, filepath.FromSlash(clean)), nil
}

func (p *Provider) sidecarPath(key string) string {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	return filepath.Join(p.baseDir, metaDir, "meta", filepath.FromSlash(key)+".json")
}

func (p *Provider) policyPath() string {
	return filepath.Join(p.baseDir, metaDir, "policy.json")
}

func (p *Provider) readSidecar(key string) (*sidecar, error) {
	raw, err := os.ReadFile(p.sidecarPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("decode sidecar for %s: %w", key, err)
	}
	return &sc, nil
}

func (p *Provider) writeSidecar(key string, sc *sidecar) error {
	raw, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	return p.writeFileAtomic(p.sidecarPath(key), raw)
}

func (p *Provider) writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "pagehost-meta-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (p *Provider) collectKeys(prefix string) ([]string, error) {
	if _, err := os.Stat(p.baseDir); err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	// Object store prefixes are string prefixes, not directories, so walk
	// everything and filter.
	var keys []string
	_ = filepath.WalkDir(p.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(p.baseDir, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == metaDir {
				return fs.SkipDir
			}
			return nil
		}
		if prefix == "" || strings.HasPrefix(rel, prefix) {
			keys = append(keys, rel)
		}
		return nil
	})
	return keys, nil
}

func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Key: key, Err: err}
	if err == nil {
		wrapped.Err = fmt.Errorf("unknown error")
	}
	// Normalize common filesystem errors to provider sentinels.
	if os.IsNotExist(err) {
		wrapped.Err = provider.ErrNotFound
	}
	if os.IsPermission(err) {
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}
