// Package publish turns local HTML documents and notebooks into shareable
// pages on the object store.
//
// A publish run prepares each document (notebook export, datastore
// injection), derives a fresh object key, uploads the page with its access
// policy in metadata, and reports a receipt per file plus a run summary.
// Files are independent: one failure never aborts the rest of the run.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pagehost/pagehost/pkg/access"
	"github.com/pagehost/pagehost/pkg/keys"
	"github.com/pagehost/pagehost/pkg/notebook"
	"github.com/pagehost/pagehost/pkg/output"
	"github.com/pagehost/pagehost/pkg/page"
	"github.com/pagehost/pagehost/pkg/provider"
	"github.com/pagehost/pagehost/pkg/sniff"
)

const (
	// DefaultLinkTTL is how long presigned page links and datastore grants
	// stay valid when no duration is configured.
	DefaultLinkTTL = 7 * 24 * time.Hour

	// MaxLinkTTL is the SigV4 ceiling on presigned URL lifetime. Longer
	// requests are clamped, never rejected.
	MaxLinkTTL = 7 * 24 * time.Hour

	// pageCacheControl is stored on every published page. Every upload gets
	// a fresh random key, so the content behind a URL never changes.
	pageCacheControl = "max-age=31536000, public"
)

// Metadata keys recorded on uploads alongside the access policy.
const (
	MetaOriginalFilename = "pagehost-original-filename"
	MetaUploadID         = "pagehost-upload-id"
)

// ErrUnsupportedType reports a file that is neither an HTML document nor a
// notebook.
var ErrUnsupportedType = errors.New("unsupported file type")

// ErrNotHTML reports an .html input whose content does not probe as an
// HTML document.
var ErrNotHTML = errors.New("not detected as text/html")

// Request is one file to publish.
type Request struct {
	// Path is the local file, already expanded and known to exist.
	Path string

	// Visibility is the access mode for the page. Empty means
	// token-guarded.
	Visibility access.Visibility

	// Prefix is prepended to the derived object key, "/"-separated.
	Prefix string

	// ResetDatastore discards the page's existing datastore binding and
	// mints a fresh one.
	ResetDatastore bool

	// Presign swaps the stable share URL for a presigned, expiring one.
	Presign bool
}

// Receipt describes one published page.
type Receipt struct {
	Path        string
	Key         string
	URL         string
	Token       string
	DatastoreID string
	ContentType string
	Bytes       int64
	Visibility  access.Visibility

	// Expires is set only for presigned URLs.
	Expires *time.Time
}

// Result pairs a request with its outcome. Exactly one of Receipt and Err
// is set.
type Result struct {
	Path    string
	Receipt *Receipt
	Err     error
}

// Summary contains aggregate statistics from a completed publish run.
type Summary struct {
	// Published is the number of files uploaded successfully.
	Published int64

	// Failed is the number of files that could not be published.
	Failed int64

	// BytesTotal is the cumulative size of uploaded pages in bytes.
	BytesTotal int64

	// Duration is the total time spent publishing.
	Duration time.Duration
}

// Config configures publisher behavior.
type Config struct {
	// Concurrency is the number of files published in parallel.
	// Default: 4
	Concurrency int

	// RateLimit is the maximum files per second handed to the store.
	// Zero means unlimited (the store handles its own throttling).
	// Default: 0
	RateLimit float64

	// LinkTTL bounds presigned URLs and datastore grants. Zero means
	// DefaultLinkTTL; values above MaxLinkTTL are clamped.
	LinkTTL time.Duration

	// Converter runs notebook exports. The zero value shells out to
	// jupyter nbconvert with the default template.
	Converter notebook.Converter

	// URL renders share URLs for uploaded keys.
	URL URLBuilder
}

// DefaultConfig returns the default publisher configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		RateLimit:   0,
	}
}

// datastoreCapable is the store capability bundle datastore injection
// needs. Stores lacking it publish pages untouched.
type datastoreCapable interface {
	provider.ObjectPutter
	provider.Presigner
	provider.PostPresigner
}

// Publisher executes a publish run against an object store.
//
// Publisher is safe for single use only. Create a new Publisher for each
// run.
type Publisher struct {
	store  provider.Provider
	writer output.Writer
	config Config
	jobID  string

	// Rate limiter (nil if unlimited)
	limiter *rate.Limiter

	// Atomic counters for stats
	published  atomic.Int64
	failed     atomic.Int64
	bytesTotal atomic.Int64
}

// New creates a new publisher.
//
// The writer may be nil when the caller consumes Results directly instead
// of streaming JSONL. An empty jobID gets a fresh UUID; the jobID is also
// stamped on every uploaded object's metadata.
func New(store provider.Provider, w output.Writer, jobID string, cfg Config) *Publisher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}

	p := &Publisher{
		store:  store,
		writer: w,
		config: cfg,
		jobID:  jobID,
	}

	if cfg.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return p
}

// Run publishes all requests and returns per-file results in request order
// plus summary statistics.
//
// Run blocks until every file is handled or the context is cancelled.
// Cancellation is graceful: in-flight uploads finish through the provider's
// own context handling, files never handed to a worker fail with the
// context's error, and a partial summary is returned alongside it.
func (p *Publisher) Run(ctx context.Context, reqs []Request) ([]Result, *Summary, error) {
	startTime := time.Now()
	results := make([]Result, len(reqs))

	workers := p.config.Concurrency
	if workers > len(reqs) {
		workers = len(reqs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = p.publishOne(ctx, reqs[idx])
			}
		}()
	}

feed:
	for i := range reqs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	// Slots never handed to a worker carry an empty Path.
	for i := range results {
		if results[i].Path == "" && results[i].Err == nil {
			results[i] = Result{Path: reqs[i].Path, Err: ctx.Err()}
			p.failed.Add(1)
			p.writeError(ctx, reqs[i].Path, ctx.Err())
		}
	}

	summary := &Summary{
		Published:  p.published.Load(),
		Failed:     p.failed.Load(),
		BytesTotal: p.bytesTotal.Load(),
		Duration:   time.Since(startTime),
	}
	p.writeSummary(ctx, summary)

	return results, summary, ctx.Err()
}

func (p *Publisher) publishOne(ctx context.Context, req Request) Result {
	receipt, err := p.Publish(ctx, req)
	if err != nil {
		p.failed.Add(1)
		p.writeError(ctx, req.Path, err)
		return Result{Path: req.Path, Err: err}
	}

	p.published.Add(1)
	p.bytesTotal.Add(receipt.Bytes)
	p.writeShare(ctx, receipt)
	return Result{Path: req.Path, Receipt: receipt}
}

// Publish uploads a single file and returns its receipt.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Receipt, error) {
	if err := p.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	vis := req.Visibility
	if vis == "" {
		vis = access.VisibilityTokenGuarded
	}

	prep, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	derived, err := keys.DeriveKey(prep.name)
	if err != nil {
		return nil, err
	}
	key := joinKey(req.Prefix, derived)

	var token string
	if vis == access.VisibilityTokenGuarded {
		if token, err = keys.NewToken(); err != nil {
			return nil, err
		}
	}
	policy, err := access.NewPolicy(vis, token)
	if err != nil {
		return nil, err
	}

	putter, ok := p.store.(provider.ObjectPutter)
	if !ok {
		return nil, fmt.Errorf("store does not support uploads: %w", provider.ErrNotSupported)
	}

	meta := policy.Metadata()
	meta[MetaOriginalFilename] = filepath.Base(req.Path)
	meta[MetaUploadID] = p.jobID

	err = putter.PutObject(ctx, key, bytes.NewReader(prep.doc), int64(len(prep.doc)), provider.PutOptions{
		ContentType:  prep.contentType,
		CacheControl: pageCacheControl,
		Metadata:     meta,
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", req.Path, err)
	}

	if vis == access.VisibilityPublic {
		// The tag is what the bucket policy keys anonymous reads on. An
		// untagged public page stays reachable through the gate only.
		tagger, ok := p.store.(provider.ObjectTagger)
		if !ok {
			return nil, fmt.Errorf("store does not support object tagging, required for public pages: %w", provider.ErrNotSupported)
		}
		if err := tagger.PutObjectTagging(ctx, key, access.PublicTag()); err != nil {
			return nil, fmt.Errorf("tag %s public: %w", key, err)
		}
	}

	receipt := &Receipt{
		Path:        req.Path,
		Key:         key,
		Token:       token,
		DatastoreID: prep.datastoreID,
		ContentType: prep.contentType,
		Bytes:       int64(len(prep.doc)),
		Visibility:  vis,
	}

	if req.Presign {
		signer, ok := p.store.(provider.Presigner)
		if !ok {
			return nil, fmt.Errorf("store does not support presigned URLs: %w", provider.ErrNotSupported)
		}
		signed, err := signer.PresignGetObject(ctx, key, p.linkTTL())
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", key, err)
		}
		expires := time.Now().Add(p.linkTTL())
		receipt.URL = signed
		receipt.Expires = &expires
	} else {
		receipt.URL = p.config.URL.PageURL(key, token)
	}

	return receipt, nil
}

// prepared is a document ready for upload.
type prepared struct {
	doc         []byte
	name        string // file name the key stem derives from
	contentType string
	datastoreID string
}

func (p *Publisher) prepare(ctx context.Context, req Request) (*prepared, error) {
	switch strings.ToLower(filepath.Ext(req.Path)) {
	case ".html", ".htm":
		return p.prepareHTML(ctx, req)
	case ".ipynb":
		return p.prepareNotebook(ctx, req)
	default:
		return nil, fmt.Errorf("%s: %w (want .html, .htm, or .ipynb)", req.Path, ErrUnsupportedType)
	}
}

func (p *Publisher) prepareHTML(ctx context.Context, req Request) (*prepared, error) {
	doc, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, err
	}
	if !sniff.ContentIsHTML(doc) {
		return nil, fmt.Errorf("%s: %w", req.Path, ErrNotHTML)
	}

	name := filepath.Base(req.Path)
	prep := &prepared{name: name, contentType: sniff.TypeForBytes(name, doc)}

	ds, ok := p.store.(datastoreCapable)
	if !ok {
		// The store cannot sign datastore grants; publish the page as-is.
		prep.doc = doc
		return prep, nil
	}

	id, found := page.ExtractID(doc)
	if req.ResetDatastore || !found {
		id = keys.NewDatastoreID()
	}

	dsKey := joinKey(req.Prefix, id+".json")
	if err := p.ensureDatastore(ctx, ds, dsKey); err != nil {
		return nil, err
	}

	getURL, err := ds.PresignGetObject(ctx, dsKey, p.linkTTL())
	if err != nil {
		return nil, fmt.Errorf("presign datastore read %s: %w", dsKey, err)
	}
	post, err := ds.PresignPostObject(ctx, dsKey, p.linkTTL(), page.MaxDatastoreBytes)
	if err != nil {
		return nil, fmt.Errorf("presign datastore write %s: %w", dsKey, err)
	}

	injected, err := page.Inject(doc, page.Datastore{
		ID:     id,
		GetURL: getURL,
		Post:   page.PostPolicy{URL: post.URL, Fields: post.Fields},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Path, err)
	}

	// Write the bound document back so the page keeps its datastore across
	// republishes.
	if err := rewriteFile(req.Path, injected); err != nil {
		return nil, err
	}

	prep.doc = injected
	prep.datastoreID = id
	return prep, nil
}

func (p *Publisher) prepareNotebook(ctx context.Context, req Request) (*prepared, error) {
	tmp, err := os.MkdirTemp("", "pagehost-convert-")
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", req.Path, err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	htmlPath, err := p.config.Converter.Convert(ctx, req.Path, tmp)
	if err != nil {
		return nil, err
	}
	doc, err := os.ReadFile(htmlPath)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", req.Path, err)
	}

	// Exported notebooks are published as rendered; no datastore is
	// injected into them.
	name := filepath.Base(htmlPath)
	return &prepared{doc: doc, name: name, contentType: sniff.TypeForBytes(name, doc)}, nil
}

// ensureDatastore creates the page's datastore object on first publish.
// Existing datastores are left alone so stored state survives republishes.
func (p *Publisher) ensureDatastore(ctx context.Context, ds datastoreCapable, key string) error {
	_, err := p.store.Head(ctx, key)
	if err == nil {
		return nil
	}
	if !provider.IsNotFound(err) {
		return fmt.Errorf("head datastore %s: %w", key, err)
	}
	err = ds.PutObject(ctx, key, strings.NewReader("{}"), 2, provider.PutOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("create datastore %s: %w", key, err)
	}
	return nil
}

// rewriteFile replaces a local file's content, keeping its permissions.
func rewriteFile(path string, doc []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, doc, info.Mode().Perm()); err != nil {
		return fmt.Errorf("rewrite %s: %w", path, err)
	}
	return nil
}

// EnsurePolicy deploys the tag-scoped public read policy to the store's
// bucket. Publishing public pages without it leaves them reachable through
// the gate only.
func EnsurePolicy(ctx context.Context, store provider.Provider, bucket string) error {
	setter, ok := store.(provider.BucketPolicySetter)
	if !ok {
		return fmt.Errorf("store does not support bucket policies: %w", provider.ErrNotSupported)
	}
	doc, err := access.BucketPolicyJSON(bucket)
	if err != nil {
		return err
	}
	if err := setter.PutBucketPolicy(ctx, doc); err != nil {
		return fmt.Errorf("deploy bucket policy: %w", err)
	}
	return nil
}

func (p *Publisher) linkTTL() time.Duration {
	ttl := p.config.LinkTTL
	if ttl <= 0 {
		return DefaultLinkTTL
	}
	if ttl > MaxLinkTTL {
		return MaxLinkTTL
	}
	return ttl
}

// waitForRateLimit blocks until the rate limiter allows the next file.
func (p *Publisher) waitForRateLimit(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func (p *Publisher) writeShare(ctx context.Context, r *Receipt) {
	if p.writer == nil {
		return
	}
	_ = p.writer.WriteShare(ctx, &output.ShareRecord{
		Path:        r.Path,
		Key:         r.Key,
		URL:         r.URL,
		Visibility:  r.Visibility.String(),
		ContentType: r.ContentType,
		Bytes:       r.Bytes,
		DatastoreID: r.DatastoreID,
		Expires:     r.Expires,
	})
}

func (p *Publisher) writeError(ctx context.Context, path string, err error) {
	if p.writer == nil || err == nil {
		return
	}
	_ = p.writer.WriteError(ctx, &output.ErrorRecord{
		Code:    errorCode(err),
		Message: err.Error(),
		Path:    path,
	})
}

func (p *Publisher) writeSummary(ctx context.Context, s *Summary) {
	if p.writer == nil {
		return
	}
	_ = p.writer.WriteSummary(ctx, &output.SummaryRecord{
		Published:     s.Published,
		Failed:        s.Failed,
		BytesTotal:    s.BytesTotal,
		Duration:      s.Duration,
		DurationHuman: s.Duration.Round(time.Millisecond).String(),
	})
}

// errorCode maps a publish failure onto the stable output error codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedType),
		errors.Is(err, ErrNotHTML),
		errors.Is(err, page.ErrNoHead),
		errors.Is(err, notebook.ErrConverterMissing):
		return output.ErrCodeInvalidInput
	case errors.Is(err, fs.ErrNotExist):
		return output.ErrCodeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return output.ErrCodeTimeout
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		return output.ErrCodeAccessDenied
	case provider.IsBucketNotFound(err), provider.IsNotFound(err):
		return output.ErrCodeNotFound
	case provider.IsThrottled(err):
		return output.ErrCodeThrottled
	default:
		return output.ErrCodeInternal
	}
}

func joinKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
