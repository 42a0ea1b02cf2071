// Package manifest provides loading and validation of pagehost manifests.
//
// A share manifest is a YAML or JSON file that describes a publish run:
// which files to share, the target bucket, and the access mode. The gate
// config (see GateConfig) describes the token gate service.
//
// Manifests are validated against a JSON Schema to ensure correctness before
// execution. The schema enforces strict typing and disallows unknown
// properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	connection:
//	  provider: s3
//	  bucket: alice-pagehost
//	  region: us-east-1
//	pages:
//	  files:
//	    - "reports/**/*.html"
//	    - "notebooks/analysis.ipynb"
//	  prefix: "teams/web/"
//	share:
//	  visibility: token-guarded
//	  concurrency: 4
//	output:
//	  json: true
package manifest

// Manifest represents a validated share manifest.
//
// Required fields are Version and Pages. Connection, Share, and Output are
// optional with sensible defaults.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	// Example: "https://schemas.pagehost.dev/pagehost/v1.0.0/share-manifest.schema.json"
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Connection configures the page store.
	Connection ConnectionConfig `json:"connection,omitempty" yaml:"connection,omitempty"`

	// Pages selects the files to publish.
	Pages PagesConfig `json:"pages" yaml:"pages"`

	// Share configures access mode and upload behavior (optional).
	Share ShareConfig `json:"share,omitempty" yaml:"share,omitempty"`

	// Output configures receipt output (optional).
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`
}

// ConnectionConfig configures the page store connection.
type ConnectionConfig struct {
	// Provider is the storage provider type: "s3" (default) or "file".
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`

	// Bucket is the target bucket. When empty, the CLI derives
	// "<username>-pagehost" from the caller identity.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Region is the AWS region (e.g., "us-east-1"). Optional.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint is a custom endpoint URL for S3-compatible storage. Optional.
	// Example: "http://localhost:9000"
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Profile is the AWS credential profile name. Optional.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// BaseDir is the base directory for the file provider. Optional.
	BaseDir string `json:"base_dir,omitempty" yaml:"base_dir,omitempty"`
}

// PagesConfig selects the files to publish.
type PagesConfig struct {
	// Files is a list of paths or doublestar globs. At least one is required.
	// Matched files must be .html, .htm, or .ipynb.
	Files []string `json:"files" yaml:"files"`

	// Excludes removes matches from the expanded file set. Optional.
	Excludes []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`

	// Prefix is prepended to every object key, e.g. "teams/web/". Optional.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// ShareConfig configures access mode and upload behavior.
//
// All fields are optional with defaults applied during loading.
type ShareConfig struct {
	// Visibility is the access mode: "public" or "token-guarded".
	// Default: "token-guarded".
	Visibility string `json:"visibility,omitempty" yaml:"visibility,omitempty"`

	// ResetDatastore mints a fresh datastore identity instead of reusing
	// the one already embedded in the page. Default: false.
	ResetDatastore bool `json:"reset_datastore,omitempty" yaml:"reset_datastore,omitempty"`

	// Presign returns a time-limited signed GET URL instead of the token
	// URL. Default: false.
	Presign bool `json:"presign,omitempty" yaml:"presign,omitempty"`

	// DurationSeconds is the presigned link lifetime.
	// Range: 1-604800. Default: 604800 (one week).
	DurationSeconds int `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`

	// Concurrency is the number of parallel uploads.
	// Range: 1-64. Default: 4.
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`

	// RateLimit is the maximum upload operations per second (0 = unlimited).
	// Default: 0.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	// BaseURL overrides the page URL host, e.g. "https://pages.example.com".
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// OutputConfig configures receipt output.
type OutputConfig struct {
	// JSON emits JSONL receipts instead of human-readable lines.
	// Default: false.
	JSON bool `json:"json,omitempty" yaml:"json,omitempty"`

	// Destination is the receipt target.
	// Values: "stdout" or "file:/path/to/receipts.jsonl".
	// Default: "stdout".
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// Default values for optional configuration fields.
const (
	// DefaultVersion is the current manifest schema version.
	DefaultVersion = "1.0"

	// DefaultProvider is the default page store provider.
	DefaultProvider = "s3"

	// DefaultVisibility is the default access mode.
	DefaultVisibility = "token-guarded"

	// DefaultDurationSeconds is the default presigned link lifetime.
	DefaultDurationSeconds = 604800

	// DefaultConcurrency is the default number of parallel uploads.
	DefaultConcurrency = 4

	// DefaultDestination is the default receipt destination.
	DefaultDestination = "stdout"
)

// ApplyDefaults fills in default values for optional fields.
//
// This should be called after loading and validating the manifest so
// callers don't need to reason about empty strings and zero values.
func (m *Manifest) ApplyDefaults() {
	if m.Connection.Provider == "" {
		m.Connection.Provider = DefaultProvider
	}

	if m.Share.Visibility == "" {
		m.Share.Visibility = DefaultVisibility
	}
	if m.Share.DurationSeconds == 0 {
		m.Share.DurationSeconds = DefaultDurationSeconds
	}
	if m.Share.Concurrency == 0 {
		m.Share.Concurrency = DefaultConcurrency
	}
	// RateLimit: 0 is a valid value (unlimited), so no default needed

	if m.Output.Destination == "" {
		m.Output.Destination = DefaultDestination
	}
}
