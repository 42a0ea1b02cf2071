package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validManifestYAML returns a minimal valid manifest in YAML format.
func validManifestYAML() string {
	return `version: "1.0"
pages:
  files:
    - "reports/**/*.html"
`
}

// validManifestJSON returns a minimal valid manifest in JSON format.
func validManifestJSON() string {
	return `{
  "version": "1.0",
  "pages": {
    "files": ["reports/**/*.html"]
  }
}`
}

// manifestWithSchemaYAML returns a manifest with the $schema field for editor support.
func manifestWithSchemaYAML() string {
	return `$schema: https://schemas.pagehost.dev/pagehost/v1.0.0/share-manifest.schema.json
version: "1.0"
pages:
  files:
    - "reports/**/*.html"
`
}

// fullManifestYAML returns a complete manifest with all optional fields.
func fullManifestYAML() string {
	return `version: "1.0"
connection:
  provider: s3
  bucket: alice-pagehost
  region: us-east-1
  endpoint: http://localhost:9000
  profile: production
pages:
  files:
    - "reports/**/*.html"
    - "notebooks/analysis.ipynb"
  excludes:
    - "**/drafts/**"
  prefix: "teams/web/"
share:
  visibility: public
  reset_datastore: true
  presign: true
  duration_seconds: 3600
  concurrency: 8
  rate_limit: 10.5
  base_url: https://pages.example.com
output:
  json: true
  destination: file:/tmp/receipts.jsonl
`
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		filename    string
		wantErr     bool
		errContains string
		validate    func(t *testing.T, m *Manifest)
	}{
		{
			name:     "valid YAML manifest",
			content:  validManifestYAML(),
			filename: "share.yaml",
			wantErr:  false,
			validate: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "1.0", m.Version)
				assert.Equal(t, []string{"reports/**/*.html"}, m.Pages.Files)
				// Check defaults were applied
				assert.Equal(t, DefaultProvider, m.Connection.Provider)
				assert.Equal(t, DefaultVisibility, m.Share.Visibility)
				assert.Equal(t, DefaultDurationSeconds, m.Share.DurationSeconds)
				assert.Equal(t, DefaultConcurrency, m.Share.Concurrency)
				assert.Equal(t, DefaultDestination, m.Output.Destination)
				assert.False(t, m.Share.Presign)
				assert.False(t, m.Output.JSON)
			},
		},
		{
			name:     "valid JSON manifest",
			content:  validManifestJSON(),
			filename: "share.json",
			wantErr:  false,
			validate: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "1.0", m.Version)
				assert.Equal(t, []string{"reports/**/*.html"}, m.Pages.Files)
			},
		},
		{
			name:     "manifest with $schema field",
			content:  manifestWithSchemaYAML(),
			filename: "with-schema.yaml",
			wantErr:  false,
			validate: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "https://schemas.pagehost.dev/pagehost/v1.0.0/share-manifest.schema.json", m.Schema)
				assert.Equal(t, "1.0", m.Version)
			},
		},
		{
			name:     "full manifest with all options",
			content:  fullManifestYAML(),
			filename: "full.yaml",
			wantErr:  false,
			validate: func(t *testing.T, m *Manifest) {
				// Connection
				assert.Equal(t, "s3", m.Connection.Provider)
				assert.Equal(t, "alice-pagehost", m.Connection.Bucket)
				assert.Equal(t, "us-east-1", m.Connection.Region)
				assert.Equal(t, "http://localhost:9000", m.Connection.Endpoint)
				assert.Equal(t, "production", m.Connection.Profile)
				// Pages
				assert.Equal(t, []string{"reports/**/*.html", "notebooks/analysis.ipynb"}, m.Pages.Files)
				assert.Equal(t, []string{"**/drafts/**"}, m.Pages.Excludes)
				assert.Equal(t, "teams/web/", m.Pages.Prefix)
				// Share
				assert.Equal(t, "public", m.Share.Visibility)
				assert.True(t, m.Share.ResetDatastore)
				assert.True(t, m.Share.Presign)
				assert.Equal(t, 3600, m.Share.DurationSeconds)
				assert.Equal(t, 8, m.Share.Concurrency)
				assert.InDelta(t, 10.5, m.Share.RateLimit, 0.001)
				assert.Equal(t, "https://pages.example.com", m.Share.BaseURL)
				// Output
				assert.True(t, m.Output.JSON)
				assert.Equal(t, "file:/tmp/receipts.jsonl", m.Output.Destination)
			},
		},
		{
			name:     "yml extension works",
			content:  validManifestYAML(),
			filename: "share.yml",
			wantErr:  false,
		},
		{
			name:        "empty file",
			content:     "",
			filename:    "empty.yaml",
			wantErr:     true,
			errContains: "empty",
		},
		{
			name:        "invalid YAML syntax",
			content:     "version: [invalid yaml",
			filename:    "bad.yaml",
			wantErr:     true,
			errContains: "invalid YAML",
		},
		{
			name:        "invalid JSON syntax",
			content:     `{"version": "1.0"`,
			filename:    "bad.json",
			wantErr:     true,
			errContains: "invalid JSON",
		},
		{
			name: "missing version",
			content: `pages:
  files:
    - "**/*.html"
`,
			filename:    "no-version.yaml",
			wantErr:     true,
			errContains: "version",
		},
		{
			name: "wrong version",
			content: `version: "2.0"
pages:
  files:
    - "**/*.html"
`,
			filename:    "wrong-version.yaml",
			wantErr:     true,
			errContains: "version",
		},
		{
			name:        "missing pages",
			content:     `version: "1.0"`,
			filename:    "no-pages.yaml",
			wantErr:     true,
			errContains: "pages",
		},
		{
			name: "missing files",
			content: `version: "1.0"
pages:
  prefix: "teams/"
`,
			filename:    "no-files.yaml",
			wantErr:     true,
			errContains: "files",
		},
		{
			name: "empty files array",
			content: `version: "1.0"
pages:
  files: []
`,
			filename:    "empty-files.yaml",
			wantErr:     true,
			errContains: "files",
		},
		{
			name: "invalid provider",
			content: `version: "1.0"
connection:
  provider: azure
pages:
  files:
    - "**/*.html"
`,
			filename:    "bad-provider.yaml",
			wantErr:     true,
			errContains: "provider",
		},
		{
			name: "invalid visibility",
			content: `version: "1.0"
pages:
  files:
    - "**/*.html"
share:
  visibility: secret
`,
			filename:    "bad-visibility.yaml",
			wantErr:     true,
			errContains: "visibility",
		},
		{
			name: "concurrency too high",
			content: `version: "1.0"
pages:
  files:
    - "**/*.html"
share:
  concurrency: 100
`,
			filename:    "high-concurrency.yaml",
			wantErr:     true,
			errContains: "concurrency",
		},
		{
			name: "duration over one week",
			content: `version: "1.0"
pages:
  files:
    - "**/*.html"
share:
  duration_seconds: 700000
`,
			filename:    "long-duration.yaml",
			wantErr:     true,
			errContains: "duration",
		},
		{
			name: "negative rate limit",
			content: `version: "1.0"
pages:
  files:
    - "**/*.html"
share:
  rate_limit: -1
`,
			filename:    "neg-rate.yaml",
			wantErr:     true,
			errContains: "rate_limit",
		},
		{
			name: "unknown field rejected",
			content: `version: "1.0"
pages:
  files:
    - "**/*.html"
  unknown_field: value
`,
			filename:    "unknown-field.yaml",
			wantErr:     true,
			errContains: "additional",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			path := filepath.Join(tmpDir, tt.filename)
			err := os.WriteFile(path, []byte(tt.content), 0o644)
			require.NoError(t, err)

			m, err := Load(path)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, strings.ToLower(err.Error()), strings.ToLower(tt.errContains),
						"error should contain %q", tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			require.NotNil(t, m)

			if tt.validate != nil {
				tt.validate(t, m)
			}
		})
	}
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("file not found", func(t *testing.T) {
		_, err := Load("/nonexistent/path/share.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("permission denied", func(t *testing.T) {
		if os.Getuid() == 0 {
			t.Skip("skipping permission test when running as root")
		}

		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "noperm.yaml")
		err := os.WriteFile(path, []byte(validManifestYAML()), 0o000)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = os.Chmod(path, 0o644) // Restore permissions for cleanup
		})

		_, err = Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission")
	})
}

func TestLoadFromBytes(t *testing.T) {
	t.Run("YAML by extension", func(t *testing.T) {
		m, err := LoadFromBytes([]byte(validManifestYAML()), "test.yaml")
		require.NoError(t, err)
		assert.Equal(t, []string{"reports/**/*.html"}, m.Pages.Files)
	})

	t.Run("JSON by extension", func(t *testing.T) {
		m, err := LoadFromBytes([]byte(validManifestJSON()), "test.json")
		require.NoError(t, err)
		assert.Equal(t, []string{"reports/**/*.html"}, m.Pages.Files)
	})

	t.Run("auto-detect YAML", func(t *testing.T) {
		m, err := LoadFromBytes([]byte(validManifestYAML()), "")
		require.NoError(t, err)
		assert.Equal(t, "1.0", m.Version)
	})

	t.Run("auto-detect JSON", func(t *testing.T) {
		m, err := LoadFromBytes([]byte(validManifestJSON()), "")
		require.NoError(t, err)
		assert.Equal(t, "1.0", m.Version)
	})

	t.Run("unknown extension tries both", func(t *testing.T) {
		m, err := LoadFromBytes([]byte(validManifestYAML()), "test.txt")
		require.NoError(t, err)
		assert.Equal(t, "1.0", m.Version)
	})
}

func TestLoadFromReader(t *testing.T) {
	r := strings.NewReader(validManifestYAML())
	m, err := LoadFromReader(r, "test.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/**/*.html"}, m.Pages.Files)
}

func TestApplyDefaults(t *testing.T) {
	t.Run("applies all defaults", func(t *testing.T) {
		m := &Manifest{
			Version: "1.0",
			Pages: PagesConfig{
				Files: []string{"**/*.html"},
			},
		}

		m.ApplyDefaults()

		assert.Equal(t, DefaultProvider, m.Connection.Provider)
		assert.Equal(t, DefaultVisibility, m.Share.Visibility)
		assert.Equal(t, DefaultDurationSeconds, m.Share.DurationSeconds)
		assert.Equal(t, DefaultConcurrency, m.Share.Concurrency)
		assert.Equal(t, DefaultDestination, m.Output.Destination)
	})

	t.Run("preserves explicit values", func(t *testing.T) {
		m := &Manifest{
			Version: "1.0",
			Share: ShareConfig{
				Visibility:      "public",
				DurationSeconds: 3600,
				Concurrency:     8,
			},
			Output: OutputConfig{
				Destination: "file:/tmp/receipts.jsonl",
			},
		}

		m.ApplyDefaults()

		assert.Equal(t, "public", m.Share.Visibility)
		assert.Equal(t, 3600, m.Share.DurationSeconds)
		assert.Equal(t, 8, m.Share.Concurrency)
		assert.Equal(t, "file:/tmp/receipts.jsonl", m.Output.Destination)
	})

	t.Run("zero rate limit is valid", func(t *testing.T) {
		m := &Manifest{}
		m.ApplyDefaults()
		assert.Equal(t, 0.0, m.Share.RateLimit)
	})
}

func TestValidate(t *testing.T) {
	t.Run("valid manifest passes", func(t *testing.T) {
		m := &Manifest{
			Version: "1.0",
			Pages: PagesConfig{
				Files: []string{"**/*.html"},
			},
		}
		assert.NoError(t, Validate(m))
	})

	t.Run("validation failure unwraps to sentinel", func(t *testing.T) {
		m := &Manifest{
			Version: "3.0",
			Pages: PagesConfig{
				Files: []string{"**/*.html"},
			},
		}
		err := Validate(m)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidationFailed))
	})
}
