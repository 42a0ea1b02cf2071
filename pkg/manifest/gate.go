package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/schema"
	schemasassets "github.com/pagehost/pagehost/internal/assets/schemas"
	"gopkg.in/yaml.v3"
)

// GateSchemaID is the schema identifier for gate configs.
const GateSchemaID = "pagehost/v1.0.0/gate-config"

// Gate validation errors.
var (
	// ErrGateSchemaNotFound indicates the gate schema could not be located.
	ErrGateSchemaNotFound = errors.New("gate config schema not found")

	// ErrGateValidationFailed indicates the config failed schema validation.
	ErrGateValidationFailed = errors.New("gate config validation failed")
)

// GateConfig represents a validated gate service configuration.
//
// The gate is the stateless token check for guarded pages; its config names
// the bucket to front and the listen address. Fields are schema-validated
// using the embedded gate-config schema.
type GateConfig struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the config schema version. Must be "1.0" when present.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Listen is the HTTP listen address, e.g. ":8080".
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`

	// Connection names the page store the gate serves from.
	Connection ConnectionConfig `json:"connection" yaml:"connection"`

	// Timeouts configures HTTP server timeouts.
	Timeouts GateTimeouts `json:"timeouts,omitempty" yaml:"timeouts,omitempty"`

	// Logging configures gate log output.
	Logging GateLogging `json:"logging,omitempty" yaml:"logging,omitempty"`

	// Metrics configures the prometheus endpoint.
	Metrics GateMetrics `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// GateTimeouts holds HTTP server timeouts as Go duration strings.
type GateTimeouts struct {
	Read     string `json:"read,omitempty" yaml:"read,omitempty"`
	Write    string `json:"write,omitempty" yaml:"write,omitempty"`
	Idle     string `json:"idle,omitempty" yaml:"idle,omitempty"`
	Shutdown string `json:"shutdown,omitempty" yaml:"shutdown,omitempty"`
}

// GateLogging configures gate log output.
type GateLogging struct {
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// GateMetrics configures the prometheus endpoint.
type GateMetrics struct {
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

const (
	// DefaultGateListen is the default gate listen address.
	DefaultGateListen = ":8080"

	// DefaultGateReadTimeout is the default HTTP read timeout.
	DefaultGateReadTimeout = 30 * time.Second

	// DefaultGateWriteTimeout is the default HTTP write timeout.
	DefaultGateWriteTimeout = 30 * time.Second

	// DefaultGateIdleTimeout is the default HTTP idle timeout.
	DefaultGateIdleTimeout = 120 * time.Second

	// DefaultGateShutdownTimeout is the default shutdown grace period.
	DefaultGateShutdownTimeout = 10 * time.Second

	// DefaultGateMetricsEnabled is the default for the metrics endpoint.
	DefaultGateMetricsEnabled = true
)

// ApplyDefaults fills in default values for optional fields.
func (c *GateConfig) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultGateListen
	}
	if c.Connection.Provider == "" {
		c.Connection.Provider = DefaultProvider
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Profile == "" {
		c.Logging.Profile = "STRUCTURED"
	}
	if c.Metrics.Enabled == nil {
		enabled := DefaultGateMetricsEnabled
		c.Metrics.Enabled = &enabled
	}
}

// MetricsEnabled returns whether the prometheus endpoint is enabled.
func (m GateMetrics) MetricsEnabled() bool {
	if m.Enabled == nil {
		return DefaultGateMetricsEnabled
	}
	return *m.Enabled
}

// ReadTimeout returns the parsed read timeout, or the default.
func (t GateTimeouts) ReadTimeout() time.Duration {
	return parseTimeout(t.Read, DefaultGateReadTimeout)
}

// WriteTimeout returns the parsed write timeout, or the default.
func (t GateTimeouts) WriteTimeout() time.Duration {
	return parseTimeout(t.Write, DefaultGateWriteTimeout)
}

// IdleTimeout returns the parsed idle timeout, or the default.
func (t GateTimeouts) IdleTimeout() time.Duration {
	return parseTimeout(t.Idle, DefaultGateIdleTimeout)
}

// ShutdownTimeout returns the parsed shutdown grace period, or the default.
func (t GateTimeouts) ShutdownTimeout() time.Duration {
	return parseTimeout(t.Shutdown, DefaultGateShutdownTimeout)
}

// parseTimeout parses a duration string, falling back to def when the value
// is empty or malformed. Malformed values are caught by schema validation
// before this runs.
func parseTimeout(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ValidateGateRaw checks raw JSON data against the gate config schema.
func ValidateGateRaw(jsonData []byte) error {
	v, err := getGateValidator()
	if err != nil {
		return err
	}

	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if len(diags) == 0 {
		return nil
	}

	var errs ValidationErrors
	for _, d := range diags {
		if d.Severity == schema.SeverityError {
			errs = append(errs, ValidationError{
				Path:    d.Pointer,
				Message: d.Message,
			})
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return gateValidationErrors(errs)
}

// ValidateGate validates a typed GateConfig by round-tripping to JSON.
func ValidateGate(c *GateConfig) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize gate config for validation: %w", err)
	}
	return ValidateGateRaw(data)
}

// LoadGate reads and validates a gate config from the given file path.
func LoadGate(path string) (*GateConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("gate config file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading gate config: %s", path)
		}
		return nil, fmt.Errorf("failed to read gate config file: %w", err)
	}
	return LoadGateFromBytes(data, path)
}

// LoadGateFromBytes parses and validates a gate config from raw bytes.
func LoadGateFromBytes(data []byte, path string) (*GateConfig, error) {
	if len(data) == 0 {
		return nil, errors.New("gate config file is empty")
	}

	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}

	if err := ValidateGateRaw(jsonData); err != nil {
		return nil, err
	}

	cfg, err := parseGateConfig(data, path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

func parseGateConfig(data []byte, path string) (*GateConfig, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		var c GateConfig
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("invalid JSON in gate config: %w", err)
		}
		return &c, nil
	case ".yaml", ".yml":
		var c GateConfig
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("invalid YAML in gate config: %w", err)
		}
		return &c, nil
	default:
		// Unknown extension: try YAML first (more permissive), then JSON.
		var c GateConfig
		yamlErr := yaml.Unmarshal(data, &c)
		if yamlErr == nil {
			return &c, nil
		}
		jsonErr := json.Unmarshal(data, &c)
		if jsonErr == nil {
			return &c, nil
		}
		return nil, fmt.Errorf("failed to parse gate config (tried YAML and JSON): %w", yamlErr)
	}
}

// getGateValidator returns a cached validator compiled from the embedded gate schema.
func getGateValidator() (*schema.Validator, error) {
	gateValidatorOnce.Do(func() {
		if len(schemasassets.GateConfigSchema) == 0 {
			gateValidatorErr = fmt.Errorf("%w: embedded gate-config schema is empty", ErrGateSchemaNotFound)
			return
		}
		gateValidator, gateValidatorErr = schema.NewValidator(schemasassets.GateConfigSchema)
		if gateValidatorErr != nil {
			gateValidatorErr = fmt.Errorf("failed to compile gate config schema: %w", gateValidatorErr)
		}
	})
	return gateValidator, gateValidatorErr
}

var (
	gateValidatorOnce sync.Once
	gateValidator     *schema.Validator
	gateValidatorErr  error
)

// gateValidationErrors wraps ValidationErrors with gate-specific unwrap semantics.
type gateValidationErrors ValidationErrors

func (e gateValidationErrors) Error() string {
	return ValidationErrors(e).Error()
}

func (e gateValidationErrors) Unwrap() error {
	return ErrGateValidationFailed
}
