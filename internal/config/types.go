// Package config loads pagehost configuration with the precedence
// runtime overrides > environment > config file > defaults.
//
// Discovery order for the config file is `.pagehost.yaml` in the current
// directory, then the project root, then `$HOME/.config/pagehost/`. All
// settings are also reachable through `PAGEHOST_*` environment variables.
package config

import "time"

// Config is the loaded configuration snapshot.
type Config struct {
	// Server configures the gate HTTP service.
	Server ServerConfig `mapstructure:"server"`

	// Share configures publishing defaults.
	Share ShareConfig `mapstructure:"share"`

	// Store configures the page store connection.
	Store StoreConfig `mapstructure:"store"`

	// Logging configures log level and encoding profile.
	Logging LoggingConfig `mapstructure:"logging"`

	// Metrics configures the prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Health configures health probe endpoints.
	Health HealthConfig `mapstructure:"health"`

	// Debug configures debug facilities.
	Debug DebugConfig `mapstructure:"debug"`

	// Workers is the upload concurrency for multi-file shares.
	Workers int `mapstructure:"workers"`
}

// ServerConfig configures the gate HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ShareConfig configures publishing defaults.
type ShareConfig struct {
	// Visibility is the default access mode: "public" or "token-guarded".
	Visibility string `mapstructure:"visibility"`

	// DurationSeconds is the presigned link lifetime for --presign.
	DurationSeconds int `mapstructure:"duration_seconds"`

	// Prefix is prepended to object keys, e.g. "teams/web/".
	Prefix string `mapstructure:"prefix"`

	// BaseURL overrides the page URL host, e.g. "https://pages.example.com".
	BaseURL string `mapstructure:"base_url"`
}

// StoreConfig configures the page store connection.
type StoreConfig struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Profile  string `mapstructure:"profile"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig configures health probes.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig configures debug facilities.
type DebugConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// AppIdentity describes the binary for config discovery and env mapping.
type AppIdentity struct {
	// BinaryName is the executable name, e.g. "pagehost".
	BinaryName string

	// EnvPrefix prefixes environment variables, e.g. "PAGEHOST".
	EnvPrefix string

	// ConfigName names config directories and files.
	ConfigName string
}
