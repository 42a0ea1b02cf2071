package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Package state guarded by configMu.
var (
	configMu    sync.Mutex
	appIdentity *AppIdentity
	appConfig   *Config
)

// envSpec maps one environment variable to a config path.
type envSpec struct {
	// Name is the full variable name, e.g. "PAGEHOST_BUCKET".
	Name string

	// Path is the dotted config key, e.g. "store.bucket".
	Path string
}

// Load builds a Config from defaults, an optional config file, PAGEHOST_*
// environment variables, and finally any runtime overrides (highest
// precedence). A `.env` file in the working directory is loaded first so
// its variables participate like real environment.
//
// The loaded snapshot is retained for GetConfig.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Best effort: absence of .env is the normal case.
	_ = godotenv.Load()

	setIdentity(defaultIdentity())

	v := viper.New()
	setViperDefaults(v)

	if path := configFilePath(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", spec.Name, err)
		}
	}

	for _, override := range overrides {
		applyOverrides(v, override, "")
	}

	var cfg Config
	err := v.Unmarshal(&cfg,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)),
		func(dc *mapstructure.DecoderConfig) {
			dc.WeaklyTypedInput = true
		},
	)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently loaded config, or nil before Load.
func GetConfig() *Config {
	configMu.Lock()
	defer configMu.Unlock()
	return appConfig
}

// GetIdentity returns the application identity established by Load, or nil
// before any Load.
func GetIdentity() *AppIdentity {
	configMu.Lock()
	defer configMu.Unlock()
	return appIdentity
}

func defaultIdentity() *AppIdentity {
	return &AppIdentity{
		BinaryName: "pagehost",
		EnvPrefix:  "PAGEHOST",
		ConfigName: "pagehost",
	}
}

func setIdentity(id *AppIdentity) {
	configMu.Lock()
	defer configMu.Unlock()
	appIdentity = id
}

func setViperDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("share.visibility", "token-guarded")
	v.SetDefault("share.duration_seconds", 604800)
	v.SetDefault("share.prefix", "")
	v.SetDefault("share.base_url", "")

	v.SetDefault("store.bucket", "")
	v.SetDefault("store.region", "")
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.profile", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)

	v.SetDefault("workers", 4)
}

// getEnvSpecs returns the environment variable mappings. Empty before Load
// has established the app identity.
func getEnvSpecs() []envSpec {
	configMu.Lock()
	defer configMu.Unlock()
	if appIdentity == nil {
		return nil
	}

	p := appIdentity.EnvPrefix + "_"
	return []envSpec{
		{p + "HOST", "server.host"},
		{p + "PORT", "server.port"},
		{p + "READ_TIMEOUT", "server.read_timeout"},
		{p + "WRITE_TIMEOUT", "server.write_timeout"},
		{p + "IDLE_TIMEOUT", "server.idle_timeout"},
		{p + "SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
		{p + "VISIBILITY", "share.visibility"},
		{p + "DURATION", "share.duration_seconds"},
		{p + "PREFIX", "share.prefix"},
		{p + "BASE_URL", "share.base_url"},
		{p + "BUCKET", "store.bucket"},
		{p + "REGION", "store.region"},
		{p + "ENDPOINT", "store.endpoint"},
		{p + "AWS_PROFILE", "store.profile"},
		{p + "LOG_LEVEL", "logging.level"},
		{p + "LOG_PROFILE", "logging.profile"},
		{p + "METRICS_ENABLED", "metrics.enabled"},
		{p + "METRICS_PORT", "metrics.port"},
		{p + "HEALTH_ENABLED", "health.enabled"},
		{p + "WORKERS", "workers"},
	}
}

// getUserConfigPaths returns per-user config directories in search order.
// Empty before Load has established the app identity.
func getUserConfigPaths() []string {
	configMu.Lock()
	defer configMu.Unlock()
	if appIdentity == nil {
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".config", appIdentity.ConfigName),
		filepath.Join(home, "."+appIdentity.ConfigName),
	}
}

// configFilePath returns the first config file found, or "".
func configFilePath() string {
	var candidates []string

	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".pagehost.yaml"))
	}
	if root, err := findProjectRoot(); err == nil {
		candidates = append(candidates, filepath.Join(root, ".pagehost.yaml"))
	}
	for _, dir := range getUserConfigPaths() {
		candidates = append(candidates, filepath.Join(dir, "config.yaml"))
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// findProjectRoot locates the enclosing project directory.
//
// In CI the checkout can sit outside $HOME, where upward discovery from the
// working directory may be cut short. CI boundary variables name the
// workspace root explicitly and win when they contain the working
// directory. Otherwise the root is the nearest ancestor holding go.mod or
// .git, falling back to the working directory itself.
func findProjectRoot() (string, error) {
	if root := ciBoundaryRoot(); root != "" {
		return root, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

// ciBoundaryRoot checks CI workspace variables. A boundary applies only
// when it is an absolute path to an existing directory that contains the
// working directory.
func ciBoundaryRoot() string {
	if os.Getenv("CI") != "true" && os.Getenv("GITHUB_ACTIONS") != "true" {
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for _, name := range []string{"FULMEN_WORKSPACE_ROOT", "GITHUB_WORKSPACE", "CI_PROJECT_DIR", "WORKSPACE"} {
		root := os.Getenv(name)
		if root == "" || !filepath.IsAbs(root) {
			continue
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(root, cwd)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return root
	}
	return ""
}

// applyOverrides flattens nested override maps onto dotted viper keys.
func applyOverrides(v *viper.Viper, m map[string]any, prefix string) {
	for key, val := range m {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			applyOverrides(v, nested, full)
			continue
		}
		v.Set(full, val)
	}
}
