package cmd

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagehost/pagehost/internal/config"
	"github.com/pagehost/pagehost/internal/observability"
	"github.com/pagehost/pagehost/internal/server"
	"github.com/pagehost/pagehost/internal/server/handlers"
	"github.com/pagehost/pagehost/pkg/manifest"
	"github.com/pagehost/pagehost/pkg/provider"
	"github.com/pagehost/pagehost/pkg/provider/file"
	"github.com/pagehost/pagehost/pkg/provider/s3"
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Serve published pages with token checks",
	Long: `Run the stateless token gate in front of a page bucket.

The gate streams pages out of the store: public pages to anyone, guarded
pages only to requests presenting the access token minted at publish time.
It also exposes health probes, a version endpoint, and prometheus metrics.

Example:
  pagehost gate --bucket alice-pagehost
  pagehost gate --config gate.yaml
  pagehost gate --bucket alice-pagehost --listen :9000`,
	RunE: runGate,
}

var (
	gateConfigPath string
	gateListen     string
	gateBucket     string
	gateRegion     string
	gateProfile    string
	gateEndpoint   string
)

func init() {
	rootCmd.AddCommand(gateCmd)

	gateCmd.Flags().StringVar(&gateConfigPath, "config", "", "Path to gate config (YAML or JSON)")
	gateCmd.Flags().StringVarP(&gateListen, "listen", "l", "", "Listen address (e.g., :8080)")
	gateCmd.Flags().StringVarP(&gateBucket, "bucket", "b", "", "Bucket to serve pages from")
	gateCmd.Flags().StringVarP(&gateRegion, "region", "r", "", "AWS region")
	gateCmd.Flags().StringVarP(&gateProfile, "profile", "p", "", "AWS profile")
	gateCmd.Flags().StringVar(&gateEndpoint, "endpoint", "", "Custom S3 endpoint URL")
}

func runGate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	gc, err := resolveGateConfig(cmd)
	if err != nil {
		return err
	}

	host, port, err := splitListen(gc.Listen)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid listen address", err)
	}

	logger, err := observability.NewLogger(gc.Logging.Level, gc.Logging.Profile)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}
	defer func() { _ = logger.Sync() }()

	if gc.Metrics.MetricsEnabled() {
		if err := observability.InitTelemetry(); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Failed to initialize telemetry", err)
		}
	}

	handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)

	store, err := createGateStore(ctx, gc)
	if err != nil {
		logger.Error("failed to create page store", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to page store", err)
	}
	defer func() { _ = store.Close() }()

	registerGateHealthChecks(store, gc.Metrics.MetricsEnabled())

	opts := []server.Option{
		server.WithStore(store),
		server.WithLogger(logger),
		server.WithTimeouts(gc.Timeouts.ReadTimeout(), gc.Timeouts.WriteTimeout(), gc.Timeouts.IdleTimeout()),
		server.WithShutdownTimeout(gc.Timeouts.ShutdownTimeout()),
	}
	if gc.Metrics.MetricsEnabled() {
		opts = append(opts, server.WithTelemetry(observability.TelemetrySystem))
	}

	srv := server.New(host, port, opts...)

	logger.Info("starting gate",
		zap.String("listen", gc.Listen),
		zap.String("provider", gc.Connection.Provider),
		zap.String("bucket", gc.Connection.Bucket),
		zap.String("version", versionInfo.Version))

	if err := srv.Start(ctx); err != nil {
		logger.Error("gate failed", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Gate failed", err)
	}
	return nil
}

// resolveGateConfig builds the effective gate configuration from the config
// file defaults, an optional --config document, and explicit flags.
func resolveGateConfig(cmd *cobra.Command) (*manifest.GateConfig, error) {
	var gc *manifest.GateConfig

	if gateConfigPath != "" {
		loaded, err := manifest.LoadGate(gateConfigPath)
		if err != nil {
			observability.CLILogger.Error("Failed to load gate config",
				zap.String("path", gateConfigPath),
				zap.Error(err))
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid gate config", err)
		}
		gc = loaded
	} else {
		gc = &manifest.GateConfig{}
		if cfg := config.GetConfig(); cfg != nil {
			gc.Listen = net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
			gc.Connection.Bucket = cfg.Store.Bucket
			gc.Connection.Region = cfg.Store.Region
			gc.Connection.Endpoint = cfg.Store.Endpoint
			gc.Connection.Profile = cfg.Store.Profile
			gc.Timeouts.Read = cfg.Server.ReadTimeout.String()
			gc.Timeouts.Write = cfg.Server.WriteTimeout.String()
			gc.Timeouts.Idle = cfg.Server.IdleTimeout.String()
			gc.Timeouts.Shutdown = cfg.Server.ShutdownTimeout.String()
			gc.Logging.Level = cfg.Logging.Level
			gc.Logging.Profile = cfg.Logging.Profile
			enabled := cfg.Metrics.Enabled
			gc.Metrics.Enabled = &enabled
		}
		gc.ApplyDefaults()
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		gc.Listen = gateListen
	}
	if flags.Changed("bucket") {
		gc.Connection.Bucket = gateBucket
	}
	if flags.Changed("region") {
		gc.Connection.Region = gateRegion
	}
	if flags.Changed("profile") {
		gc.Connection.Profile = gateProfile
	}
	if flags.Changed("endpoint") {
		gc.Connection.Endpoint = gateEndpoint
	}

	if gc.Connection.Provider == "file" {
		if gc.Connection.BaseDir == "" {
			return nil, exitError(foundry.ExitInvalidArgument, "Gate requires a base_dir for the file provider", fmt.Errorf("set connection.base_dir in the gate config"))
		}
	} else if gc.Connection.Bucket == "" {
		return nil, exitError(foundry.ExitInvalidArgument, "Gate requires a bucket", fmt.Errorf("name one with --bucket or in the gate config"))
	}

	return gc, nil
}

// splitListen parses a listen address into host and numeric port. A bare
// ":8080" binds every interface.
func splitListen(listen string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return "", 0, fmt.Errorf("listen address %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("listen address %q: invalid port %q", listen, portStr)
	}
	return host, port, nil
}

// createGateStore builds the page store the gate serves from.
func createGateStore(ctx context.Context, gc *manifest.GateConfig) (provider.Provider, error) {
	if gc.Connection.Provider == "file" {
		return file.New(file.Config{BaseDir: gc.Connection.BaseDir})
	}
	return s3.New(ctx, s3.Config{
		Bucket:         gc.Connection.Bucket,
		Region:         gc.Connection.Region,
		Endpoint:       gc.Connection.Endpoint,
		Profile:        gc.Connection.Profile,
		ForcePathStyle: gc.Connection.Endpoint != "",
	})
}

// registerGateHealthChecks wires the gate's readiness probes.
func registerGateHealthChecks(store provider.Provider, metricsEnabled bool) {
	handlers.InitHealthManager(versionInfo.Version)
	hm := handlers.GetHealthManager()

	hm.RegisterChecker("signals", signalHealthChecker{})
	hm.RegisterChecker("identity", newIdentityHealthChecker())
	hm.RegisterChecker("store", storeHealthChecker{store: store})
	if metricsEnabled {
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
	}
}

// signalHealthChecker reports process liveness. Signal handling is installed
// before the gate accepts traffic, so this check never fails.
type signalHealthChecker struct{}

func (signalHealthChecker) CheckHealth(ctx context.Context) error {
	return nil
}

// telemetryHealthChecker verifies the telemetry system is serving metrics.
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return fmt.Errorf("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker verifies the application identity resolved during
// configuration loading.
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func newIdentityHealthChecker() identityHealthChecker {
	c := identityHealthChecker{}
	if id := GetAppIdentity(); id != nil {
		c.binaryName = id.BinaryName
		c.envPrefix = id.EnvPrefix
		c.configName = id.ConfigName
	}
	return c
}

func (c identityHealthChecker) CheckHealth(ctx context.Context) error {
	if c.binaryName == "" {
		return fmt.Errorf("application identity incomplete: missing binary name")
	}
	if c.envPrefix == "" {
		return fmt.Errorf("application identity incomplete: missing env prefix")
	}
	if c.configName == "" {
		return fmt.Errorf("application identity incomplete: missing config name")
	}
	return nil
}

// storeHealthChecker verifies the page store answers list calls.
type storeHealthChecker struct {
	store provider.Provider
}

func (c storeHealthChecker) CheckHealth(ctx context.Context) error {
	if c.store == nil {
		return fmt.Errorf("page store not configured")
	}
	if _, err := c.store.List(ctx, provider.ListOptions{MaxKeys: 1}); err != nil {
		return fmt.Errorf("page store unreachable: %w", err)
	}
	return nil
}
