// Package cmd implements the pagehost command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pagehost/pagehost/internal/config"
	"github.com/pagehost/pagehost/internal/observability"
)

// versionInfo holds the build identity injected at link time.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records the build identity for --version and the gate's
// /version endpoint.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = versionString()
}

func versionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
}

// appIdentity is resolved when the configuration loads.
var appIdentity *config.AppIdentity

// GetAppIdentity returns the application identity, or nil before the
// configuration has loaded.
func GetAppIdentity() *config.AppIdentity {
	return appIdentity
}

var (
	verbose  bool
	quiet    bool
	readOnly bool
)

var rootCmd = &cobra.Command{
	Use:   "pagehost",
	Short: "Share standalone HTML pages and notebooks from object storage",
	Long: `pagehost uploads self-contained HTML documents and Jupyter notebooks to an
object store and hands back a URL per file. Every upload gets a fresh
unguessable key; token-guarded pages additionally require an access token
that travels in the URL.

Examples:
  pagehost report.html
  pagehost share "notebooks/**/*.ipynb" --visibility public
  pagehost gate --config gate.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// ArbitraryArgs, or cobra treats "pagehost report.html" as an unknown
	// subcommand instead of handing the file to RunE.
	Args: cobra.ArbitraryArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			observability.SetCLILevel(zapcore.DebugLevel)
		}
		if quiet {
			observability.SetCLILevel(zapcore.WarnLevel)
		}

		if _, err := config.Load(cmd.Context()); err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		appIdentity = config.GetIdentity()
		return nil
	},
	// Bare "pagehost report.html" publishes directly, as a shorthand for
	// "pagehost share report.html".
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runShare(cmd, args)
	},
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.Version = versionString()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVar(&readOnly, "readonly", false, "Disable all provider-side mutations")

	_ = viper.BindPFlag("readonly", rootCmd.PersistentFlags().Lookup("readonly"))
	_ = viper.BindEnv("readonly", "PAGEHOST_READONLY")

	setDefaults()
}

// IsReadOnly reports whether provider-side mutations are disabled, via
// --readonly or PAGEHOST_READONLY.
func IsReadOnly() bool {
	return readOnly || viper.GetBool("readonly")
}

// setDefaults seeds the global viper instance so flags and config files
// agree on baseline values.
func setDefaults() {
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.shutdown_timeout", "10s")

	viper.SetDefault("share.visibility", "token-guarded")
	viper.SetDefault("share.duration_seconds", 604800)
	viper.SetDefault("share.prefix", "")
	viper.SetDefault("share.base_url", "")

	viper.SetDefault("store.bucket", "")
	viper.SetDefault("store.region", "")
	viper.SetDefault("store.endpoint", "")
	viper.SetDefault("store.profile", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.profile", "structured")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	viper.SetDefault("health.enabled", true)

	viper.SetDefault("workers", 4)

	viper.SetDefault("debug.enabled", false)
	viper.SetDefault("debug.pprof_enabled", false)
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return fmt.Errorf("%s: %w (exit code %d)", message, err, code)
}

// exitCodeRe extracts the code that exitError embeds in the message.
var exitCodeRe = regexp.MustCompile(`\(exit code (\d+)\)$`)

// ExitCode returns the process exit code for an error returned by a
// command, or 1 when the error carries no explicit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if m := exitCodeRe.FindStringSubmatch(err.Error()); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return code
		}
	}
	return 1
}

// ExitWithCode logs the failure and terminates the process with code.
func ExitWithCode(logger *zap.Logger, code int, message string, err error) {
	if logger != nil {
		logger.Error(message, zap.Error(err))
	}
	os.Exit(code)
}
