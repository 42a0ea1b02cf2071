package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagehost/pagehost/internal/config"
	"github.com/pagehost/pagehost/internal/observability"
	"github.com/pagehost/pagehost/pkg/output"
	"github.com/pagehost/pagehost/pkg/preflight"
	"github.com/pagehost/pagehost/pkg/provider/s3"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Probe page store permissions before publishing",
	Long: `Probe permissions and capabilities against the page store.

Run this before a large publish, or when wiring up new credentials, to
learn whether listing, heads, and writes will succeed. It emits a JSONL
preflight record (pagehost.preflight.v1).

Examples:
  # Plan-only: no provider calls
  pagehost preflight share --mode plan-only

  # Read-safe: minimal non-mutating calls
  pagehost preflight share --bucket alice-pagehost

  # Write-probe: minimal opt-in side effects under the probe prefix
  pagehost preflight write --bucket alice-pagehost --mode write-probe --probe-strategy multipart-abort`,
}

var preflightShareCmd = &cobra.Command{
	Use:   "share",
	Short: "Preflight checks for a publish run",
	Args:  cobra.NoArgs,
	RunE:  runPreflightShare,
}

var preflightWriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Preflight write-probe checks for the target bucket",
	Args:  cobra.NoArgs,
	RunE:  runPreflightWrite,
}

var (
	preflightBucket        string
	preflightRegion        string
	preflightProfile       string
	preflightEndpoint      string
	preflightMode          string
	preflightProbeStrategy string
	preflightProbePrefix   string
)

func init() {
	rootCmd.AddCommand(preflightCmd)
	preflightCmd.AddCommand(preflightShareCmd)
	preflightCmd.AddCommand(preflightWriteCmd)

	preflightCmd.Long += "\n\nSafety:\n- --readonly (or PAGEHOST_READONLY=1) disables write-probe preflight and other provider-side mutations."

	for _, c := range []*cobra.Command{preflightShareCmd, preflightWriteCmd} {
		c.Flags().StringVarP(&preflightBucket, "bucket", "b", "", "Target bucket (default: derived <username>-pagehost)")
		c.Flags().StringVarP(&preflightRegion, "region", "r", "", "AWS region")
		c.Flags().StringVarP(&preflightProfile, "profile", "p", "", "AWS profile")
		c.Flags().StringVar(&preflightEndpoint, "endpoint", "", "Custom S3 endpoint")
		c.Flags().StringVar(&preflightMode, "mode", "read-safe", "Preflight mode (plan-only|read-safe|write-probe)")
		c.Flags().StringVar(&preflightProbeStrategy, "probe-strategy", "multipart-abort", "Write probe strategy (multipart-abort|put-delete)")
		c.Flags().StringVar(&preflightProbePrefix, "probe-prefix", preflight.DefaultProbePrefix, "Probe prefix for write probes")
	}
}

func runPreflightShare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	spec := preflight.Spec{
		Mode:          preflight.Mode(preflightMode),
		ProbeStrategy: preflight.ProbeStrategy(preflightProbeStrategy),
		ProbePrefix:   preflightProbePrefix,
	}
	switch spec.Mode {
	case preflight.ModePlanOnly, preflight.ModeReadSafe, preflight.ModeWriteProbe:
		// ok
	default:
		return exitError(foundry.ExitInvalidArgument, "Invalid --mode value", fmt.Errorf("unsupported preflight mode: %s", preflightMode))
	}
	if IsReadOnly() && spec.Mode == preflight.ModeWriteProbe {
		return exitError(foundry.ExitInvalidArgument, "readonly mode enabled: refusing write-probe preflight", fmt.Errorf("use --mode read-safe or disable --readonly"))
	}

	jobID := uuid.New().String()
	w := output.NewJSONLWriter(os.Stdout, jobID, "s3")
	defer func() { _ = w.Close() }()

	// Plan-only should not create providers or hit endpoints.
	if spec.Mode == preflight.ModePlanOnly {
		rec := &output.PreflightRecord{
			Mode:        string(spec.Mode),
			ProbePrefix: spec.ProbePrefix,
			Results:     []output.PreflightCheckResult{},
		}
		return w.WritePreflight(ctx, rec)
	}

	prov, err := createPreflightProvider(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = prov.Close() }()

	rec, pfErr := preflight.Share(ctx, prov, spec)
	if err := w.WritePreflight(ctx, rec); err != nil {
		return err
	}
	if pfErr != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Preflight failed", pfErr)
	}
	return nil
}

func runPreflightWrite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	spec := preflight.Spec{
		Mode:          preflight.Mode(preflightMode),
		ProbeStrategy: preflight.ProbeStrategy(preflightProbeStrategy),
		ProbePrefix:   preflightProbePrefix,
	}
	switch spec.Mode {
	case preflight.ModePlanOnly, preflight.ModeWriteProbe:
		// ok
	default:
		return exitError(foundry.ExitInvalidArgument, "Invalid --mode for preflight write", fmt.Errorf("use --mode write-probe or plan-only"))
	}
	if IsReadOnly() && spec.Mode == preflight.ModeWriteProbe {
		return exitError(foundry.ExitInvalidArgument, "readonly mode enabled: refusing write-probe preflight", fmt.Errorf("disable --readonly or unset PAGEHOST_READONLY"))
	}

	jobID := uuid.New().String()
	w := output.NewJSONLWriter(os.Stdout, jobID, "s3")
	defer func() { _ = w.Close() }()

	if spec.Mode == preflight.ModePlanOnly {
		rec := &output.PreflightRecord{
			Mode:        string(spec.Mode),
			ProbePrefix: spec.ProbePrefix,
			Results:     []output.PreflightCheckResult{},
		}
		return w.WritePreflight(ctx, rec)
	}

	prov, err := createPreflightProvider(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = prov.Close() }()

	rec, pfErr := preflight.WriteProbe(ctx, prov, spec)
	if err := w.WritePreflight(ctx, rec); err != nil {
		return err
	}
	if pfErr != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Write probe failed", pfErr)
	}
	return nil
}

// createPreflightProvider resolves the target bucket and connects to it.
// Preflight never provisions: probing a bucket that does not exist yet
// reports the missing bucket instead of creating it.
func createPreflightProvider(ctx context.Context) (*s3.Provider, error) {
	bucket := preflightBucket
	if bucket == "" {
		if cfg := config.GetConfig(); cfg != nil {
			bucket = cfg.Store.Bucket
		}
	}
	if bucket == "" {
		derived, err := deriveDefaultBucket(ctx, preflightRegion, preflightEndpoint, preflightProfile)
		if err != nil {
			observability.CLILogger.Error("Failed to resolve caller identity", zap.Error(err))
			return nil, exitError(foundry.ExitExternalServiceUnavailable, "Cannot derive default bucket, name one with --bucket", err)
		}
		bucket = derived
		observability.CLILogger.Debug("Derived default bucket", zap.String("bucket", bucket))
	}

	prov, err := s3.New(ctx, s3.Config{
		Bucket:   bucket,
		Region:   preflightRegion,
		Endpoint: preflightEndpoint,
		Profile:  preflightProfile,
		// Force path-style URLs when custom endpoint is set.
		ForcePathStyle: preflightEndpoint != "",
	})
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	return prov, nil
}
