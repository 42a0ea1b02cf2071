package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagehost/pagehost/internal/config"
	"github.com/pagehost/pagehost/internal/observability"
	"github.com/pagehost/pagehost/pkg/access"
	"github.com/pagehost/pagehost/pkg/provider"
	"github.com/pagehost/pagehost/pkg/provider/s3"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [key]",
	Short: "Inspect published pages in the store",
	Long: `Inspect what the page store holds without touching it.

Without arguments the whole bucket is listed. A "/"-terminated argument
lists under that prefix; anything else is treated as an exact object key
and shows the page's stored details, including its access mode.

Examples:
  pagehost inspect
  pagehost inspect teams/web/
  pagehost inspect VGhpcyBpcyBub3QgYSBr-report
  pagehost inspect --limit 10 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

var (
	inspectBucket   string
	inspectRegion   string
	inspectProfile  string
	inspectEndpoint string
	inspectLimit    int
	inspectJSON     bool
)

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectBucket, "bucket", "b", "", "Bucket to inspect (default: derived <username>-pagehost)")
	inspectCmd.Flags().StringVarP(&inspectRegion, "region", "r", "", "AWS region")
	inspectCmd.Flags().StringVarP(&inspectProfile, "profile", "p", "", "AWS profile")
	inspectCmd.Flags().StringVar(&inspectEndpoint, "endpoint", "", "Custom S3 endpoint")
	inspectCmd.Flags().IntVarP(&inspectLimit, "limit", "n", 100, "Max objects to list")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	target := ""
	if len(args) == 1 {
		target = args[0]
	}

	prov, err := createInspectProvider(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = prov.Close() }()

	if isExactPageKey(target) {
		meta, err := prov.Head(ctx, target)
		if err != nil {
			if provider.IsNotFound(err) {
				return exitError(foundry.ExitFileNotFound, "No such page", err)
			}
			observability.CLILogger.Error("Failed to inspect page", zap.Error(err))
			return exitError(foundry.ExitExternalServiceUnavailable, "Failed to inspect page", err)
		}
		if inspectJSON {
			return outputJSON([]provider.ObjectSummary{meta.ObjectSummary})
		}
		return outputPageDetail(target, meta)
	}

	objects, err := listPages(ctx, prov, target)
	if err != nil {
		observability.CLILogger.Error("Failed to list pages", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to list pages", err)
	}

	if inspectJSON {
		return outputJSON(objects)
	}
	return outputTable(objects)
}

// isExactPageKey reports whether target names a single object rather than a
// prefix or the bucket root.
func isExactPageKey(target string) bool {
	return target != "" && !strings.HasSuffix(target, "/")
}

// createInspectProvider connects to the bucket under inspection.
func createInspectProvider(ctx context.Context) (*s3.Provider, error) {
	bucket := inspectBucket
	if bucket == "" {
		if cfg := config.GetConfig(); cfg != nil {
			bucket = cfg.Store.Bucket
		}
	}
	if bucket == "" {
		derived, err := deriveDefaultBucket(ctx, inspectRegion, inspectEndpoint, inspectProfile)
		if err != nil {
			observability.CLILogger.Error("Failed to resolve caller identity", zap.Error(err))
			return nil, exitError(foundry.ExitExternalServiceUnavailable, "Cannot derive default bucket, name one with --bucket", err)
		}
		bucket = derived
		observability.CLILogger.Debug("Derived default bucket", zap.String("bucket", bucket))
	}

	prov, err := s3.New(ctx, s3.Config{
		Bucket:   bucket,
		Region:   inspectRegion,
		Endpoint: inspectEndpoint,
		Profile:  inspectProfile,
		// Force path-style URLs when custom endpoint is set.
		// S3-compatible services (moto, MinIO, etc.) require this.
		ForcePathStyle: inspectEndpoint != "",
	})
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	return prov, nil
}

// listPages lists objects under the target prefix, paginated up to
// inspectLimit. An empty target lists the whole bucket.
func listPages(ctx context.Context, prov provider.Provider, target string) ([]provider.ObjectSummary, error) {
	var objects []provider.ObjectSummary
	var continuationToken string

	for len(objects) < inspectLimit {
		result, err := prov.List(ctx, provider.ListOptions{
			Prefix:            target,
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, err
		}

		for _, obj := range result.Objects {
			objects = append(objects, obj)
			if len(objects) >= inspectLimit {
				break
			}
		}

		if !result.IsTruncated || result.ContinuationToken == "" {
			break
		}
		continuationToken = result.ContinuationToken
	}

	return objects, nil
}

// objectOutput is the JSON output structure for inspect.
type objectOutput struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag,omitempty"`
}

// outputJSON writes objects as JSONL to stdout.
func outputJSON(objects []provider.ObjectSummary) error {
	enc := json.NewEncoder(os.Stdout)
	for _, obj := range objects {
		out := objectOutput{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode object: %w", err)
		}
	}
	return nil
}

// outputPageDetail writes a single page's stored state to stdout. The token
// digest itself is never shown; only whether one is set.
func outputPageDetail(key string, meta *provider.ObjectMeta) error {
	policy := access.PolicyFromMetadata(meta.Metadata)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Key:\t%s\n", key)
	fmt.Fprintf(w, "Size:\t%s\n", formatSize(meta.Size))
	fmt.Fprintf(w, "Modified:\t%s\n", meta.LastModified.Format("2006-01-02 15:04:05"))
	if meta.ContentType != "" {
		fmt.Fprintf(w, "Content-Type:\t%s\n", meta.ContentType)
	}
	if meta.CacheControl != "" {
		fmt.Fprintf(w, "Cache-Control:\t%s\n", meta.CacheControl)
	}
	fmt.Fprintf(w, "Visibility:\t%s\n", policy.Visibility)
	if policy.Visibility == access.VisibilityTokenGuarded {
		if policy.TokenDigest != "" {
			fmt.Fprintln(w, "Token:\tdigest set")
		} else {
			fmt.Fprintln(w, "Token:\tno digest, page cannot be read")
		}
	}
	for mk, mv := range meta.Metadata {
		switch strings.ToLower(mk) {
		case "pagehost-original-filename":
			fmt.Fprintf(w, "Original file:\t%s\n", mv)
		case "pagehost-upload-id":
			fmt.Fprintf(w, "Upload ID:\t%s\n", mv)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// outputTable writes objects as a formatted table to stdout.
func outputTable(objects []provider.ObjectSummary) error {
	if len(objects) == 0 {
		fmt.Println("No pages found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	// Header
	if _, err := fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	var totalSize int64
	for _, obj := range objects {
		totalSize += obj.Size
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n",
			obj.Key,
			formatSize(obj.Size),
			obj.LastModified.Format("2006-01-02 15:04:05")); err != nil {
			return fmt.Errorf("failed to write object: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	fmt.Println()
	fmt.Printf("Found %d object(s) (%s total)\n", len(objects), formatSize(totalSize))

	return nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
