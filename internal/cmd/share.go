package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagehost/pagehost/internal/config"
	"github.com/pagehost/pagehost/internal/observability"
	"github.com/pagehost/pagehost/pkg/access"
	"github.com/pagehost/pagehost/pkg/manifest"
	"github.com/pagehost/pagehost/pkg/match"
	"github.com/pagehost/pagehost/pkg/output"
	"github.com/pagehost/pagehost/pkg/provider"
	"github.com/pagehost/pagehost/pkg/provider/file"
	"github.com/pagehost/pagehost/pkg/provider/s3"
	"github.com/pagehost/pagehost/pkg/publish"
)

var shareCmd = &cobra.Command{
	Use:   "share [files...]",
	Short: "Publish HTML pages and notebooks to the page store",
	Long: `Publish standalone HTML documents and Jupyter notebooks as shareable pages.

Each file gets a fresh unguessable object key and, unless made public, a
one-time access token baked into its URL. Notebooks are exported to HTML
with jupyter nbconvert before upload.

Files can be named directly, as doublestar globs, or through a share
manifest.

Example:
  pagehost share report.html
  pagehost share "reports/**/*.html" --visibility public
  pagehost share analysis.ipynb --presign --duration 86400
  pagehost share --manifest share.yaml --json`,
	RunE: runShare,
}

var (
	shareManifestPath   string
	shareBucket         string
	shareRegion         string
	shareProfile        string
	shareEndpoint       string
	sharePrefix         string
	shareVisibility     string
	shareResetDatastore bool
	sharePresign        bool
	shareDuration       int
	shareBaseURL        string
	shareConcurrency    int
	shareRateLimit      float64
	shareJSON           bool
	shareOutput         string
	shareIncludeHidden  bool
	shareDryRun         bool
)

func init() {
	rootCmd.AddCommand(shareCmd)

	shareCmd.Flags().StringVarP(&shareManifestPath, "manifest", "m", "", "Path to share manifest (replaces file arguments)")
	shareCmd.Flags().StringVarP(&shareBucket, "bucket", "b", "", "Target bucket (default: derived <username>-pagehost)")
	shareCmd.Flags().StringVarP(&shareRegion, "region", "r", "", "AWS region")
	shareCmd.Flags().StringVarP(&shareProfile, "profile", "p", "", "AWS profile")
	shareCmd.Flags().StringVar(&shareEndpoint, "endpoint", "", "Custom S3 endpoint URL (e.g., http://localhost:5000 for moto)")
	shareCmd.Flags().StringVar(&sharePrefix, "prefix", "", "Key prefix prepended to every page (e.g., teams/web/)")
	shareCmd.Flags().StringVar(&shareVisibility, "visibility", "", "Access mode: public or token-guarded")
	shareCmd.Flags().BoolVar(&shareResetDatastore, "reset", false, "Mint a fresh datastore identity instead of reusing the page's")
	shareCmd.Flags().BoolVar(&sharePresign, "presign", false, "Return a time-limited presigned URL instead of the stable token URL")
	shareCmd.Flags().IntVar(&shareDuration, "duration", 0, "Presigned link lifetime in seconds (max 604800)")
	shareCmd.Flags().StringVar(&shareBaseURL, "base-url", "", "Override the page URL host (e.g., https://pages.example.com)")
	shareCmd.Flags().IntVarP(&shareConcurrency, "concurrency", "c", 0, "Parallel uploads")
	shareCmd.Flags().Float64Var(&shareRateLimit, "rate-limit", 0, "Maximum uploads per second (0 = unlimited)")
	shareCmd.Flags().BoolVar(&shareJSON, "json", false, "Emit JSONL receipts instead of human-readable lines")
	shareCmd.Flags().StringVarP(&shareOutput, "output", "o", "", "Receipt destination: stdout or file:receipts.jsonl (implies --json)")
	shareCmd.Flags().BoolVar(&shareIncludeHidden, "include-hidden", false, "Let glob patterns match hidden files")
	shareCmd.Flags().BoolVar(&shareDryRun, "dry-run", false, "Show the publish plan without uploading")
}

// shareSettings is the fully resolved configuration for one share run.
// Precedence: flags > manifest > config file > defaults.
type shareSettings struct {
	files    []string
	excludes []string

	providerName string
	bucket       string
	region       string
	endpoint     string
	profile      string
	baseDir      string

	prefix         string
	visibility     access.Visibility
	resetDatastore bool
	presign        bool
	duration       int
	baseURL        string
	concurrency    int
	rateLimit      float64

	jsonOut     bool
	destination string
}

func runShare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if IsReadOnly() {
		return exitError(foundry.ExitInvalidArgument, "readonly mode enabled: refusing to publish", fmt.Errorf("disable --readonly or unset PAGEHOST_READONLY"))
	}

	settings, err := resolveShareSettings(cmd, args)
	if err != nil {
		return err
	}

	files, err := match.Expand(settings.files, match.Options{IncludeHidden: shareIncludeHidden})
	if err != nil {
		observability.CLILogger.Error("Failed to resolve input files", zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid input files", err)
	}
	if len(settings.excludes) > 0 {
		files, err = match.ApplyExcludes(files, settings.excludes)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid exclude patterns", err)
		}
		if len(files) == 0 {
			return exitError(foundry.ExitInvalidArgument, "All matched files excluded", match.ErrNoMatches)
		}
	}

	if shareDryRun {
		return showSharePlan(settings, files)
	}

	return executeShare(ctx, settings, files)
}

// resolveShareSettings merges config-file defaults, the manifest (if any),
// and explicitly set flags into one settings snapshot.
func resolveShareSettings(cmd *cobra.Command, args []string) (*shareSettings, error) {
	s := &shareSettings{
		providerName: manifest.DefaultProvider,
		visibility:   access.VisibilityTokenGuarded,
		duration:     manifest.DefaultDurationSeconds,
		concurrency:  manifest.DefaultConcurrency,
		destination:  manifest.DefaultDestination,
	}

	if cfg := config.GetConfig(); cfg != nil {
		s.bucket = cfg.Store.Bucket
		s.region = cfg.Store.Region
		s.endpoint = cfg.Store.Endpoint
		s.profile = cfg.Store.Profile
		s.prefix = cfg.Share.Prefix
		s.baseURL = cfg.Share.BaseURL
		if cfg.Share.Visibility != "" {
			vis, err := access.ParseVisibility(cfg.Share.Visibility)
			if err != nil {
				return nil, exitError(foundry.ExitInvalidArgument, "Invalid share.visibility in config", err)
			}
			s.visibility = vis
		}
		if cfg.Share.DurationSeconds > 0 {
			s.duration = cfg.Share.DurationSeconds
		}
		if cfg.Workers > 0 {
			s.concurrency = cfg.Workers
		}
	}

	if shareManifestPath != "" {
		if len(args) > 0 {
			return nil, exitError(foundry.ExitInvalidArgument, "Cannot combine --manifest with file arguments", fmt.Errorf("list the files under pages.files in %s", shareManifestPath))
		}
		m, err := manifest.Load(shareManifestPath)
		if err != nil {
			observability.CLILogger.Error("Failed to load manifest",
				zap.String("path", shareManifestPath),
				zap.Error(err))
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
		}
		applyShareManifest(s, m)
	} else {
		if len(args) == 0 {
			return nil, exitError(foundry.ExitInvalidArgument, "No input files", match.ErrNoArgs)
		}
		s.files = args
	}

	if err := applyShareFlags(s, cmd); err != nil {
		return nil, err
	}

	if s.concurrency < 1 {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid --concurrency value", fmt.Errorf("concurrency must be at least 1, got %d", s.concurrency))
	}
	if s.duration < 1 {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid --duration value", fmt.Errorf("duration must be at least 1 second, got %d", s.duration))
	}

	return s, nil
}

// applyShareManifest layers manifest values over config-file defaults.
func applyShareManifest(s *shareSettings, m *manifest.Manifest) {
	s.files = m.Pages.Files
	s.excludes = m.Pages.Excludes
	if m.Pages.Prefix != "" {
		s.prefix = m.Pages.Prefix
	}

	if m.Connection.Provider != "" {
		s.providerName = m.Connection.Provider
	}
	if m.Connection.Bucket != "" {
		s.bucket = m.Connection.Bucket
	}
	if m.Connection.Region != "" {
		s.region = m.Connection.Region
	}
	if m.Connection.Endpoint != "" {
		s.endpoint = m.Connection.Endpoint
	}
	if m.Connection.Profile != "" {
		s.profile = m.Connection.Profile
	}
	s.baseDir = m.Connection.BaseDir

	// Validation already ran, so the visibility value is well-formed.
	if vis, err := access.ParseVisibility(m.Share.Visibility); err == nil {
		s.visibility = vis
	}
	s.resetDatastore = m.Share.ResetDatastore
	s.presign = m.Share.Presign
	if m.Share.DurationSeconds > 0 {
		s.duration = m.Share.DurationSeconds
	}
	if m.Share.Concurrency > 0 {
		s.concurrency = m.Share.Concurrency
	}
	if m.Share.RateLimit > 0 {
		s.rateLimit = m.Share.RateLimit
	}
	if m.Share.BaseURL != "" {
		s.baseURL = m.Share.BaseURL
	}

	s.jsonOut = m.Output.JSON
	if m.Output.Destination != "" {
		s.destination = m.Output.Destination
	}
}

// applyShareFlags overlays explicitly set flags. Unset flags never clobber
// manifest or config values.
func applyShareFlags(s *shareSettings, cmd *cobra.Command) error {
	flags := cmd.Flags()

	if flags.Changed("bucket") {
		s.bucket = shareBucket
	}
	if flags.Changed("region") {
		s.region = shareRegion
	}
	if flags.Changed("endpoint") {
		s.endpoint = shareEndpoint
	}
	if flags.Changed("profile") {
		s.profile = shareProfile
	}
	if flags.Changed("prefix") {
		s.prefix = sharePrefix
	}
	if flags.Changed("visibility") {
		vis, err := access.ParseVisibility(shareVisibility)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --visibility value", err)
		}
		s.visibility = vis
	}
	if flags.Changed("reset") {
		s.resetDatastore = shareResetDatastore
	}
	if flags.Changed("presign") {
		s.presign = sharePresign
	}
	if flags.Changed("duration") {
		s.duration = shareDuration
	}
	if flags.Changed("base-url") {
		s.baseURL = shareBaseURL
	}
	if flags.Changed("concurrency") {
		s.concurrency = shareConcurrency
	}
	if flags.Changed("rate-limit") {
		s.rateLimit = shareRateLimit
	}
	if flags.Changed("json") {
		s.jsonOut = shareJSON
	}
	if flags.Changed("output") {
		s.destination = shareOutput
		s.jsonOut = true
	}
	return nil
}

// showSharePlan displays what would be published without uploading.
func showSharePlan(s *shareSettings, files []string) error {
	fmt.Println("=== Share Plan (dry-run) ===")
	fmt.Println()
	fmt.Printf("Provider:    %s\n", s.providerName)
	if s.bucket != "" {
		fmt.Printf("Bucket:      %s\n", s.bucket)
	} else {
		fmt.Println("Bucket:      (derived from caller identity)")
	}
	if s.region != "" {
		fmt.Printf("Region:      %s\n", s.region)
	}
	if s.endpoint != "" {
		fmt.Printf("Endpoint:    %s\n", s.endpoint)
	}
	if s.prefix != "" {
		fmt.Printf("Prefix:      %s\n", s.prefix)
	}
	fmt.Printf("Visibility:  %s\n", s.visibility)
	if s.presign {
		fmt.Printf("Presign:     %s\n", (time.Duration(s.duration) * time.Second).String())
	}
	fmt.Println()
	fmt.Printf("Files (%d):\n", len(files))
	for _, f := range files {
		fmt.Printf("  - %s\n", f)
	}
	fmt.Println()
	fmt.Printf("Concurrency: %d\n", s.concurrency)
	if s.rateLimit > 0 {
		fmt.Printf("Rate Limit:  %.1f req/s\n", s.rateLimit)
	}
	fmt.Println()
	fmt.Println("Plan validated successfully. Remove --dry-run to publish.")
	return nil
}

// executeShare runs the actual publish job.
func executeShare(ctx context.Context, s *shareSettings, files []string) error {
	jobID := uuid.New().String()

	store, err := createShareStore(ctx, s)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if s.visibility == access.VisibilityPublic {
		if err := publish.EnsurePolicy(ctx, store, s.bucket); err != nil {
			observability.CLILogger.Warn("Could not deploy the public read policy; public pages stay reachable through the gate only. Run 'pagehost policy deploy' once permissions allow.",
				zap.String("bucket", s.bucket),
				zap.Error(err))
		}
	}

	var writer output.Writer
	if s.jsonOut {
		w, cleanup, err := createShareWriter(s.destination, jobID, s.providerName)
		if err != nil {
			observability.CLILogger.Error("Failed to create writer", zap.Error(err))
			return exitError(foundry.ExitFileWriteError, "Failed to create output", err)
		}
		defer cleanup()
		writer = w
	}

	reqs := make([]publish.Request, len(files))
	for i, f := range files {
		reqs[i] = publish.Request{
			Path:           f,
			Visibility:     s.visibility,
			Prefix:         s.prefix,
			ResetDatastore: s.resetDatastore,
			Presign:        s.presign,
		}
	}

	pub := publish.New(store, writer, jobID, publish.Config{
		Concurrency: s.concurrency,
		RateLimit:   s.rateLimit,
		LinkTTL:     time.Duration(s.duration) * time.Second,
		URL: publish.URLBuilder{
			BaseURL:   s.baseURL,
			Endpoint:  s.endpoint,
			Bucket:    s.bucket,
			Region:    s.region,
			PathStyle: s.endpoint != "",
		},
	})

	observability.CLILogger.Debug("Starting publish",
		zap.String("job_id", jobID),
		zap.String("bucket", s.bucket),
		zap.Int("files", len(files)),
		zap.Int("concurrency", s.concurrency))

	results, summary, runErr := pub.Run(ctx, reqs)

	if !s.jsonOut {
		printShareResults(results, summary)
	}

	if runErr != nil {
		observability.CLILogger.Warn("Publish cancelled",
			zap.String("job_id", jobID),
			zap.Int64("published", summary.Published))
		return exitError(foundry.ExitSignalInt, "Publish cancelled", runErr)
	}
	if summary.Failed > 0 {
		return exitError(foundry.ExitExternalServiceUnavailable, "Publish completed with errors", fmt.Errorf("%d of %d files failed", summary.Failed, len(files)))
	}

	observability.CLILogger.Debug("Publish completed",
		zap.String("job_id", jobID),
		zap.Int64("published", summary.Published),
		zap.Int64("bytes_total", summary.BytesTotal),
		zap.Duration("duration", summary.Duration))

	return nil
}

// createShareStore builds the page store from the resolved settings. When no
// bucket is named anywhere, the per-user default bucket is derived from the
// caller identity and provisioned on first use. An explicitly named bucket
// must already exist.
func createShareStore(ctx context.Context, s *shareSettings) (provider.Provider, error) {
	if s.providerName == "file" {
		store, err := file.New(file.Config{BaseDir: s.baseDir})
		if err != nil {
			observability.CLILogger.Error("Failed to create provider", zap.Error(err))
			return nil, exitError(foundry.ExitInvalidArgument, "Invalid file provider configuration", err)
		}
		return store, nil
	}

	autoprovision := false
	if s.bucket == "" {
		derived, err := deriveDefaultBucket(ctx, s.region, s.endpoint, s.profile)
		if err != nil {
			observability.CLILogger.Error("Failed to resolve caller identity", zap.Error(err))
			return nil, exitError(foundry.ExitExternalServiceUnavailable, "Cannot derive default bucket, name one with --bucket", err)
		}
		s.bucket = derived
		autoprovision = true
		observability.CLILogger.Debug("Derived default bucket", zap.String("bucket", s.bucket))
	}

	store, err := s3.New(ctx, s3.Config{
		Bucket:   s.bucket,
		Region:   s.region,
		Endpoint: s.endpoint,
		Profile:  s.profile,
		// Force path-style URLs when custom endpoint is set.
		// S3-compatible services (moto, MinIO, etc.) require this.
		ForcePathStyle: s.endpoint != "",
	})
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}

	if autoprovision {
		created, err := store.EnsureBucket(ctx)
		if err != nil {
			_ = store.Close()
			return nil, exitError(foundry.ExitExternalServiceUnavailable, "Cannot provision default bucket "+s.bucket, err)
		}
		if created {
			observability.CLILogger.Info("Created bucket", zap.String("bucket", s.bucket))
		}
	}

	return store, nil
}

// deriveDefaultBucket resolves the caller identity behind the active
// credentials and derives the per-user bucket name from it.
func deriveDefaultBucket(ctx context.Context, region, endpoint, profile string) (string, error) {
	username, err := s3.CallerUsername(ctx, s3.Config{
		Region:         region,
		Endpoint:       endpoint,
		Profile:        profile,
		ForcePathStyle: endpoint != "",
	})
	if err != nil {
		return "", err
	}
	return defaultBucketName(username), nil
}

// defaultBucketName derives the per-user bucket from a caller identity,
// squeezed into S3 naming rules: lowercase, [a-z0-9-], 63 chars max.
func defaultBucketName(username string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(username) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	seed := strings.Trim(b.String(), "-")
	if seed == "" {
		return "pagehost"
	}

	const suffix = "-pagehost"
	if len(seed)+len(suffix) > 63 {
		seed = strings.Trim(seed[:63-len(suffix)], "-")
	}
	return seed + suffix
}

// createShareWriter creates a receipt writer for --json runs.
// Returns the writer, a cleanup function, and any error.
func createShareWriter(dest, jobID, providerName string) (output.Writer, func(), error) {
	if dest == "" || dest == "stdout" {
		w := output.NewJSONLWriter(os.Stdout, jobID, providerName)
		return w, func() { _ = w.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	w := output.NewJSONLWriter(f, jobID, providerName)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}

// printShareResults renders the human-readable receipt lines.
func printShareResults(results []publish.Result, summary *publish.Summary) {
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("✗ %s\n", res.Path)
			fmt.Printf("  %v\n", res.Err)
			continue
		}
		r := res.Receipt
		fmt.Printf("✓ %s\n", res.Path)
		fmt.Printf("  %s\n", r.URL)
		if r.Expires != nil {
			fmt.Printf("  expires %s\n", r.Expires.UTC().Format(time.RFC3339))
		}
	}

	fmt.Println()
	fmt.Printf("Published %d file(s), %d failed, %s in %s\n",
		summary.Published, summary.Failed,
		formatSize(summary.BytesTotal),
		summary.Duration.Round(time.Millisecond))
}
