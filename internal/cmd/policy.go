package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagehost/pagehost/internal/config"
	"github.com/pagehost/pagehost/internal/observability"
	"github.com/pagehost/pagehost/pkg/access"
	"github.com/pagehost/pagehost/pkg/provider"
	"github.com/pagehost/pagehost/pkg/provider/s3"
	"github.com/pagehost/pagehost/pkg/publish"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage the bucket policy behind public pages",
	Long: `Inspect and deploy the tag-scoped bucket policy that lets anonymous
readers fetch public pages directly from the store.

The policy grants s3:GetObject only on objects tagged public at publish
time; guarded pages stay private regardless. Publishing public pages
without the policy still works, but those pages are reachable through
the gate only.

Example:
  pagehost policy show --bucket alice-pagehost
  pagehost policy deploy --bucket alice-pagehost`,
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the bucket's current policy document",
	RunE:  runPolicyShow,
}

var policyDeployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the public read policy to the bucket",
	RunE:  runPolicyDeploy,
}

var (
	policyBucket   string
	policyRegion   string
	policyProfile  string
	policyEndpoint string
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyDeployCmd)

	for _, c := range []*cobra.Command{policyShowCmd, policyDeployCmd} {
		c.Flags().StringVarP(&policyBucket, "bucket", "b", "", "Target bucket")
		c.Flags().StringVarP(&policyRegion, "region", "r", "", "AWS region")
		c.Flags().StringVarP(&policyProfile, "profile", "p", "", "AWS profile")
		c.Flags().StringVar(&policyEndpoint, "endpoint", "", "Custom S3 endpoint URL")
	}
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	bucket, err := resolvePolicyBucket()
	if err != nil {
		return err
	}

	store, err := createPolicyStore(ctx, bucket)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	current, err := store.GetBucketPolicy(ctx)
	if provider.IsNoBucketPolicy(err) {
		expected, buildErr := access.BucketPolicyJSON(bucket)
		if buildErr != nil {
			return exitError(foundry.ExitInvalidArgument, "Cannot render policy document", buildErr)
		}
		fmt.Printf("No policy set on bucket %s.\n", bucket)
		fmt.Println()
		fmt.Println("'pagehost policy deploy' would install:")
		fmt.Println(expected)
		return nil
	}
	if err != nil {
		observability.CLILogger.Error("Failed to read bucket policy", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to read bucket policy", err)
	}

	fmt.Println(current)
	return nil
}

func runPolicyDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if IsReadOnly() {
		return exitError(foundry.ExitInvalidArgument, "readonly mode enabled: refusing to deploy bucket policy", fmt.Errorf("disable --readonly or unset PAGEHOST_READONLY"))
	}

	bucket, err := resolvePolicyBucket()
	if err != nil {
		return err
	}

	store, err := createPolicyStore(ctx, bucket)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := publish.EnsurePolicy(ctx, store, bucket); err != nil {
		observability.CLILogger.Error("Failed to deploy bucket policy", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to deploy bucket policy", err)
	}

	observability.CLILogger.Info("Deployed public read policy", zap.String("bucket", bucket))
	return nil
}

func resolvePolicyBucket() (string, error) {
	bucket := policyBucket
	if bucket == "" {
		if cfg := config.GetConfig(); cfg != nil {
			bucket = cfg.Store.Bucket
		}
	}
	if bucket == "" {
		return "", exitError(foundry.ExitInvalidArgument, "No bucket", fmt.Errorf("name one with --bucket or store.bucket in the config"))
	}
	return bucket, nil
}

func createPolicyStore(ctx context.Context, bucket string) (*s3.Provider, error) {
	store, err := s3.New(ctx, s3.Config{
		Bucket:         bucket,
		Region:         policyRegion,
		Endpoint:       policyEndpoint,
		Profile:        policyProfile,
		ForcePathStyle: policyEndpoint != "",
	})
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	return store, nil
}
