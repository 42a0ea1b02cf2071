//go:build cloudintegration

package cmd_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagehost/pagehost/pkg/access"
	"github.com/pagehost/pagehost/test/cloudtest"
)

// findBinary locates the pagehost binary for testing.
// Looks in bin/ directory relative to project root.
func findBinary(t *testing.T) string {
	t.Helper()

	// Try relative to current directory (when running from project root)
	candidates := []string{
		"bin/pagehost",
		"../../bin/pagehost",
		"../../../bin/pagehost",
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			abs, _ := filepath.Abs(path)
			return abs
		}
	}

	t.Skip("pagehost binary not found - run 'make build' first")
	return ""
}

func motoEnv() []string {
	return append(os.Environ(),
		"AWS_ACCESS_KEY_ID="+cloudtest.TestAccessKeyID,
		"AWS_SECRET_ACCESS_KEY="+cloudtest.TestSecretAccessKey,
		"AWS_REGION="+cloudtest.Region,
	)
}

func TestInspectCommand_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()
	binary := findBinary(t)

	t.Run("lists pages in bucket", func(t *testing.T) {
		bucket := cloudtest.CreateBucket(t, ctx)
		cloudtest.PutObjects(t, ctx, bucket, []string{
			"abcdefghijklmnopqrstuv-report",
			"bcdefghijklmnopqrstuvw-notes",
			"teams/cdefghijklmnopqrstuvwx-handbook",
		})

		cmd := exec.Command(binary, "inspect",
			"--bucket", bucket,
			"--endpoint", cloudtest.Endpoint,
			"--json",
		)
		cmd.Env = motoEnv()

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		require.NoError(t, err, "stderr: %s", stderr.String())

		// Parse JSONL output
		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		assert.Len(t, lines, 3, "expected 3 pages")

		for _, line := range lines {
			var obj map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(line), &obj))
			assert.Contains(t, obj, "key")
			assert.Contains(t, obj, "size")
		}
	})

	t.Run("filters by prefix", func(t *testing.T) {
		bucket := cloudtest.CreateBucket(t, ctx)
		cloudtest.PutObjects(t, ctx, bucket, []string{
			"teams/web/abcdefghijklmnopqrstuv-index",
			"teams/web/bcdefghijklmnopqrstuvw-about",
			"teams/data/cdefghijklmnopqrstuvwx-etl",
		})

		cmd := exec.Command(binary, "inspect",
			"teams/web/",
			"--bucket", bucket,
			"--endpoint", cloudtest.Endpoint,
			"--json",
		)
		cmd.Env = motoEnv()

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		require.NoError(t, err, "stderr: %s", stderr.String())

		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		assert.Len(t, lines, 2, "expected 2 pages under teams/web/")
	})

	t.Run("respects limit flag", func(t *testing.T) {
		bucket := cloudtest.CreateBucket(t, ctx)
		cloudtest.PutObjects(t, ctx, bucket, []string{
			"page1", "page2", "page3", "page4", "page5",
		})

		cmd := exec.Command(binary, "inspect",
			"--bucket", bucket,
			"--endpoint", cloudtest.Endpoint,
			"--json",
			"--limit", "2",
		)
		cmd.Env = motoEnv()

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		require.NoError(t, err, "stderr: %s", stderr.String())

		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		assert.Len(t, lines, 2, "expected 2 pages due to limit")
	})

	t.Run("shows access mode for an exact key", func(t *testing.T) {
		bucket := cloudtest.CreateBucket(t, ctx)
		key := "abcdefghijklmnopqrstuv-report"
		cloudtest.PutPage(t, ctx, bucket, key, []byte("<html></html>"), "text/html", map[string]string{
			access.MetaVisibility:  string(access.VisibilityTokenGuarded),
			access.MetaTokenDigest: access.DigestToken("not-a-real-token"),
		})

		cmd := exec.Command(binary, "inspect",
			key,
			"--bucket", bucket,
			"--endpoint", cloudtest.Endpoint,
		)
		cmd.Env = motoEnv()

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		require.NoError(t, err, "stderr: %s", stderr.String())

		out := stdout.String()
		assert.Contains(t, out, key)
		assert.Contains(t, out, "token-guarded")
		assert.Contains(t, out, "digest set")
		assert.NotContains(t, out, access.DigestToken("not-a-real-token"),
			"the stored digest must never be printed")
	})

	t.Run("returns error for non-existent bucket", func(t *testing.T) {
		cmd := exec.Command(binary, "inspect",
			"--bucket", "nonexistent-bucket-12345",
			"--endpoint", cloudtest.Endpoint,
			"--json",
		)
		cmd.Env = motoEnv()

		err := cmd.Run()
		assert.Error(t, err, "expected error for non-existent bucket")
	})
}
