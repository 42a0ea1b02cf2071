package notebook

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeJupyter installs a shell stub that records its arguments into
// args.txt under the parsed --output-dir, then runs body.
func writeFakeJupyter(t *testing.T, dir, body string) string {
	t.Helper()
	script := `#!/bin/sh
out=""
outdir=""
prev=""
for a in "$@"; do
	case "$prev" in
	--output) out="$a" ;;
	--output-dir) outdir="$a" ;;
	esac
	prev="$a"
done
printf '%s\n' "$@" > "$outdir/args.txt"
` + body + "\n"

	path := filepath.Join(dir, "jupyter")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	fake := writeFakeJupyter(t, dir, `echo "<html><head></head><body>converted</body></html>" > "$outdir/$out"`)

	src := filepath.Join(dir, "analysis.ipynb")
	require.NoError(t, os.WriteFile(src, []byte("{}"), 0o644))

	outDir := t.TempDir()
	c := &Converter{Jupyter: fake}

	out, err := c.Convert(context.Background(), src, outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "analysis.html"), out)

	html, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(html), "converted")

	args, err := os.ReadFile(filepath.Join(outDir, "args.txt"))
	require.NoError(t, err)
	for _, want := range []string{"nbconvert", "--embed-images", DefaultTemplate, src} {
		assert.Contains(t, string(args), want)
	}
}

func TestConvert_TemplateOverride(t *testing.T) {
	dir := t.TempDir()
	fake := writeFakeJupyter(t, dir, `echo "<html></html>" > "$outdir/$out"`)

	src := filepath.Join(dir, "demo.ipynb")
	require.NoError(t, os.WriteFile(src, []byte("{}"), 0o644))

	outDir := t.TempDir()
	c := &Converter{Jupyter: fake, Template: "lab"}

	_, err := c.Convert(context.Background(), src, outDir)
	require.NoError(t, err)

	args, err := os.ReadFile(filepath.Join(outDir, "args.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "lab")
}

func TestConvert_ReportsStderr(t *testing.T) {
	dir := t.TempDir()
	fake := writeFakeJupyter(t, dir, `echo "nbconvert failed: kernel died" >&2
exit 3`)

	src := filepath.Join(dir, "broken.ipynb")
	require.NoError(t, os.WriteFile(src, []byte("{}"), 0o644))

	c := &Converter{Jupyter: fake}
	_, err := c.Convert(context.Background(), src, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel died")
	assert.Contains(t, err.Error(), "broken.ipynb")
}

func TestConvert_NoOutputWritten(t *testing.T) {
	dir := t.TempDir()
	fake := writeFakeJupyter(t, dir, `true`)

	src := filepath.Join(dir, "silent.ipynb")
	require.NoError(t, os.WriteFile(src, []byte("{}"), 0o644))

	c := &Converter{Jupyter: fake}
	_, err := c.Convert(context.Background(), src, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no output written")
}

func TestConvert_MissingExecutable(t *testing.T) {
	c := &Converter{Jupyter: "pagehost-no-such-jupyter"}

	_, err := c.Convert(context.Background(), "report.ipynb", t.TempDir())
	assert.ErrorIs(t, err, ErrConverterMissing)
	assert.False(t, c.Available())
}

func TestConverterDefaults(t *testing.T) {
	c := &Converter{}
	assert.Equal(t, "jupyter", c.command())
	assert.Equal(t, DefaultTemplate, c.template())
}
