// Package notebook renders Jupyter notebooks to standalone HTML by shelling
// out to jupyter nbconvert. Conversion happens before publishing, so pages
// built from notebooks go through the same pipeline as plain HTML files.
package notebook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultTemplate is the nbconvert HTML template used when none is set.
const DefaultTemplate = "classic"

// ErrConverterMissing is returned when the jupyter executable cannot be
// found on PATH.
var ErrConverterMissing = errors.New("notebook: jupyter executable not found")

// Converter renders .ipynb files to HTML.
type Converter struct {
	// Jupyter overrides the executable name. Empty means "jupyter".
	Jupyter string

	// Template selects the nbconvert HTML template. Empty means
	// DefaultTemplate.
	Template string
}

// Available reports whether the converter executable is on PATH.
func (c *Converter) Available() bool {
	_, err := exec.LookPath(c.command())
	return err == nil
}

// Convert renders src to a standalone HTML file in dir and returns the
// written path. Images are embedded into the document, so the page needs no
// sidecar files once uploaded.
func (c *Converter) Convert(ctx context.Context, src, dir string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	outName := stem + ".html"

	cmd := exec.CommandContext(ctx, c.command(), "nbconvert",
		"--to", "html",
		"--template", c.template(),
		"--embed-images",
		"--output", outName,
		"--output-dir", dir,
		src,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrConverterMissing
		}
		if msg := lastLine(stderr.String()); msg != "" {
			return "", fmt.Errorf("notebook: convert %s: %w: %s", filepath.Base(src), err, msg)
		}
		return "", fmt.Errorf("notebook: convert %s: %w", filepath.Base(src), err)
	}

	out := filepath.Join(dir, outName)
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("notebook: convert %s: no output written: %w", filepath.Base(src), err)
	}
	return out, nil
}

func (c *Converter) command() string {
	if c.Jupyter != "" {
		return c.Jupyter
	}
	return "jupyter"
}

func (c *Converter) template() string {
	if c.Template != "" {
		return c.Template
	}
	return DefaultTemplate
}

// lastLine extracts the final non-empty line of nbconvert's stderr, which
// carries the actual failure after the traceback.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
