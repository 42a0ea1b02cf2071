// Package sniff determines the content type a page is served with.
//
// Extension mapping comes first so the common publishing formats get stable,
// deterministic types; only unknown extensions fall back to sniffing the
// file head. The type chosen at upload is what the store and the gate serve
// forever, so stability matters more than cleverness here.
package sniff

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// sniffLen is how many leading bytes content detection examines, matching
// http.DetectContentType's limit.
const sniffLen = 512

// FallbackType is used when neither the extension nor the content identify
// the file.
const FallbackType = "application/octet-stream"

var byExtension = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".css":   "text/css",
	".js":    "text/javascript",
	".mjs":   "text/javascript",
	".json":  "application/json",
	".xml":   "application/xml",
	".txt":   "text/plain",
	".md":    "text/markdown",
	".csv":   "text/csv",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".pdf":   "application/pdf",
	".wasm":  "application/wasm",
	".map":   "application/json",
	".woff2": "font/woff2",
}

// TypeForFile resolves the serving content type for a local file. Known
// extensions win; anything else is sniffed from the first 512 bytes.
func TypeForFile(path string) (string, error) {
	if ct, ok := byExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return ct, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("sniff %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("sniff %s: %w", path, err)
	}
	return detect(head[:n]), nil
}

// TypeForBytes resolves the serving content type for in-memory content,
// such as a page rewritten before upload. The name supplies the extension
// hint.
func TypeForBytes(name string, data []byte) string {
	if ct, ok := byExtension[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return detect(data)
}

// IsHTML reports whether a content type denotes an HTML document.
// Parameters such as charset are ignored.
func IsHTML(ct string) bool {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct) == "text/html"
}

// ContentIsHTML reports whether the leading bytes probe as an HTML
// document. The file's extension plays no part, so it catches non-HTML
// content hiding behind an .html name.
func ContentIsHTML(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return IsHTML(detect(data))
}

func detect(head []byte) string {
	if len(head) == 0 {
		return FallbackType
	}
	return http.DetectContentType(head)
}
