package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePattern(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"simple path", "reports/q1.html", "reports/q1.html"},
		{"glob pattern", "reports/**/*.html", "reports/**/*.html"},

		// Backslash to forward slash conversion (Windows compat)
		{"backslashes converted", "reports\\2024\\q1.html", "reports/2024/q1.html"},
		{"mixed slashes", "reports\\2024/q1.html", "reports/2024/q1.html"},
		{"trailing backslash", "reports\\2024\\", "reports/2024/"},

		// Escape sequences preserved
		{"escaped asterisk", "reports/file\\*.html", "reports/file\\*.html"},
		{"escaped question", "reports/file\\?.html", "reports/file\\?.html"},
		{"escaped bracket", "reports/file\\[0-9\\].html", "reports/file\\[0-9\\].html"},
		{"escaped brace", "reports/file\\{a,b\\}.html", "reports/file\\{a,b\\}.html"},
		{"escaped backslash", "reports/file\\\\.html", "reports/file\\\\.html"},

		// Mixed escapes and path separators
		{"windows path with escape", "reports\\2024\\file\\*.html", "reports/2024/file\\*.html"},

		{"single backslash", "\\", "/"},
		{"double backslash", "\\\\", "\\\\"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePattern(tt.input))
		})
	}
}

func TestIsGlobPattern(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected bool
	}{
		{"plain path", "reports/q1.html", false},
		{"empty", "", false},
		{"star", "*.html", true},
		{"doublestar", "reports/**/*.html", true},
		{"question mark", "q?.html", true},
		{"char class", "q[12].html", true},
		{"alternates", "{q1,q2}.html", true},
		{"escaped star is literal", "file\\*.html", false},
		{"escaped brackets are literal", "release\\[1\\].html", false},
		{"escaped then real meta", "file\\*-*.html", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsGlobPattern(tt.pattern))
		})
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no escapes", "reports/q1.html", "reports/q1.html"},
		{"escaped asterisk", "file\\*.html", "file*.html"},
		{"escaped brackets", "release\\[1\\].html", "release[1].html"},
		{"escaped braces", "a\\{b\\}.html", "a{b}.html"},
		{"escaped backslash", "a\\\\b.html", "a\\b.html"},
		{"lone trailing backslash kept", "a\\", "a\\"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, unescape(tt.input))
		})
	}
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"plain file", "reports/q1.html", false},
		{"empty", "", false},
		{"hidden file", ".draft.html", true},
		{"hidden directory", "reports/.archive/q1.html", true},
		{"hidden leaf", "reports/.gitignore", true},
		{"dot segment is navigation", "./q1.html", false},
		{"dotdot segment is navigation", "../build/q1.html", false},
		{"double dot prefix name", "reports/..hidden.html", true},
		{"trailing dot is not hidden", "reports/q1.html.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsHidden(tt.path))
		})
	}
}
