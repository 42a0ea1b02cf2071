package match

import (
	"strings"
)

// Glob metacharacters that can be escaped with backslash in patterns.
const globEscapable = `*?[]{}\`

// NormalizePattern converts a user-provided glob pattern to canonical form.
//
// Normalization rules:
//   - Unescaped backslashes converted to forward slashes (Windows compat)
//   - Escaped backslashes and glob metacharacters preserved (\*, \?, \[, etc.)
//
// This allows Windows users to write arguments like "reports\2024\*.html"
// while preserving escape semantics for literal matching.
func NormalizePattern(pattern string) string {
	if pattern == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(pattern))

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\\' && i+1 < len(runes) {
			next := runes[i+1]
			if strings.ContainsRune(globEscapable, next) {
				// Preserve the escape sequence
				result.WriteRune('\\')
				result.WriteRune(next)
				i++
				continue
			}
			// Unescaped backslash - convert to forward slash
			result.WriteRune('/')
			continue
		}

		if r == '\\' {
			// Trailing backslash
			result.WriteRune('/')
			continue
		}

		result.WriteRune(r)
	}

	return result.String()
}

// IsGlobPattern returns true if the pattern contains unescaped glob
// metacharacters. Escaped metacharacters (\*, \?, \[, \{) are literals, so
// a filename containing an asterisk can still be named exactly.
func IsGlobPattern(pattern string) bool {
	return findFirstUnescapedMeta(pattern) != -1
}

// findFirstUnescapedMeta returns the index of the first unescaped glob
// metacharacter (* ? [ {) in the pattern, or -1 if none found.
//
// A simple IndexAny cannot distinguish literal metacharacters (escaped
// with \) from glob ones, which would misread "file\*.html".
func findFirstUnescapedMeta(pattern string) int {
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]

		if c == '\\' && i+1 < len(pattern) {
			next := pattern[i+1]
			if next == '*' || next == '?' || next == '[' || next == '{' || next == '\\' {
				i++ // Skip the escaped character
				continue
			}
			continue
		}

		if c == '*' || c == '?' || c == '[' || c == '{' {
			return i
		}
	}
	return -1
}

// unescape removes escape backslashes from glob metacharacters, turning a
// pattern with no unescaped metacharacters into the filename it names.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}

	var result strings.Builder
	result.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]

		if c == '\\' && i+1 < len(s) {
			next := s[i+1]
			if next == '*' || next == '?' || next == '[' || next == ']' ||
				next == '{' || next == '}' || next == '\\' {
				result.WriteByte(next)
				i++
				continue
			}
		}

		result.WriteByte(c)
	}

	return result.String()
}

// IsHidden returns true if any path segment starts with a dot, following
// the Unix convention. The path uses '/' separators; "." and ".." segments
// are navigation, not hidden names.
func IsHidden(path string) bool {
	if path == "" {
		return false
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == "." || seg == ".." {
			continue
		}
		if seg != "" && strings.HasPrefix(seg, ".") {
			return true
		}
	}

	return false
}
