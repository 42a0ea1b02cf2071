package match

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ApplyExcludes drops files matching any of the exclude patterns. Patterns
// use doublestar semantics and are matched against slash-normalized paths,
// so a pattern like "drafts/**" works on every platform.
func ApplyExcludes(files, excludes []string) ([]string, error) {
	if len(excludes) == 0 {
		return files, nil
	}

	normalized := make([]string, len(excludes))
	for i, pattern := range excludes {
		p := NormalizePattern(pattern)
		if !doublestar.ValidatePattern(p) {
			return nil, &ExpandError{Arg: pattern, Err: ErrInvalidPattern}
		}
		normalized[i] = p
	}

	kept := files[:0:0]
	for _, f := range files {
		slashed := filepath.ToSlash(f)
		excluded := false
		for _, p := range normalized {
			if ok, _ := doublestar.Match(p, slashed); ok {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, f)
		}
	}
	return kept, nil
}
