// Package match resolves the file arguments of a publish run. An argument
// is either a literal path or a doublestar glob pattern expanded against
// the local filesystem.
package match

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Errors returned by Expand.
var (
	// ErrNoArgs is returned when no file arguments are given.
	ErrNoArgs = errors.New("no input files")

	// ErrNoMatches is returned when a glob pattern matches nothing
	// publishable.
	ErrNoMatches = errors.New("pattern matched no files")

	// ErrInvalidPattern is returned when a pattern cannot be compiled.
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrNotRegularFile is returned when an argument names something other
	// than a regular file.
	ErrNotRegularFile = errors.New("not a regular file")
)

// ExpandError wraps argument-related errors with the offending argument.
type ExpandError struct {
	Arg string
	Err error
}

func (e *ExpandError) Error() string {
	return "argument " + e.Arg + ": " + e.Err.Error()
}

func (e *ExpandError) Unwrap() error {
	return e.Err
}

// Options configures Expand.
type Options struct {
	// IncludeHidden controls whether glob expansion keeps hidden files,
	// meaning paths with a segment starting with '.'. Files named literally
	// are always kept. Default: false.
	IncludeHidden bool
}

// Expand resolves args into the ordered list of files to publish.
//
// Each argument is tried as a literal path first, so a file whose name
// contains glob metacharacters still wins over pattern expansion. Anything
// else is normalized (Windows separators become slashes, escape sequences
// preserved) and expanded with doublestar semantics. Results keep argument
// order with glob hits in walk order; duplicates are dropped.
func Expand(args []string, opts Options) ([]string, error) {
	if len(args) == 0 {
		return nil, ErrNoArgs
	}

	seen := make(map[string]struct{})
	files := make([]string, 0, len(args))
	add := func(path string) {
		path = filepath.Clean(path)
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil {
			if !info.Mode().IsRegular() {
				return nil, &ExpandError{Arg: arg, Err: ErrNotRegularFile}
			}
			add(arg)
			continue
		}

		normalized := NormalizePattern(arg)
		if !doublestar.ValidatePattern(normalized) {
			return nil, &ExpandError{Arg: arg, Err: ErrInvalidPattern}
		}

		if !IsGlobPattern(normalized) {
			// A plain path, possibly spelled with escaped metacharacters.
			literal := unescape(normalized)
			info, err := os.Stat(literal)
			if err != nil {
				return nil, &ExpandError{Arg: arg, Err: err}
			}
			if !info.Mode().IsRegular() {
				return nil, &ExpandError{Arg: arg, Err: ErrNotRegularFile}
			}
			add(literal)
			continue
		}

		matches, err := doublestar.FilepathGlob(normalized,
			doublestar.WithFilesOnly(),
			doublestar.WithFailOnIOErrors(),
		)
		if err != nil {
			return nil, &ExpandError{Arg: arg, Err: err}
		}

		kept := 0
		for _, m := range matches {
			if !opts.IncludeHidden && IsHidden(filepath.ToSlash(filepath.Clean(m))) {
				continue
			}
			add(m)
			kept++
		}
		if kept == 0 {
			return nil, &ExpandError{Arg: arg, Err: ErrNoMatches}
		}
	}

	return files, nil
}
