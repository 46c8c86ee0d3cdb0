// Package scan discovers convertible images below a root directory.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WorkItem is one source image to convert. It is never mutated after Scan.
type WorkItem struct {
	// RelPath is relative to the scan root and mirrors into the output tree.
	RelPath string
	// Path is the absolute source path.
	Path string
	// Display is the file name used in logs.
	Display string
}

var (
	ErrNotFound      = errors.New("scan root not found")
	ErrNotADirectory = errors.New("scan root is not a directory")
)

// RootError reports an unusable scan root. Nothing is scanned when it is returned.
type RootError struct {
	Path string
	Kind error
	Err  error
}

func (e *RootError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %q: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %q", e.Kind, e.Path)
}

// Is matches the Kind sentinel so callers can use errors.Is(err, ErrNotFound).
func (e *RootError) Is(target error) bool { return target == e.Kind }

func (e *RootError) Unwrap() error { return e.Err }

// Option tunes a Scan.
type Option func(*options)

type options struct {
	excluded []string
}

// WithExclude prunes dir and everything below it. Relative paths are resolved
// against the working directory. Empty values are ignored.
func WithExclude(dir string) Option {
	return func(o *options) {
		if strings.TrimSpace(dir) == "" {
			return
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		o.excluded = append(o.excluded, filepath.Clean(abs))
	}
}

// Scan walks root depth-first and returns one WorkItem per eligible image,
// sorted by RelPath. Any read error inside the tree aborts the scan.
func Scan(root string, opts ...Option) ([]WorkItem, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &RootError{Path: root, Kind: ErrNotFound, Err: err}
		}
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, &RootError{Path: root, Kind: ErrNotADirectory}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	// WalkDir does not descend into a symlinked root.
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	items := make([]WorkItem, 0, 128)
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			if path != absRoot && isExcluded(path, o.excluded) {
				return filepath.SkipDir
			}
			return nil
		}

		// WalkDir does not follow symlinks, so a link to a directory is
		// neither descended into nor eligible.
		if !IsEligible(path) {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}

		items = append(items, WorkItem{
			RelPath: rel,
			Path:    path,
			Display: d.Name(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].RelPath < items[j].RelPath })
	return items, nil
}

func isExcluded(path string, excluded []string) bool {
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(filepath.Separator))
}
