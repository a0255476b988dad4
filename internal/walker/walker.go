// Package walker expands command line paths into the Python files to analyze.
package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-hclog"
)

// SourceExt is the extension of files the walker yields.
const SourceExt = ".py"

// Walker resolves files and directories to a list of source files.
type Walker struct {
	logger  hclog.Logger
	exclude []string
}

// New creates a Walker. Exclude patterns use doublestar syntax and are matched
// against slash-separated paths, both as given and relative to the walked
// directory.
func New(logger hclog.Logger, exclude []string) (*Walker, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return &Walker{logger: logger, exclude: exclude}, nil
}

// Expand returns the source files named by paths in argument order. A
// directory contributes its source files recursively in sorted order. Paths
// that are neither source files nor directories are skipped with a warning.
// Each file appears once.
func (w *Walker) Expand(paths []string) []string {
	var files []string
	seen := make(map[string]struct{})
	add := func(path string) {
		key := filepath.Clean(path)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		files = append(files, path)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			w.logger.Warn("path is not a file or directory, skipping", "path", path, "reason", err)
		case info.IsDir():
			dirFiles, err := w.walkDir(path)
			if err != nil {
				w.logger.Warn("failed to walk directory", "path", path, "reason", err)
			}
			for _, f := range dirFiles {
				add(f)
			}
		case !IsSource(path):
			w.logger.Warn("not a Python source file, skipping", "path", path)
		case w.Excluded(path, ""):
			w.logger.Debug("path excluded", "path", path)
		default:
			add(path)
		}
	}
	return files
}

func (w *Walker) walkDir(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("cannot access path, skipping", "path", path, "reason", err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		if d.IsDir() {
			if w.Excluded(path, root) {
				w.logger.Debug("directory excluded", "path", path)
				return filepath.SkipDir
			}
			return nil
		}
		if !IsSource(path) {
			return nil
		}
		if w.Excluded(path, root) {
			w.logger.Debug("path excluded", "path", path)
			return nil
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// Excluded reports whether path matches an exclude pattern, either as given or
// relative to root when root is set.
func (w *Walker) Excluded(path, root string) bool {
	if len(w.exclude) == 0 {
		return false
	}
	candidates := []string{filepath.ToSlash(path)}
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil {
			candidates = append(candidates, filepath.ToSlash(rel))
		}
	}
	for _, pattern := range w.exclude {
		for _, candidate := range candidates {
			if ok, _ := doublestar.Match(pattern, candidate); ok {
				return true
			}
		}
	}
	return false
}

// IsSource reports whether path has the Python source extension.
func IsSource(path string) bool {
	return filepath.Ext(path) == SourceExt
}
