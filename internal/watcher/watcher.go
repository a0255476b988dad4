// Package watcher re-runs analysis on Python files as they change on disk.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scan-io-git/blockscan/internal/walker"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	defaultMemoSize = 4096
)

// Handler receives a batch of changed source files in sorted order.
type Handler func(ctx context.Context, paths []string)

// Watcher tracks source files under a set of roots and batches their changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	walker    *walker.Walker
	logger    hclog.Logger
	debounce  time.Duration

	mu    sync.Mutex
	roots []string
	files map[string]struct{}
	memo  *lru.Cache[string, string]
}

// New creates a Watcher. Files are filtered with w; a zero debounce uses
// DefaultDebounce.
func New(w *walker.Walker, logger hclog.Logger, debounce time.Duration) (*Watcher, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	memo, err := lru.New[string, string](defaultMemoSize)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		walker:    w,
		logger:    logger,
		debounce:  debounce,
		files:     make(map[string]struct{}),
		memo:      memo,
	}, nil
}

// Add watches paths. Directories are watched recursively; a file is watched
// through its parent directory.
func (w *Watcher) Add(paths []string) error {
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %q: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("cannot watch %q: %w", path, err)
		}

		if !info.IsDir() {
			if err := w.fsWatcher.Add(filepath.Dir(abs)); err != nil {
				return fmt.Errorf("cannot watch %q: %w", path, err)
			}
			w.mu.Lock()
			w.files[abs] = struct{}{}
			w.mu.Unlock()
			continue
		}

		w.mu.Lock()
		w.roots = append(w.roots, abs)
		w.mu.Unlock()
		if err := w.fsWatcher.Add(abs); err != nil {
			return fmt.Errorf("cannot watch %q: %w", path, err)
		}
		w.walkAndAdd(abs, abs)
	}
	return nil
}

// walkAndAdd watches the directories below dir and returns the source files
// already present in them.
func (w *Watcher) walkAndAdd(dir, root string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Debug("failed to read directory", "path", dir, "reason", err)
		return nil
	}

	var found []string
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if w.walker.Excluded(full, root) {
			continue
		}
		if entry.IsDir() {
			if err := w.fsWatcher.Add(full); err != nil {
				w.logger.Debug("failed to watch directory", "path", full, "reason", err)
				continue
			}
			found = append(found, w.walkAndAdd(full, root)...)
			continue
		}
		if walker.IsSource(full) {
			found = append(found, full)
		}
	}
	return found
}

// Sources lists every source file currently tracked.
func (w *Watcher) Sources() []string {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	w.mu.Unlock()

	return w.walker.Expand(append(roots, files...))
}

// Run analyzes every tracked file once, then calls handle with each debounced
// batch of changed files until ctx is done. Files whose content did not
// change since they were last handled are left out of a batch.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	if initial := w.changed(w.Sources()); len(initial) > 0 {
		handle(ctx, initial)
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.logger.Trace("file event", "path", event.Name, "op", event.Op.String())
			for _, path := range w.accept(event) {
				pending[path] = struct{}{}
			}
			if len(pending) > 0 {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "reason", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			clear(pending)
			sort.Strings(paths)
			if changed := w.changed(paths); len(changed) > 0 {
				w.logger.Debug("re-analyzing changed files", "count", len(changed))
				handle(ctx, changed)
			}
		}
	}
}

// accept maps an fsnotify event to the source files it may have changed.
func (w *Watcher) accept(event fsnotify.Event) []string {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.memo.Remove(event.Name)
		return nil
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return nil
	}

	w.mu.Lock()
	_, explicit := w.files[event.Name]
	root := w.rootOf(event.Name)
	w.mu.Unlock()

	if explicit {
		return []string{event.Name}
	}
	if root == "" || w.walker.Excluded(event.Name, root) {
		return nil
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsWatcher.Add(event.Name); err != nil {
				w.logger.Debug("failed to watch directory", "path", event.Name, "reason", err)
				return nil
			}
			return w.walkAndAdd(event.Name, root)
		}
	}
	if !walker.IsSource(event.Name) {
		return nil
	}
	return []string{event.Name}
}

func (w *Watcher) rootOf(path string) string {
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}

// changed returns the paths whose content differs from the last time they
// were seen.
func (w *Watcher) changed(paths []string) []string {
	var out []string
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				w.logger.Warn("cannot read changed file", "path", path, "reason", err)
			}
			continue
		}
		sum := sha256.Sum256(src)
		digest := hex.EncodeToString(sum[:])
		if prev, ok := w.memo.Get(path); ok && prev == digest {
			continue
		}
		w.memo.Add(path, digest)
		out = append(out, path)
	}
	return out
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}
