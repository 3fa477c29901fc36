// Package watch delivers file create and modify events from watched
// directory trees into the detection engine.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/filewarden/filewarden/pkg/warden/logging"
)

// EventKind is the kind of file event delivered to the pipeline.
type EventKind int

const (
	// Created means a new file appeared.
	Created EventKind = iota

	// Modified means an existing file was written.
	Modified
)

// String returns the event kind name.
func (k EventKind) String() string {
	if k == Created {
		return "created"
	}
	return "modified"
}

// Watcher watches directory trees for file creation and modification.
// Deletions and renames only adjust the watch set; they are never
// delivered to the pipeline.
type Watcher struct {
	watcher *fsnotify.Watcher
	paths   map[string]bool
	mu      sync.RWMutex
	closed  bool
}

// New creates a new Watcher.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: fsw,
		paths:   make(map[string]bool),
	}, nil
}

// Watch starts watching a path recursively.
// It adds watches to the root directory and all subdirectories.
// Symlinks are not followed to avoid loops.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return nil // Only watch directories
	}

	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Skip entries with errors
		}

		// Skip symlinks to avoid loops
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if d.IsDir() {
			return w.addWatch(path)
		}

		return nil
	})
}

// addWatch adds a single directory to the watch list.
func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	if w.paths[path] {
		return nil
	}

	if err := w.watcher.Add(path); err != nil {
		logging.Get("watcher").Warn("failed to add watch", "path", path, "error", err)
		return err
	}

	w.paths[path] = true
	return nil
}

// Run starts the event loop. It blocks until the context is cancelled.
// onEvent is called for each file creation or modification with the path
// and event kind.
func (w *Watcher) Run(ctx context.Context, onEvent func(path string, kind EventKind)) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			w.handleEvent(event, onEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get("watcher").Error("watcher error", "error", err)
		}
	}
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event, onEvent func(path string, kind EventKind)) {
	switch {
	case event.Op&fsnotify.Create != 0:
		w.handleCreate(event.Name, onEvent)
	case event.Op&fsnotify.Write != 0:
		w.handleWrite(event.Name, onEvent)
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		// Gone paths only shrink the watch set; the new name of a rename
		// arrives as its own create event.
		w.dropWatches(event.Name)
	}
}

// handleCreate handles file/directory creation events.
func (w *Watcher) handleCreate(path string, onEvent func(path string, kind EventKind)) {
	info, err := os.Lstat(path)
	if err != nil {
		return // File might have been deleted already
	}

	// Skip symlinks
	if info.Mode()&fs.ModeSymlink != 0 {
		return
	}

	// New directories join the watch set, including any subdirectories
	// created along with them.
	if info.IsDir() {
		_ = w.addWatch(path)

		_ = filepath.WalkDir(path, func(subpath string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil //nolint:nilerr // Skip entries with errors
			}
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			if d.IsDir() && subpath != path {
				_ = w.addWatch(subpath)
			}
			return nil
		})
		return
	}

	if onEvent != nil {
		onEvent(path, Created)
	}
}

// handleWrite handles file modification events.
func (w *Watcher) handleWrite(path string, onEvent func(path string, kind EventKind)) {
	info, err := os.Stat(path)
	if err != nil {
		return // File might have been deleted
	}

	if info.IsDir() {
		return
	}

	if onEvent != nil {
		onEvent(path, Modified)
	}
}

// dropWatches removes the path and any child paths from the watch set.
func (w *Watcher) dropWatches(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.paths[path] {
		_ = w.watcher.Remove(path)
		delete(w.paths, path)
	}

	for childPath := range w.paths {
		if isSubPath(childPath, path) {
			_ = w.watcher.Remove(childPath)
			delete(w.paths, childPath)
		}
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
