package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// collectEvents runs the watcher in the background and returns a function
// that snapshots the events seen so far.
func collectEvents(t *testing.T, w *Watcher) func() map[string]EventKind {
	t.Helper()

	var mu sync.Mutex
	seen := make(map[string]EventKind)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx, func(path string, kind EventKind) {
		mu.Lock()
		defer mu.Unlock()
		seen[path] = kind
	})
	t.Cleanup(cancel)

	return func() map[string]EventKind {
		mu.Lock()
		defer mu.Unlock()
		snapshot := make(map[string]EventKind, len(seen))
		for k, v := range seen {
			snapshot[k] = v
		}
		return snapshot
	}
}

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher(t *testing.T) {
	t.Parallel()

	t.Run("delivers create events", func(t *testing.T) {
		t.Parallel()
		w, err := New()
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		defer w.Close()

		dir := t.TempDir()
		if err := w.Watch(dir); err != nil {
			t.Fatalf("Watch() error = %v", err)
		}
		events := collectEvents(t, w)

		path := filepath.Join(dir, "fresh.pdf")
		if err := os.WriteFile(path, []byte("%PDF-1.7"), 0o644); err != nil {
			t.Fatalf("writing file: %v", err)
		}

		if !waitFor(t, func() bool { _, ok := events()[path]; return ok }) {
			t.Fatalf("no event delivered for %s", path)
		}
	})

	t.Run("watches directories created after start", func(t *testing.T) {
		t.Parallel()
		w, err := New()
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		defer w.Close()

		dir := t.TempDir()
		if err := w.Watch(dir); err != nil {
			t.Fatalf("Watch() error = %v", err)
		}
		events := collectEvents(t, w)

		sub := filepath.Join(dir, "nested")
		if err := os.Mkdir(sub, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}

		// Give the watcher a beat to pick up the new directory, then
		// create a file inside it.
		path := filepath.Join(sub, "inside.exe")
		if !waitFor(t, func() bool {
			if err := os.WriteFile(path, []byte("MZ"), 0o644); err != nil {
				return false
			}
			_, ok := events()[path]
			return ok
		}) {
			t.Fatalf("no event delivered for file in new subdirectory")
		}
	})

	t.Run("watching a file path is a no-op", func(t *testing.T) {
		t.Parallel()
		w, err := New()
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		defer w.Close()

		path := filepath.Join(t.TempDir(), "plain.txt")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("writing file: %v", err)
		}
		if err := w.Watch(path); err != nil {
			t.Errorf("Watch(file) error = %v, want nil", err)
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		t.Parallel()
		w, err := New()
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("first Close() error = %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("second Close() error = %v", err)
		}
	})
}

func TestIsSubPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path   string
		parent string
		want   bool
	}{
		{"/a/b/c", "/a/b", true},
		{"/a/b", "/a/b", false},
		{"/a/bc", "/a/b", false},
		{"/x/y", "/a", false},
	}
	for _, tc := range cases {
		if got := isSubPath(tc.path, tc.parent); got != tc.want {
			t.Errorf("isSubPath(%q, %q) = %t, want %t", tc.path, tc.parent, got, tc.want)
		}
	}
}

func TestEventKindString(t *testing.T) {
	t.Parallel()

	if Created.String() != "created" {
		t.Errorf("Created.String() = %q", Created.String())
	}
	if Modified.String() != "modified" {
		t.Errorf("Modified.String() = %q", Modified.String())
	}
}
