package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	return path
}

func TestHashFile(t *testing.T) {
	t.Parallel()

	t.Run("hashes full content", func(t *testing.T) {
		t.Parallel()
		content := []byte("%PDF-1.4 not actually a jpeg")
		path := writeTestFile(t, content)

		want := sha256.Sum256(content)
		got, err := HashFile(path)
		if err != nil {
			t.Fatalf("HashFile() error = %v", err)
		}
		if got != hex.EncodeToString(want[:]) {
			t.Errorf("HashFile() = %q, want %q", got, hex.EncodeToString(want[:]))
		}
	})

	t.Run("missing file returns error", func(t *testing.T) {
		t.Parallel()
		if _, err := HashFile(filepath.Join(t.TempDir(), "gone.bin")); err == nil {
			t.Fatal("HashFile() error = nil, want error")
		}
	})
}

func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("collects full evidence", func(t *testing.T) {
		t.Parallel()
		content := []byte{0x4D, 0x5A, 0x90, 0x00, 0x03}
		path := writeTestFile(t, content)

		c := NewCollector(true, ProcessIdentity{})
		ev := c.Collect(path, content[:2])

		if ev.HeaderHex != "4d5a" {
			t.Errorf("HeaderHex = %q, want %q", ev.HeaderHex, "4d5a")
		}
		if ev.Size != int64(len(content)) {
			t.Errorf("Size = %d, want %d", ev.Size, len(content))
		}
		if ev.Owner == "" {
			t.Error("Owner is empty")
		}
		want := sha256.Sum256(content)
		if ev.SHA256 != hex.EncodeToString(want[:]) {
			t.Errorf("SHA256 = %q, want %q", ev.SHA256, hex.EncodeToString(want[:]))
		}
		if ev.ModTime.IsZero() {
			t.Error("ModTime is zero")
		}
	})

	t.Run("hashing disabled leaves hash empty", func(t *testing.T) {
		t.Parallel()
		path := writeTestFile(t, []byte("content"))

		c := NewCollector(false, ProcessIdentity{})
		ev := c.Collect(path, []byte("co"))

		if ev.SHA256 != "" {
			t.Errorf("SHA256 = %q, want empty", ev.SHA256)
		}
	})

	t.Run("vanished file degrades instead of aborting", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "vanished.exe")

		c := NewCollector(true, ProcessIdentity{})
		ev := c.Collect(path, []byte{0x4D, 0x5A})

		if ev.SHA256 != HashUnavailable {
			t.Errorf("SHA256 = %q, want %q", ev.SHA256, HashUnavailable)
		}
		if ev.HeaderHex != "4d5a" {
			t.Errorf("HeaderHex = %q, want %q", ev.HeaderHex, "4d5a")
		}
		if ev.Owner == "" {
			t.Error("Owner is empty, want process identity fallback")
		}
	})
}

func TestOwnerLookup(t *testing.T) {
	t.Parallel()

	t.Run("disabled lookup reports process identity", func(t *testing.T) {
		t.Parallel()
		lookup := NewOwnerLookup(false)
		if _, ok := lookup.(ProcessIdentity); !ok {
			t.Errorf("NewOwnerLookup(false) = %T, want ProcessIdentity", lookup)
		}
	})

	t.Run("system lookup resolves own files", func(t *testing.T) {
		t.Parallel()
		path := writeTestFile(t, []byte("mine"))
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}

		lookup := NewOwnerLookup(true)
		owner := lookup.Owner(path, info)
		if owner == "" {
			t.Error("Owner() is empty")
		}
	})

	t.Run("nil info still returns something usable", func(t *testing.T) {
		t.Parallel()
		lookup := NewOwnerLookup(true)
		if owner := lookup.Owner("/nonexistent", nil); owner == "" {
			t.Error("Owner() is empty for nil info")
		}
	})
}
