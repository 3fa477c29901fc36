package quarantine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupManager(t *testing.T, keepOriginal bool) *Manager {
	t.Helper()
	m, err := New(filepath.Join(t.TempDir(), "quarantine"), keepOriginal)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := m.EnsureRoot(); err != nil {
		t.Fatalf("EnsureRoot() error = %v", err)
	}
	return m
}

func writeSource(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}
	return path
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("rejects empty root", func(t *testing.T) {
		t.Parallel()
		if _, err := New("", false); err == nil {
			t.Fatal("New(\"\") error = nil, want error")
		}
	})

	t.Run("does not create root eagerly", func(t *testing.T) {
		t.Parallel()
		root := filepath.Join(t.TempDir(), "q")

		if _, err := New(root, false); err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, err := os.Stat(root); !os.IsNotExist(err) {
			t.Error("root created before EnsureRoot()")
		}
	})
}

func TestQuarantine(t *testing.T) {
	t.Parallel()

	t.Run("moves file into incident directory", func(t *testing.T) {
		t.Parallel()
		m := setupManager(t, false)
		src := writeSource(t, "invoice.pdf", []byte("MZ not a pdf"))

		rec, err := m.Quarantine(IncidentRecord{
			FilePath:         src,
			ClaimedExtension: "pdf",
			ActualType:       "pe",
			SHA256:           "abc123",
			Size:             12,
		})
		if err != nil {
			t.Fatalf("Quarantine() error = %v", err)
		}

		if rec.ID == "" {
			t.Error("ID is empty")
		}
		if rec.Mode != ModeMove {
			t.Errorf("Mode = %v, want %v", rec.Mode, ModeMove)
		}
		if rec.FileName != "invoice.pdf" {
			t.Errorf("FileName = %q, want %q", rec.FileName, "invoice.pdf")
		}

		// Source is gone, quarantined copy exists
		if _, err := os.Stat(src); !os.IsNotExist(err) {
			t.Error("source file still exists after move")
		}
		data, err := os.ReadFile(rec.QuarantinePath)
		if err != nil {
			t.Fatalf("reading quarantined file: %v", err)
		}
		if string(data) != "MZ not a pdf" {
			t.Errorf("quarantined content = %q, want original content", data)
		}
	})

	t.Run("copy mode preserves original", func(t *testing.T) {
		t.Parallel()
		m := setupManager(t, true)
		src := writeSource(t, "notes.docx", []byte("PK\x03\x04fake"))

		rec, err := m.Quarantine(IncidentRecord{FilePath: src})
		if err != nil {
			t.Fatalf("Quarantine() error = %v", err)
		}

		if rec.Mode != ModeCopy {
			t.Errorf("Mode = %v, want %v", rec.Mode, ModeCopy)
		}
		if _, err := os.Stat(src); err != nil {
			t.Errorf("original removed in copy mode: %v", err)
		}
		if _, err := os.Stat(rec.QuarantinePath); err != nil {
			t.Errorf("quarantined copy missing: %v", err)
		}
	})

	t.Run("writes metadata artifact", func(t *testing.T) {
		t.Parallel()
		m := setupManager(t, false)
		src := writeSource(t, "payload.jpg", []byte("%PDF-1.4"))

		detected := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
		rec, err := m.Quarantine(IncidentRecord{
			FilePath:         src,
			ClaimedExtension: "jpg",
			ActualType:       "pdf",
			SHA256:           "deadbeef",
			Owner:            "mallory",
			Size:             8,
			MagicHex:         "255044462d312e34",
			DetectedAt:       detected,
			Hostname:         "workstation-7",
			Username:         "operator",
		})
		if err != nil {
			t.Fatalf("Quarantine() error = %v", err)
		}

		got, err := m.Get(rec.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.ClaimedExtension != "jpg" || got.ActualType != "pdf" {
			t.Errorf("record = %s/%s, want jpg/pdf", got.ClaimedExtension, got.ActualType)
		}
		if got.SHA256 != "deadbeef" {
			t.Errorf("SHA256 = %q, want %q", got.SHA256, "deadbeef")
		}
		if !got.DetectedAt.Equal(detected) {
			t.Errorf("DetectedAt = %v, want %v", got.DetectedAt, detected)
		}
		if got.QuarantinePath != rec.QuarantinePath {
			t.Errorf("QuarantinePath = %q, want %q", got.QuarantinePath, rec.QuarantinePath)
		}
	})

	t.Run("vanished source reports ErrSourceVanished", func(t *testing.T) {
		t.Parallel()
		m := setupManager(t, false)

		_, err := m.Quarantine(IncidentRecord{
			FilePath: filepath.Join(t.TempDir(), "already-gone.exe"),
		})
		if !errors.Is(err, ErrSourceVanished) {
			t.Errorf("Quarantine() error = %v, want ErrSourceVanished", err)
		}
	})

	t.Run("second quarantine of same path is benign", func(t *testing.T) {
		t.Parallel()
		m := setupManager(t, false)
		src := writeSource(t, "double.scr", []byte("MZ"))

		if _, err := m.Quarantine(IncidentRecord{FilePath: src}); err != nil {
			t.Fatalf("first Quarantine() error = %v", err)
		}
		if _, err := m.Quarantine(IncidentRecord{FilePath: src}); !errors.Is(err, ErrSourceVanished) {
			t.Errorf("second Quarantine() error = %v, want ErrSourceVanished", err)
		}

		// Exactly one incident was recorded
		records, err := m.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(records) != 1 {
			t.Errorf("len(records) = %d, want 1", len(records))
		}
	})

	t.Run("distinct directories for same-second detections", func(t *testing.T) {
		t.Parallel()
		m := setupManager(t, false)
		now := time.Now().UTC()

		seen := make(map[string]bool)
		for i := 0; i < 5; i++ {
			src := writeSource(t, "burst.exe", []byte("MZ"))
			rec, err := m.Quarantine(IncidentRecord{FilePath: src, DetectedAt: now})
			if err != nil {
				t.Fatalf("Quarantine() error = %v", err)
			}
			if seen[rec.ID] {
				t.Fatalf("duplicate incident ID %q", rec.ID)
			}
			seen[rec.ID] = true
		}
	})
}

func TestList(t *testing.T) {
	t.Parallel()

	t.Run("empty root lists nothing", func(t *testing.T) {
		t.Parallel()
		m := setupManager(t, false)

		records, err := m.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(records) != 0 {
			t.Errorf("len(records) = %d, want 0", len(records))
		}
	})

	t.Run("missing root lists nothing", func(t *testing.T) {
		t.Parallel()
		m, err := New(filepath.Join(t.TempDir(), "never-created"), false)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		records, err := m.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(records) != 0 {
			t.Errorf("len(records) = %d, want 0", len(records))
		}
	})

	t.Run("newest first with limit", func(t *testing.T) {
		t.Parallel()
		m := setupManager(t, false)
		base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

		for i := 0; i < 4; i++ {
			src := writeSource(t, "f.exe", []byte("MZ"))
			_, err := m.Quarantine(IncidentRecord{
				FilePath:   src,
				DetectedAt: base.Add(time.Duration(i) * time.Hour),
			})
			if err != nil {
				t.Fatalf("Quarantine() error = %v", err)
			}
		}

		records, err := m.List(2)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("len(records) = %d, want 2", len(records))
		}
		if !records[0].DetectedAt.After(records[1].DetectedAt) {
			t.Errorf("records not sorted newest first: %v, %v",
				records[0].DetectedAt, records[1].DetectedAt)
		}
	})

	t.Run("skips directories without a record", func(t *testing.T) {
		t.Parallel()
		m := setupManager(t, false)
		if err := os.Mkdir(filepath.Join(m.Root(), "stray"), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}

		records, err := m.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(records) != 0 {
			t.Errorf("len(records) = %d, want 0", len(records))
		}
	})
}

func TestGet(t *testing.T) {
	t.Parallel()

	t.Run("empty ID is rejected", func(t *testing.T) {
		t.Parallel()
		m := setupManager(t, false)
		if _, err := m.Get(""); err == nil {
			t.Fatal("Get(\"\") error = nil, want error")
		}
	})

	t.Run("unknown ID is not found", func(t *testing.T) {
		t.Parallel()
		m := setupManager(t, false)
		if _, err := m.Get("20260101T000000-ffffff"); err == nil {
			t.Fatal("Get() error = nil, want error")
		}
	})
}

func TestCleanup(t *testing.T) {
	t.Parallel()

	m := setupManager(t, false)

	oldSrc := writeSource(t, "old.exe", []byte("MZ"))
	oldRec, err := m.Quarantine(IncidentRecord{
		FilePath:   oldSrc,
		DetectedAt: time.Now().UTC().AddDate(0, 0, -120),
	})
	if err != nil {
		t.Fatalf("Quarantine() error = %v", err)
	}

	newSrc := writeSource(t, "new.exe", []byte("MZ"))
	newRec, err := m.Quarantine(IncidentRecord{FilePath: newSrc})
	if err != nil {
		t.Fatalf("Quarantine() error = %v", err)
	}

	if err := m.Cleanup(90); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	if _, err := m.Get(oldRec.ID); err == nil {
		t.Error("expired incident still present after Cleanup()")
	}
	if _, err := m.Get(newRec.ID); err != nil {
		t.Errorf("recent incident removed by Cleanup(): %v", err)
	}
}

func TestGenerateID(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	id := generateID(ts)

	if len(id) != len("20260615T103000-aabbcc") {
		t.Errorf("len(id) = %d, want %d", len(id), len("20260615T103000-aabbcc"))
	}
	if id[:15] != "20260615T103000" {
		t.Errorf("id prefix = %q, want %q", id[:15], "20260615T103000")
	}
}
