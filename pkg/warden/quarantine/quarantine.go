// Package quarantine isolates mismatched files into per-incident
// directories and writes the incident metadata artifact next to them.
//
// Each incident owns exactly one directory under the quarantine root,
// named by a timestamp-derived identifier with a random disambiguator.
// An incident either completes fully (file relocated and metadata
// written) or its directory is rolled back; a half-written incident is
// never left on disk.
package quarantine

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// MetadataFile is the name of the incident record artifact inside each
// incident directory.
const MetadataFile = "metadata.json"

// ErrSourceVanished is returned when the source file no longer exists.
// Two events racing on the same path produce exactly one incident: the
// loser observes the winner's relocation and reports this instead of an
// error. Existence is consulted on the filesystem, not an in-memory lock,
// since another process could touch the same path.
var ErrSourceVanished = errors.New("source file no longer exists")

// Manager relocates mismatched files into the quarantine area.
type Manager struct {
	root         string
	keepOriginal bool
	mu           sync.Mutex
}

// New creates a Manager rooted at dir. keepOriginal selects copy mode;
// the default is a destructive move.
func New(dir string, keepOriginal bool) (*Manager, error) {
	if dir == "" {
		return nil, errors.New("quarantine root cannot be empty")
	}
	return &Manager{root: dir, keepOriginal: keepOriginal}, nil
}

// EnsureRoot creates the quarantine root if it does not exist.
func (m *Manager) EnsureRoot() error {
	return os.MkdirAll(m.root, 0o755)
}

// Root returns the quarantine root directory.
func (m *Manager) Root() string {
	return m.root
}

// Quarantine isolates the file described by rec. On success it returns
// the completed record with ID, QuarantinePath, and Mode filled in, and
// rec has been written as the metadata artifact inside the incident
// directory.
//
// Returns ErrSourceVanished when the file is already gone, which callers
// treat as a benign duplicate. Any other failure rolls the incident
// directory back before returning.
func (m *Manager) Quarantine(rec IncidentRecord) (*IncidentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Consult the filesystem, not memory: the same path may be raced by
	// another process.
	if _, err := os.Stat(rec.FilePath); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSourceVanished
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}

	if rec.DetectedAt.IsZero() {
		rec.DetectedAt = time.Now().UTC()
	}
	rec.ID = generateID(rec.DetectedAt)
	rec.FileName = filepath.Base(rec.FilePath)

	dir := filepath.Join(m.root, rec.ID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating incident directory: %w", err)
	}

	dest := filepath.Join(dir, rec.FileName)

	var relocate func(src, dst string) error
	if m.keepOriginal {
		relocate = copyFile
		rec.Mode = ModeCopy
	} else {
		relocate = moveFile
		rec.Mode = ModeMove
	}

	if err := relocate(rec.FilePath, dest); err != nil {
		_ = os.RemoveAll(dir)
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSourceVanished
		}
		return nil, fmt.Errorf("relocating file: %w", err)
	}

	rec.QuarantinePath = dest

	if err := m.writeRecord(dir, &rec); err != nil {
		// Undo the relocation so no half-written incident remains.
		if rec.Mode == ModeMove {
			_ = os.Rename(dest, rec.FilePath)
		}
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("writing incident record: %w", err)
	}

	return &rec, nil
}

// writeRecord writes the metadata artifact atomically using a temp file
// and rename.
func (m *Manager) writeRecord(dir string, rec *IncidentRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	metaPath := filepath.Join(dir, MetadataFile)
	tmpPath := metaPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, metaPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// List returns all incident records sorted by detection time descending
// (newest first). If limit is 0 or negative, all records are returned.
func (m *Manager) List(limit int) ([]IncidentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []IncidentRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read quarantine root: %w", err)
	}

	records := []IncidentRecord{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		rec, err := m.readRecord(e.Name())
		if err != nil {
			// Skip directories without a parseable record
			continue
		}
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].DetectedAt.After(records[j].DetectedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// Get retrieves a specific incident record by ID.
func (m *Manager) Get(id string) (*IncidentRecord, error) {
	if id == "" {
		return nil, errors.New("incident ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.readRecord(id)
	if err != nil {
		return nil, fmt.Errorf("incident not found: %s", id)
	}
	return rec, nil
}

// readRecord reads and parses the metadata artifact of one incident.
func (m *Manager) readRecord(id string) (*IncidentRecord, error) {
	data, err := os.ReadFile(filepath.Join(m.root, id, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var rec IncidentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &rec, nil
}

// Cleanup removes incident directories older than retentionDays.
func (m *Manager) Cleanup(retentionDays int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read quarantine root: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		rec, err := m.readRecord(e.Name())
		if err != nil {
			continue
		}

		if rec.DetectedAt.Before(cutoff) {
			_ = os.RemoveAll(filepath.Join(m.root, e.Name()))
		}
	}

	return nil
}

// moveFile relocates a file with rename, falling back to copy and remove
// when the quarantine root is on a different filesystem. After success
// the source path no longer exists.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return err
	}

	// Likely EXDEV; copy then remove the original.
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing source after copy: %w", err)
	}
	return nil
}

// copyFile copies src to dst, syncing the destination before close.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}

	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

// generateID creates an incident identifier like
// "20240615T103000-a1b2c3". The timestamp orders incidents; the random
// suffix keeps near-simultaneous detections in distinct directories.
func generateID(t time.Time) string {
	ts := t.UTC().Format("20060102T150405")

	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		// Fallback to nanoseconds if crypto/rand fails
		return fmt.Sprintf("%s-%06d", ts, t.Nanosecond()%1000000)
	}

	return fmt.Sprintf("%s-%s", ts, hex.EncodeToString(suffix))
}
