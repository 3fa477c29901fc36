package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotationConfig bounds the size and lifetime of the log file.
type RotationConfig struct {
	// MaxSize is the size in bytes at which the active file is rotated
	// out. Zero falls back to the default.
	MaxSize int64

	// MaxAge drops rotated files older than this many days. Zero keeps
	// them regardless of age.
	MaxAge int

	// MaxBackups caps how many rotated files are kept. Zero keeps all.
	MaxBackups int

	// Daily starts a fresh file on the first write of each day.
	Daily bool
}

// DefaultRotationConfig returns the bounds used when the configuration
// does not override them.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 * 1024 * 1024,
		MaxAge:     30,
		MaxBackups: 5,
		Daily:      true,
	}
}

// backupStamp names rotated files so they sort chronologically and
// their age can be read back during pruning.
const backupStamp = "20060102-150405.000"

// RotatingWriter is an io.WriteCloser over a single log file. When a
// write would push the file past MaxSize, or on the first write of a
// new day when Daily is set, the file is renamed to
// <name>-<stamp>.log and a fresh one is opened. Only one filewarden
// process holds the log (the run command is PID-guarded), so a mutex
// is the only serialization needed.
type RotatingWriter struct {
	mu   sync.Mutex
	path string
	cfg  RotationConfig

	file *os.File
	size int64
	day  int
}

// NewRotatingWriter opens the log file at path for appending, creating
// parent directories as needed, and prunes stale backups.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()

	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	full := w.size+int64(len(p)) > w.cfg.MaxSize
	stale := w.cfg.Daily && dayOf(time.Now()) != w.day
	if full || stale {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing log: %w", err)
	}
	return n, nil
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// open opens the log file for appending and records its current size
// and day, so an existing file keeps accumulating until its own limits
// are hit.
func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	w.file = f
	w.size = info.Size()
	w.day = dayOf(info.ModTime())
	return nil
}

// rotate renames the active file to its backup name and reopens a
// fresh one. Called with the mutex held.
func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("closing log file: %w", err)
		}
		w.file = nil
	}

	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.backupName(time.Now())); err != nil {
			return fmt.Errorf("rotating log file: %w", err)
		}
	}

	if err := w.open(); err != nil {
		return err
	}
	w.day = dayOf(time.Now())
	w.prune()
	return nil
}

// backupName derives the rotated name: filewarden.log becomes
// filewarden-20240120-150405.000.log.
func (w *RotatingWriter) backupName(t time.Time) string {
	ext := filepath.Ext(w.path)
	return strings.TrimSuffix(w.path, ext) + "-" + t.Format(backupStamp) + ext
}

// prune removes backups beyond MaxBackups and backups older than
// MaxAge days. Failures are ignored; pruning runs again on the next
// rotation.
func (w *RotatingWriter) prune() {
	dir := filepath.Dir(w.path)
	ext := filepath.Ext(w.path)
	prefix := strings.TrimSuffix(filepath.Base(w.path), ext) + "-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var backups []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		backups = append(backups, name)
	}
	// The stamp sorts oldest first.
	sort.Strings(backups)

	var cutoff time.Time
	if w.cfg.MaxAge > 0 {
		cutoff = time.Now().AddDate(0, 0, -w.cfg.MaxAge)
	}

	for i, name := range backups {
		drop := w.cfg.MaxBackups > 0 && len(backups)-i > w.cfg.MaxBackups
		if !drop && !cutoff.IsZero() {
			stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
			if ts, err := time.ParseInLocation(backupStamp, stamp, time.Local); err == nil && ts.Before(cutoff) {
				drop = true
			}
		}
		if drop {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

// dayOf collapses a time to a comparable calendar day.
func dayOf(t time.Time) int {
	return t.Year()*1000 + t.YearDay()
}
