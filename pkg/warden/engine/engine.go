// Package engine runs the per-file detection pipeline: classify the
// leading bytes, compare against the declared extension, and on a
// mismatch collect evidence, emit events, and quarantine.
//
// The pipeline holds no shared mutable state between files beyond the
// filesystem itself and a small recently-checked map; a failure while
// processing one file never affects another.
package engine

import (
	"encoding/hex"
	"errors"
	"io"
	"os"
	"os/user"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/filewarden/filewarden/pkg/warden/bus"
	"github.com/filewarden/filewarden/pkg/warden/detect"
	"github.com/filewarden/filewarden/pkg/warden/evidence"
	"github.com/filewarden/filewarden/pkg/warden/logging"
	"github.com/filewarden/filewarden/pkg/warden/quarantine"
	"github.com/filewarden/filewarden/pkg/warden/siem"
)

// Outcome summarizes what the pipeline did with one file.
type Outcome int

const (
	// OutcomeSkipped means the file was not classified: excluded path,
	// oversize, no declared extension, exempt extension, or not a
	// regular file.
	OutcomeSkipped Outcome = iota

	// OutcomeAbandoned means a transient I/O error stopped processing.
	// Not a detection; the event is dropped without retry.
	OutcomeAbandoned

	// OutcomeMatch means the declared extension fits the content.
	OutcomeMatch

	// OutcomeUnknown means the content matched no known signature.
	OutcomeUnknown

	// OutcomeMismatch means a detection was raised.
	OutcomeMismatch
)

// String returns the outcome name for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeAbandoned:
		return "abandoned"
	case OutcomeMatch:
		return "match"
	case OutcomeUnknown:
		return "unknown"
	case OutcomeMismatch:
		return "mismatch"
	default:
		return "invalid"
	}
}

// Options configures an Engine. Table, Collector, and Sink are required;
// Quarantine and Bus are optional.
type Options struct {
	Table     *detect.Table
	Collector *evidence.Collector

	// Quarantine isolates mismatched files. Nil disables quarantine;
	// detections are then log-only.
	Quarantine *quarantine.Manager

	Sink siem.Sink

	// Bus receives live detection notifications. Optional.
	Bus *bus.Bus

	// MaxFileSize bounds classification; larger files are skipped
	// entirely. Zero means no limit.
	MaxFileSize int64

	// HeaderBytes is how many leading bytes appear in evidence records
	// and event payloads. Classification always reads enough bytes for
	// the table's longest pattern. Zero defaults to 32.
	HeaderBytes int

	// ExcludedPaths are path prefixes never inspected.
	ExcludedPaths []string

	// SkipExtensions are never checked against magic numbers.
	SkipExtensions []string

	// QuarantineUnknown escalates UNKNOWN verdicts on files declaring a
	// known extension.
	QuarantineUnknown bool

	// LogUnknown emits a LOW severity event for UNKNOWN verdicts.
	LogUnknown bool

	// SettleWindow suppresses repeated events for the same path. Zero
	// uses a 5 second default.
	SettleWindow time.Duration
}

// Engine is the detection pipeline. Safe for concurrent use.
type Engine struct {
	table        *detect.Table
	collector    *evidence.Collector
	quarantine   *quarantine.Manager
	sink         siem.Sink
	bus          *bus.Bus
	maxFileSize  int64
	headerBytes  int
	previewBytes int
	excluded     []string
	skipExts     map[string]bool
	escalate     bool
	logUnknown   bool
	settle       time.Duration

	hostname string
	username string
	log      *logging.Logger

	mu     sync.Mutex
	recent map[uint64]time.Time
}

// New creates an Engine from options.
func New(opts Options) *Engine {
	previewBytes := opts.HeaderBytes
	if previewBytes <= 0 {
		previewBytes = 32
	}

	// The classifier needs enough bytes for the longest pattern; evidence
	// records only carry the short preview.
	headerBytes := previewBytes
	if headerBytes < opts.Table.HeaderLen() {
		headerBytes = opts.Table.HeaderLen()
	}

	settle := opts.SettleWindow
	if settle == 0 {
		settle = 5 * time.Second
	}

	skipExts := make(map[string]bool, len(opts.SkipExtensions))
	for _, ext := range opts.SkipExtensions {
		skipExts[detect.NormalizeExtension(ext)] = true
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	return &Engine{
		table:        opts.Table,
		collector:    opts.Collector,
		quarantine:   opts.Quarantine,
		sink:         opts.Sink,
		bus:          opts.Bus,
		maxFileSize:  opts.MaxFileSize,
		headerBytes:  headerBytes,
		previewBytes: previewBytes,
		excluded:     opts.ExcludedPaths,
		skipExts:     skipExts,
		escalate:     opts.QuarantineUnknown,
		logUnknown:   opts.LogUnknown,
		settle:       settle,
		hostname:     hostname,
		username:     username,
		log:          logging.Get("engine"),
		recent:       make(map[uint64]time.Time),
	}
}

// HandleEvent processes one file event from the watcher. Repeated events
// for the same path inside the settle window are suppressed; a create
// followed immediately by a write inspects the file once.
func (e *Engine) HandleEvent(path string) Outcome {
	if !e.shouldCheck(path) {
		return OutcomeSkipped
	}
	return e.Inspect(path)
}

// shouldCheck records path in the recently-checked map and reports
// whether it is due for inspection.
func (e *Engine) shouldCheck(path string) bool {
	key := xxhash.Sum64String(path)
	now := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if last, ok := e.recent[key]; ok && now.Sub(last) < e.settle {
		return false
	}
	e.recent[key] = now

	// Prune stale entries so the map stays bounded.
	if len(e.recent) > 4096 {
		for k, t := range e.recent {
			if now.Sub(t) >= e.settle {
				delete(e.recent, k)
			}
		}
	}

	return true
}

// Inspect runs the full pipeline for one file: classify, evaluate, and
// on a mismatch collect evidence and quarantine.
func (e *Engine) Inspect(path string) Outcome {
	if e.isExcluded(path) {
		return OutcomeSkipped
	}

	info, err := os.Lstat(path)
	if err != nil {
		// File vanished between event and inspection
		e.log.Debug("cannot stat file", "path", path, "error", err)
		return OutcomeAbandoned
	}
	if !info.Mode().IsRegular() {
		return OutcomeSkipped
	}

	// Oversize files are never classified: no verdict, no event.
	if e.maxFileSize > 0 && info.Size() > e.maxFileSize {
		e.log.Debug("skipping large file", "path", path, "size", info.Size())
		return OutcomeSkipped
	}

	ext := detect.ExtensionOf(path)
	if ext == "" {
		// Nothing declared, nothing to contradict
		return OutcomeSkipped
	}
	if e.skipExts[ext] {
		return OutcomeSkipped
	}

	header, err := readHeader(path, e.headerBytes)
	if err != nil {
		// Unreadable is not unknown: permission errors and vanished
		// files must not raise a detection.
		e.log.Debug("cannot read file header", "path", path, "error", err)
		return OutcomeAbandoned
	}

	res := e.table.Classify(header)
	verdict := e.table.Evaluate(ext, res)

	switch verdict {
	case detect.VerdictMatch:
		return OutcomeMatch

	case detect.VerdictUnknown:
		if e.escalate && e.table.Knows(ext) {
			e.handleMismatch(path, ext, res, header)
			return OutcomeMismatch
		}
		if e.logUnknown {
			_ = e.sink.Emit(siem.EventUnknownType, siem.SeverityLow, map[string]any{
				"filepath":          path,
				"claimed_extension": ext,
				"magic_number_hex":  hex.EncodeToString(e.preview(header)),
			})
		}
		return OutcomeUnknown

	default:
		e.handleMismatch(path, ext, res, header)
		return OutcomeMismatch
	}
}

// handleMismatch collects evidence, emits the detection events, and
// quarantines the file when a manager is configured.
func (e *Engine) handleMismatch(path, ext string, res detect.Result, header []byte) {
	ev := e.collector.Collect(path, e.preview(header))

	rec := quarantine.IncidentRecord{
		FilePath:         path,
		ClaimedExtension: ext,
		ActualType:       res.ContentType,
		SHA256:           ev.SHA256,
		Owner:            ev.Owner,
		Size:             ev.Size,
		MagicHex:         ev.HeaderHex,
		DetectedAt:       time.Now().UTC(),
		Hostname:         e.hostname,
		Username:         e.username,
	}

	e.log.Warn("extension mismatch detected",
		"path", path,
		"claimed", ext,
		"actual", res.ContentType,
		"owner", ev.Owner,
	)

	if err := e.sink.Emit(siem.EventMismatch, siem.SeverityHigh, rec); err != nil {
		e.log.Error("failed to emit mismatch event", "path", path, "error", err)
	}

	note := bus.Notification{
		Path:             path,
		ClaimedExtension: ext,
		ActualType:       res.ContentType,
		Owner:            ev.Owner,
		Size:             ev.Size,
	}

	if e.quarantine != nil {
		recorded, err := e.quarantine.Quarantine(rec)
		switch {
		case err == nil:
			e.log.Info("file quarantined", "path", path, "incident", recorded.ID)
			_ = e.sink.Emit(siem.EventQuarantined, siem.SeverityInfo, map[string]any{
				"original_path":   path,
				"quarantine_path": recorded.QuarantinePath,
				"incident_id":     recorded.ID,
				"file_hash":       recorded.SHA256,
			})
			note.Quarantined = true
			note.IncidentID = recorded.ID

		case errors.Is(err, quarantine.ErrSourceVanished):
			// Another event won the race; benign duplicate.
			e.log.Debug("source already relocated", "path", path)

		default:
			// Found it but could not isolate it; operators must be able
			// to tell this apart from a normal detection.
			e.log.Error("quarantine failed", "path", path, "error", err)
			_ = e.sink.Emit(siem.EventQuarantineFailed, siem.SeverityHigh, map[string]any{
				"filepath": path,
				"error":    err.Error(),
			})
			note.Failure = err.Error()
		}
	}

	if e.bus != nil {
		e.bus.Publish(note)
	}
}

// preview truncates a header to the length recorded in evidence and
// events.
func (e *Engine) preview(header []byte) []byte {
	if len(header) > e.previewBytes {
		return header[:e.previewBytes]
	}
	return header
}

// isExcluded reports whether path starts with an excluded prefix.
func (e *Engine) isExcluded(path string) bool {
	for _, prefix := range e.excluded {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// readHeader reads up to n leading bytes of the file. Files shorter than
// n yield their full content.
func readHeader(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}
