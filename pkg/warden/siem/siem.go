// Package siem emits detection events as JSON objects, one per line,
// in a schema suitable for SIEM ingestion.
package siem

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"
)

// Event types emitted by the detection pipeline.
const (
	EventMismatch         = "FILE_EXTENSION_MISMATCH"
	EventQuarantined      = "FILE_QUARANTINED"
	EventQuarantineFailed = "QUARANTINE_FAILED"
	EventUnknownType      = "FILE_TYPE_UNKNOWN"
	EventSystemStart      = "SYSTEM_START"
	EventSystemStop       = "SYSTEM_STOP"
)

// Severity levels.
const (
	SeverityLow  = "LOW"
	SeverityInfo = "INFO"
	SeverityHigh = "HIGH"
)

// source identifies this producer in every event.
const source = "filewarden"

// Version is stamped into every event so consumers can key parsing on
// the producer release. The main package overrides it with the build
// version.
var Version = "dev"

// Event is one structured log record.
type Event struct {
	// Timestamp is the event time in UTC.
	Timestamp time.Time `json:"timestamp"`

	// EventType identifies what happened, e.g. FILE_EXTENSION_MISMATCH.
	EventType string `json:"event_type"`

	// Severity is LOW, INFO, or HIGH.
	Severity string `json:"severity"`

	// Source identifies the producer.
	Source string `json:"source"`

	// Version is the producer release that wrote the event.
	Version string `json:"version"`

	// Hostname and Username identify where the producer runs.
	Hostname string `json:"hostname"`
	Username string `json:"username"`

	// Data carries the event-specific payload.
	Data any `json:"data"`
}

// Sink receives detection events. The pipeline holds a Sink, never a
// concrete writer, so output is an injected capability.
type Sink interface {
	Emit(eventType, severity string, data any) error
}

// Logger writes events as JSON lines to an io.Writer.
type Logger struct {
	mu       sync.Mutex
	w        io.Writer
	closer   io.Closer
	hostname string
	username string
}

// New creates a Logger appending to the file at path, creating parent
// directories as needed.
func New(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	l := NewWithWriter(f)
	l.closer = f
	return l, nil
}

// NewWithWriter creates a Logger writing to w. Used by tests and by
// callers that manage the underlying file themselves.
func NewWithWriter(w io.Writer) *Logger {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	return &Logger{w: w, hostname: hostname, username: username}
}

// Emit writes one event line.
func (l *Logger) Emit(eventType, severity string, data any) error {
	event := Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Severity:  severity,
		Source:    source,
		Version:   Version,
		Hostname:  l.hostname,
		Username:  l.username,
		Data:      data,
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.w.Write(line); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Close closes the underlying file, if the Logger owns one.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
