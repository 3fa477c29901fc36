package watch

import (
	"context"
	"fmt"

	"github.com/filewarden/filewarden/pkg/warden/engine"
	"github.com/filewarden/filewarden/pkg/warden/logging"
)

// queueSize bounds the number of pending file events. The watcher drops
// events beyond this rather than blocking the notification goroutine.
const queueSize = 1024

// Monitor wires the watcher to the detection engine: a single logical
// worker drains file events in delivery order, so per-event processing
// may block on I/O without any internal locking beyond the filesystem.
type Monitor struct {
	watcher *Watcher
	engine  *engine.Engine
	roots   []string
}

// NewMonitor creates a Monitor watching the given root directories.
func NewMonitor(eng *engine.Engine, roots []string) (*Monitor, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no directories to watch")
	}

	w, err := New()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	return &Monitor{
		watcher: w,
		engine:  eng,
		roots:   roots,
	}, nil
}

// Run watches all roots and processes events until the context is
// cancelled. It blocks. The in-flight event finishes or is abandoned
// whole; cancellation never leaves a partial incident behind (the
// quarantine manager guarantees record atomicity).
func (m *Monitor) Run(ctx context.Context) error {
	log := logging.Get("watcher")

	for _, root := range m.roots {
		if err := m.watcher.Watch(root); err != nil {
			return fmt.Errorf("watching %s: %w", root, err)
		}
		log.Info("watching", "path", root)
	}

	queue := make(chan string, queueSize)

	go func() {
		defer close(queue)
		m.watcher.Run(ctx, func(path string, _ EventKind) {
			select {
			case queue <- path:
			default:
				// Queue full; the settle window catches most of these
				// on the next event for the same path.
				log.Warn("event queue full, dropping event", "path", path)
			}
		})
	}()

	for path := range queue {
		m.engine.HandleEvent(path)
	}

	return nil
}

// Close releases the underlying watcher.
func (m *Monitor) Close() error {
	return m.watcher.Close()
}
