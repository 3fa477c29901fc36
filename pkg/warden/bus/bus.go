// Package bus distributes detection notifications to in-process
// subscribers, decoupling the pipeline from whatever renders live output.
package bus

import (
	"sync"

	"github.com/google/uuid"
)

// Notification describes one detection for live consumers. It is a
// display-oriented projection of the incident; the authoritative record
// is the quarantine metadata artifact.
type Notification struct {
	Path             string
	ClaimedExtension string
	ActualType       string
	Owner            string
	Size             int64
	Quarantined      bool
	IncidentID       string

	// Failure is set when quarantine was attempted but failed.
	Failure string
}

// Subscriber represents a consumer of detection notifications.
type Subscriber struct {
	ID     string
	Events chan Notification
}

// Bus manages subscribers and distributes notifications.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe creates a new subscription.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	sub := &Subscriber{
		ID:     uuid.New().String(),
		Events: make(chan Notification, 100),
	}

	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// Publish sends a notification to all subscribers. A slow subscriber
// drops notifications rather than blocking the pipeline.
func (b *Bus) Publish(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		select {
		case sub.Events <- n:
		default:
			// Channel full, notification dropped
		}
	}
}

// Close closes the bus and all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Events)
	}
	b.subscribers = make(map[string]*Subscriber)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
