// Package events provides the in-process pub/sub bus connecting domain
// completion events to the analytics core.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	// SaleFinalized is emitted when an upstream collaborator completes a sale.
	SaleFinalized EventType = "SALE_FINALIZED"
	// TransactionPosted is emitted when a ledger transaction is recorded.
	TransactionPosted EventType = "TRANSACTION_POSTED"
	// SnapshotRefreshed is emitted after a successful cache refresh.
	SnapshotRefreshed EventType = "SNAPSHOT_REFRESHED"
	// RefreshFailed is emitted when a background refresh fails.
	RefreshFailed EventType = "REFRESH_FAILED"
	// SettingsChanged is emitted when the persisted timeframe changes.
	SettingsChanged EventType = "SETTINGS_CHANGED"
)

// Event represents a system event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// Handler is invoked for every published event of a subscribed type.
type Handler func(evt Event)

// Bus is a minimal synchronous pub/sub bus. Handlers run on the publisher's
// goroutine; long-running work must be moved off the handler by the subscriber.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []catchAll
	nextID   int
	log      zerolog.Logger
}

type catchAll struct {
	id int
	fn Handler
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type and returns a
// function that removes it again. The SSE stream registers one handler per
// connection and must detach it when the client disconnects.
func (b *Bus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, catchAll{id: id, fn: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, entry := range b.all {
			if entry.id == id {
				// Full-slice expression so a Publish iterating the old
				// backing array never sees the shifted tail.
				b.all = append(b.all[:i:i], b.all[i+1:]...)
				return
			}
		}
	}
}

// Publish emits an event to all matching handlers.
func (b *Bus) Publish(eventType EventType, module string, data EventData) {
	evt := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	typed := b.handlers[eventType]
	all := b.all
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Msg("Event published")

	for _, h := range typed {
		h(evt)
	}
	for _, h := range all {
		h.fn(evt)
	}
}
