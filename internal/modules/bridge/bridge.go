// Package bridge connects upstream business events to cache refreshes. It
// debounces event bursts into a single refresh, drops events already
// represented in the cached snapshot, and defers work while no consumer is
// watching the dashboard.
package bridge

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailpulse/pulse/internal/events"
	"github.com/retailpulse/pulse/internal/modules/cache"
)

// EntryProvider exposes the cached snapshot's bookkeeping, used to drop
// events whose entity the cache already contains.
type EntryProvider interface {
	Entry() *cache.Entry
	Invalidate()
}

// Bridge listens for sale and ledger events and turns them into debounced
// refresh requests.
type Bridge struct {
	bus      *events.Bus
	cache    EntryProvider
	refresh  func(reason string)
	visible  func() bool
	debounce time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	closed  bool
}

// New creates a bridge. refresh is invoked at most once per debounce window,
// from the timer goroutine. visible reports whether any consumer is active;
// while it returns false, refreshes are deferred until Resume.
func New(bus *events.Bus, cache EntryProvider, refresh func(reason string), visible func() bool, debounce time.Duration, log zerolog.Logger) *Bridge {
	return &Bridge{
		bus:      bus,
		cache:    cache,
		refresh:  refresh,
		visible:  visible,
		debounce: debounce,
		log:      log.With().Str("service", "bridge").Logger(),
	}
}

// Start subscribes to the event bus. Call once.
func (b *Bridge) Start() {
	b.bus.Subscribe(events.SaleFinalized, b.onSale)
	b.bus.Subscribe(events.TransactionPosted, b.onTransaction)
}

func (b *Bridge) onSale(e events.Event) {
	data, ok := e.Data.(*events.SaleFinalizedData)
	if !ok {
		b.log.Warn().Str("type", string(e.Type)).Msg("Unexpected event payload, refreshing anyway")
		b.schedule("sale")
		return
	}

	if entry := b.cache.Entry(); entry != nil && entry.LastSaleID == data.SaleID && data.SaleID != "" {
		b.log.Debug().Str("sale_id", data.SaleID).Msg("Sale already in snapshot, skipping refresh")
		return
	}
	b.schedule("sale")
}

func (b *Bridge) onTransaction(e events.Event) {
	data, ok := e.Data.(*events.TransactionPostedData)
	if !ok {
		b.log.Warn().Str("type", string(e.Type)).Msg("Unexpected event payload, refreshing anyway")
		b.schedule("transaction")
		return
	}

	if entry := b.cache.Entry(); entry != nil && entry.LastTransactionID == data.TransactionID && data.TransactionID != "" {
		b.log.Debug().Str("transaction_id", data.TransactionID).Msg("Transaction already in snapshot, skipping refresh")
		return
	}
	b.schedule("transaction")
}

// schedule arms or re-arms the debounce timer. A burst of events therefore
// collapses into one refresh, fired debounce after the last event.
func (b *Bridge) schedule(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	if !b.visible() {
		// Nobody is watching. Remember that data moved and mark the cache
		// stale so the next consumer gets a refresh instead of old numbers.
		b.pending = true
		b.cache.Invalidate()
		b.log.Debug().Str("reason", reason).Msg("No active consumers, deferring refresh")
		return
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.debounce, func() {
		b.fire(reason)
	})
}

func (b *Bridge) fire(reason string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	b.pending = false
	b.mu.Unlock()

	b.log.Debug().Str("reason", reason).Msg("Debounce elapsed, requesting refresh")
	b.refresh(reason)
}

// Resume is called when a consumer becomes active. If events arrived while
// the dashboard was hidden, a refresh is scheduled now.
func (b *Bridge) Resume() {
	b.mu.Lock()
	wasPending := b.pending
	b.mu.Unlock()

	if wasPending {
		b.schedule("resume")
	}
}

// Pending reports whether a deferred refresh is waiting for a consumer.
func (b *Bridge) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Close stops any armed timer and ignores further events.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
