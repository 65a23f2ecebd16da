// Package cache holds the snapshot cache and its freshness rules.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/retailpulse/pulse/internal/domain"
)

// State is the coordinator's freshness state.
type State string

const (
	StateEmpty State = "EMPTY"
	StateFresh State = "FRESH"
	StateStale State = "STALE"
)

// Clock abstracts time so freshness can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Fetcher produces a fresh snapshot. Implemented by the datasource adapter.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

// Entry is the cached snapshot with its bookkeeping. It is owned exclusively
// by the coordinator and replaced wholesale, never partially mutated, so a
// reader holding a previous pointer never observes a torn state.
type Entry struct {
	Snapshot          *domain.Snapshot
	FetchedAt         time.Time
	LastSaleID        string
	LastTransactionID string
}

// Status is the externally visible cache state.
type Status struct {
	HasCache  bool
	Age       time.Duration
	IsExpired bool
}

// Coordinator owns the cache entry and single-flights refreshes: concurrent
// callers observing an in-flight fetch await and share its result instead of
// issuing duplicates.
type Coordinator struct {
	fetcher Fetcher
	ttl     time.Duration
	clock   Clock
	log     zerolog.Logger

	group singleflight.Group

	mu          sync.RWMutex
	entry       *Entry
	invalidated bool
}

// NewCoordinator creates a cache coordinator with the given freshness window.
func NewCoordinator(fetcher Fetcher, ttl time.Duration, clock Clock, log zerolog.Logger) *Coordinator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Coordinator{
		fetcher: fetcher,
		ttl:     ttl,
		clock:   clock,
		log:     log.With().Str("service", "cache").Logger(),
	}
}

// State returns the current freshness state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

func (c *Coordinator) stateLocked() State {
	if c.entry == nil {
		return StateEmpty
	}
	if c.invalidated || c.clock.Now().Sub(c.entry.FetchedAt) > c.ttl {
		return StateStale
	}
	return StateFresh
}

// GetOrRefresh returns the snapshot to aggregate against. When the cache is
// FRESH and force is false the held snapshot is returned without any I/O
// (aggregation still re-runs upstream since the timeframe may have changed).
// When STALE, EMPTY or forced, a new snapshot is fetched and the entry is
// replaced atomically. If the refresh fails but stale data exists, the stale
// snapshot is returned and the error is swallowed into a warning: stale data
// beats no data.
func (c *Coordinator) GetOrRefresh(ctx context.Context, force bool) (*domain.Snapshot, error) {
	c.mu.RLock()
	state := c.stateLocked()
	held := c.entry
	c.mu.RUnlock()

	if state == StateFresh && !force {
		return held.Snapshot, nil
	}

	snap, err := c.refresh(ctx)
	if err != nil {
		if held != nil {
			c.log.Warn().Err(err).Msg("Refresh failed, serving last-known-good snapshot")
			return held.Snapshot, nil
		}
		return nil, fmt.Errorf("snapshot refresh failed with no cached fallback: %w", err)
	}
	return snap, nil
}

// refresh performs the single-flighted fetch-and-replace. The fetch runs on
// a context detached from the triggering caller: co-waiters share the flight,
// so one caller cancelling must not abort it for the rest.
func (c *Coordinator) refresh(ctx context.Context) (*domain.Snapshot, error) {
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		snap, err := c.fetcher.FetchSnapshot(fetchCtx)
		if err != nil {
			return nil, err
		}

		entry := &Entry{
			Snapshot:          snap,
			FetchedAt:         c.clock.Now(),
			LastSaleID:        snap.LastSaleID(),
			LastTransactionID: snap.LastTransactionID(),
		}

		c.mu.Lock()
		c.entry = entry
		c.invalidated = false
		c.mu.Unlock()

		c.log.Debug().
			Str("last_sale_id", entry.LastSaleID).
			Int("failed_collections", len(snap.FailedCollections)).
			Msg("Snapshot cache replaced")

		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Snapshot), nil
}

// Invalidate marks the cache stale without discarding data: the last-known
// good snapshot stays servable while a refresh is pending.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry != nil {
		c.invalidated = true
	}
}

// Entry returns the current entry, or nil when EMPTY. Callers must treat the
// returned entry as immutable.
func (c *Coordinator) Entry() *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry
}

// Status reports cache presence, age and expiry for consumers.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.entry == nil {
		return Status{}
	}
	age := c.clock.Now().Sub(c.entry.FetchedAt)
	return Status{
		HasCache:  true,
		Age:       age,
		IsExpired: c.invalidated || age > c.ttl,
	}
}
