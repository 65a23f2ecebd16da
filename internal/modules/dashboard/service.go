// Package dashboard is the facade the HTTP layer talks to. It composes the
// snapshot cache, the aggregation engine, the memo store, the background
// worker, the event bridge and the lifecycle manager into one surface.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailpulse/pulse/internal/domain"
	"github.com/retailpulse/pulse/internal/events"
	"github.com/retailpulse/pulse/internal/modules/aggregation"
	"github.com/retailpulse/pulse/internal/modules/bridge"
	"github.com/retailpulse/pulse/internal/modules/cache"
	"github.com/retailpulse/pulse/internal/modules/lifecycle"
	"github.com/retailpulse/pulse/internal/modules/offload"
	"github.com/retailpulse/pulse/internal/modules/settings"
)

const memoPrefix = "dashboard:"

// Config carries the tunables the service needs.
type Config struct {
	MemoTTL       time.Duration
	DebounceDelay time.Duration
	CleanupGrace  time.Duration
}

// Service owns the dashboard's state: the active timeframe, the last
// computed result and the machinery that keeps both current. Results handed
// out are immutable; a refresh installs a new one instead of mutating.
type Service struct {
	coordinator *cache.Coordinator
	lifecycle   *lifecycle.Manager
	bridge      *bridge.Bridge
	worker      *offload.Worker
	memo        *offload.Memo
	settings    *settings.Service
	bus         *events.Bus
	clock       cache.Clock
	memoTTL     time.Duration
	log         zerolog.Logger

	mu          sync.RWMutex
	current     *aggregation.Result
	timeframe   domain.Timeframe
	customRange *domain.DateRange
	inFlight    int
	lastErr     error
}

// New wires the dashboard service. The lifecycle manager and event bridge
// are constructed here since their callbacks close over the service.
func New(
	coordinator *cache.Coordinator,
	worker *offload.Worker,
	memo *offload.Memo,
	prefs *settings.Service,
	bus *events.Bus,
	clock cache.Clock,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if clock == nil {
		clock = cache.SystemClock{}
	}
	s := &Service{
		coordinator: coordinator,
		worker:      worker,
		memo:        memo,
		settings:    prefs,
		bus:         bus,
		clock:       clock,
		memoTTL:     cfg.MemoTTL,
		log:         log.With().Str("service", "dashboard").Logger(),
		timeframe:   domain.TimeframeToday,
	}

	s.lifecycle = lifecycle.NewManager(lifecycle.Hooks{
		Setup:    s.setup,
		Teardown: s.teardown,
	}, cfg.CleanupGrace, log)

	s.bridge = bridge.New(
		bus,
		coordinator,
		s.RequestRefresh,
		func() bool { return s.lifecycle.Refs() > 0 },
		cfg.DebounceDelay,
		log,
	)
	s.bridge.Start()

	return s
}

// setup runs when the first consumer activates: bring the background worker
// up, restore persisted preferences and warm the cache.
func (s *Service) setup(ctx context.Context) error {
	if s.worker != nil {
		s.worker.Start()
	}

	if s.settings != nil {
		tf, err := s.settings.Timeframe()
		if err != nil {
			return err
		}
		custom, err := s.settings.CustomRange()
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.timeframe = tf
		s.customRange = custom
		s.mu.Unlock()
	}

	if _, err := s.Overview(ctx, false); err != nil {
		// A cold backend shouldn't block activation. Consumers will see an
		// empty dashboard until a refresh succeeds.
		s.log.Warn().Err(err).Msg("Initial refresh failed during activation")
	}
	return nil
}

// teardown stops the background worker after the grace period. The cache
// entry and the last result are kept, so a returning consumer is served from
// warm data instead of a cold refetch.
func (s *Service) teardown() {
	if s.worker != nil {
		s.worker.Stop()
	}
	s.log.Info().Msg("Dashboard worker stopped, cached data retained")
}

// Activate registers a consumer and replays any refresh deferred while the
// dashboard had no watchers.
func (s *Service) Activate(ctx context.Context) error {
	if err := s.lifecycle.Activate(ctx); err != nil {
		return err
	}
	s.bridge.Resume()
	return nil
}

// Deactivate releases a consumer.
func (s *Service) Deactivate() {
	s.lifecycle.Deactivate()
}

// Overview returns the aggregation result for the active timeframe. With
// force false it serves memoized or cached data when fresh; with force true
// it always refetches the snapshot.
func (s *Service) Overview(ctx context.Context, force bool) (*aggregation.Result, error) {
	s.mu.RLock()
	tf, custom := s.timeframe, s.customRange
	s.mu.RUnlock()

	key := offload.ResultKey(tf, custom)
	if !force && s.memo != nil && s.coordinator.State() == cache.StateFresh {
		var memoized aggregation.Result
		if found, err := s.memo.Get(key, &memoized); err == nil && found {
			return &memoized, nil
		} else if err != nil {
			s.log.Warn().Err(err).Msg("Memo lookup failed, recomputing")
		}
	}

	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	before := s.coordinator.Entry()
	snap, err := s.coordinator.GetOrRefresh(ctx, force)
	if err != nil {
		s.setErr(err)
		s.publishRefreshFailed(err)
		return nil, err
	}
	after := s.coordinator.Entry()
	replaced := after != nil && after != before

	if replaced && s.memo != nil {
		// A new snapshot makes every memoized result stale at once.
		if err := s.memo.DeleteByPrefix(memoPrefix); err != nil {
			s.log.Warn().Err(err).Msg("Failed to purge memoized results")
		}
	}

	result, err := aggregation.Aggregate(snap, tf, custom, s.clock.Now())
	if err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.current = result
	s.lastErr = nil
	s.mu.Unlock()

	if s.memo != nil {
		if err := s.memo.Set(key, result, s.memoTTL); err != nil {
			s.log.Warn().Err(err).Msg("Failed to memoize result")
		}
	}

	if replaced {
		s.bus.Publish(events.SnapshotRefreshed, "dashboard", &events.SnapshotRefreshedData{
			LastSaleID:        after.LastSaleID,
			LastTransactionID: after.LastTransactionID,
			DocumentsSkipped:  result.Skipped,
			Forced:            force,
		})
	}

	return result, nil
}

// Current returns the last computed result without touching the cache, or
// nil when nothing has been computed yet.
func (s *Service) Current() *aggregation.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// IsLoading reports whether a refresh or recompute is currently running.
func (s *Service) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight > 0
}

// Err returns the error from the most recent failed refresh. Cleared by the
// next successful one.
func (s *Service) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Service) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// RequestRefresh hands a forced refresh to the background worker, so event
// callbacks and timers never block on the datasource. Falls back to a
// goroutine when the worker queue is saturated.
func (s *Service) RequestRefresh(reason string) {
	job := offload.Job{
		Name: "refresh:" + reason,
		Run: func(ctx context.Context) error {
			_, err := s.Overview(ctx, true)
			return err
		},
	}
	if s.worker == nil || !s.worker.Submit(job) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := s.Overview(ctx, true); err != nil {
				s.log.Error().Err(err).Str("reason", reason).Msg("Refresh failed")
			}
		}()
	}
}

// SetTimeframe switches the active timeframe, persists it and recomputes.
func (s *Service) SetTimeframe(ctx context.Context, tf domain.Timeframe) (*aggregation.Result, error) {
	if s.settings != nil {
		if err := s.settings.SetTimeframe(tf); err != nil {
			return nil, err
		}
	} else if !tf.Valid() {
		return nil, fmt.Errorf("invalid timeframe %q", tf)
	}

	s.mu.Lock()
	s.timeframe = tf
	s.mu.Unlock()

	return s.Overview(ctx, false)
}

// SetCustomRange stores a custom date range, switches to the custom
// timeframe and recomputes.
func (s *Service) SetCustomRange(ctx context.Context, r domain.DateRange) (*aggregation.Result, error) {
	if s.settings != nil {
		if err := s.settings.SetCustomRange(r); err != nil {
			return nil, err
		}
		if err := s.settings.SetTimeframe(domain.TimeframeCustom); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.timeframe = domain.TimeframeCustom
	s.customRange = &r
	s.mu.Unlock()

	return s.Overview(ctx, false)
}

// Timeframe returns the active timeframe and custom range.
func (s *Service) Timeframe() (domain.Timeframe, *domain.DateRange) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeframe, s.customRange
}

// CacheStatus exposes the snapshot cache state.
func (s *Service) CacheStatus() cache.Status {
	return s.coordinator.Status()
}

// InvalidateCache marks the snapshot stale without dropping it.
func (s *Service) InvalidateCache() {
	s.coordinator.Invalidate()
}

// SweepStale is the scheduler hook: it purges expired memo rows and, when
// consumers are active and the cache has gone stale, refreshes in the
// background so the next request is served hot.
func (s *Service) SweepStale() {
	if s.memo != nil {
		if purged, err := s.memo.PurgeExpired(); err != nil {
			s.log.Warn().Err(err).Msg("Memo purge failed")
		} else if purged > 0 {
			s.log.Debug().Int64("purged", purged).Msg("Expired memo entries removed")
		}
	}

	if s.lifecycle.Refs() > 0 && s.coordinator.State() == cache.StateStale {
		s.RequestRefresh("staleness-sweep")
	}
}

// Close shuts the service down: bridge silenced, lifecycle torn down.
func (s *Service) Close() {
	s.bridge.Close()
	s.lifecycle.Close()
}

func (s *Service) publishRefreshFailed(err error) {
	s.bus.Publish(events.RefreshFailed, "dashboard", &events.RefreshFailedData{Error: err.Error()})
}
