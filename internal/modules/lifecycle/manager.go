// Package lifecycle reference-counts dashboard consumers and tears heavy
// resources down only after the last consumer has been gone for a grace
// period, so tab switches and reconnects don't thrash setup and teardown.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hooks are the resource construction and destruction callbacks. Setup runs
// once per activation cycle no matter how many consumers arrive concurrently.
type Hooks struct {
	Setup    func(ctx context.Context) error
	Teardown func()
}

// Manager tracks active consumers of the dashboard's heavy resources.
type Manager struct {
	hooks Hooks
	grace time.Duration
	log   zerolog.Logger

	mu         sync.Mutex
	refs       int
	active     bool
	initErr    error
	initDone   chan struct{}
	graceTimer *time.Timer
	gen        uint64
}

// NewManager creates a lifecycle manager. Teardown fires grace after the
// refcount reaches zero, unless a new consumer arrives first.
func NewManager(hooks Hooks, grace time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		hooks: hooks,
		grace: grace,
		log:   log.With().Str("service", "lifecycle").Logger(),
	}
}

// Activate registers a consumer. The first consumer triggers Setup; callers
// arriving while Setup is in flight wait for that same Setup instead of
// running their own. On Setup failure the caller's reference is rolled back
// so a later Activate can retry.
func (m *Manager) Activate(ctx context.Context) error {
	m.mu.Lock()
	m.refs++
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
		// A timer callback already past Stop still holds the old generation
		// and must not pass the guard after a later Deactivate.
		m.gen++
		m.log.Debug().Msg("Pending teardown cancelled by new consumer")
	}

	if m.active {
		refs := m.refs
		m.mu.Unlock()
		m.log.Debug().Int("refs", refs).Msg("Consumer attached")
		return nil
	}

	if m.initDone != nil {
		done := m.initDone
		m.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			m.release()
			return ctx.Err()
		}

		m.mu.Lock()
		err := m.initErr
		if err != nil {
			m.refs--
		}
		m.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	m.initDone = done
	m.mu.Unlock()

	m.log.Info().Msg("First consumer, initializing resources")
	var err error
	if m.hooks.Setup != nil {
		err = m.hooks.Setup(ctx)
	}

	m.mu.Lock()
	m.initErr = err
	m.active = err == nil
	m.initDone = nil
	if err != nil {
		m.refs--
	}
	close(done)
	m.mu.Unlock()

	if err != nil {
		m.log.Error().Err(err).Msg("Resource initialization failed")
	}
	return err
}

// Deactivate releases a consumer. When the last one leaves, teardown is
// scheduled after the grace period rather than run immediately.
func (m *Manager) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs == 0 {
		m.log.Warn().Msg("Deactivate called with no active consumers")
		return
	}
	m.refs--
	m.log.Debug().Int("refs", m.refs).Msg("Consumer detached")

	if m.refs > 0 || !m.active {
		return
	}

	gen := m.gen
	m.graceTimer = time.AfterFunc(m.grace, func() {
		m.teardownAfterGrace(gen)
	})
	m.log.Debug().Dur("grace", m.grace).Msg("Last consumer gone, teardown scheduled")
}

func (m *Manager) teardownAfterGrace(gen uint64) {
	m.mu.Lock()
	if m.refs > 0 || !m.active || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.active = false
	m.gen++
	m.graceTimer = nil
	m.mu.Unlock()

	m.log.Info().Msg("Grace period elapsed, tearing down resources")
	if m.hooks.Teardown != nil {
		m.hooks.Teardown()
	}
}

// release undoes a reference taken in Activate without teardown scheduling.
func (m *Manager) release() {
	m.mu.Lock()
	if m.refs > 0 {
		m.refs--
	}
	m.mu.Unlock()
}

// Close tears everything down immediately, ignoring refcount and grace.
// Used on process shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	wasActive := m.active
	m.active = false
	m.refs = 0
	m.gen++
	m.mu.Unlock()

	if wasActive && m.hooks.Teardown != nil {
		m.hooks.Teardown()
	}
}

// Refs returns the current consumer count.
func (m *Manager) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs
}

// Active reports whether resources are currently initialized.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
