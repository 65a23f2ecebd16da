package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hookCounter struct {
	setups    atomic.Int32
	teardowns atomic.Int32
	setupErr  error
	setupGate chan struct{} // when non-nil, Setup blocks until closed
}

func (h *hookCounter) hooks() Hooks {
	return Hooks{
		Setup: func(ctx context.Context) error {
			h.setups.Add(1)
			if h.setupGate != nil {
				<-h.setupGate
			}
			return h.setupErr
		},
		Teardown: func() {
			h.teardowns.Add(1)
		},
	}
}

func TestManager_FirstActivateRunsSetup(t *testing.T) {
	h := &hookCounter{}
	m := NewManager(h.hooks(), time.Hour, zerolog.Nop())

	require.NoError(t, m.Activate(context.Background()))
	assert.Equal(t, 1, m.Refs())
	assert.True(t, m.Active())
	assert.Equal(t, int32(1), h.setups.Load())

	// Second consumer attaches without another setup.
	require.NoError(t, m.Activate(context.Background()))
	assert.Equal(t, 2, m.Refs())
	assert.Equal(t, int32(1), h.setups.Load())
}

func TestManager_DeactivateWithRemainingConsumersKeepsResources(t *testing.T) {
	h := &hookCounter{}
	m := NewManager(h.hooks(), 20*time.Millisecond, zerolog.Nop())

	require.NoError(t, m.Activate(context.Background()))
	require.NoError(t, m.Activate(context.Background()))
	m.Deactivate()

	assert.Equal(t, 1, m.Refs())
	time.Sleep(60 * time.Millisecond)
	assert.True(t, m.Active(), "teardown must not fire while consumers remain")
	assert.Equal(t, int32(0), h.teardowns.Load())
}

func TestManager_GracePeriodTeardown(t *testing.T) {
	h := &hookCounter{}
	m := NewManager(h.hooks(), 20*time.Millisecond, zerolog.Nop())

	require.NoError(t, m.Activate(context.Background()))
	m.Deactivate()

	// Still alive inside the grace window.
	assert.True(t, m.Active())
	assert.Equal(t, int32(0), h.teardowns.Load())

	assert.Eventually(t, func() bool {
		return h.teardowns.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, m.Active())
}

func TestManager_ReactivationCancelsPendingTeardown(t *testing.T) {
	h := &hookCounter{}
	m := NewManager(h.hooks(), 30*time.Millisecond, zerolog.Nop())

	require.NoError(t, m.Activate(context.Background()))
	m.Deactivate()
	require.NoError(t, m.Activate(context.Background()))

	time.Sleep(90 * time.Millisecond)
	assert.True(t, m.Active())
	assert.Equal(t, int32(0), h.teardowns.Load())
	assert.Equal(t, int32(1), h.setups.Load(), "resources must survive the bounce")
}

func TestManager_FullCycleReinitializes(t *testing.T) {
	h := &hookCounter{}
	m := NewManager(h.hooks(), 10*time.Millisecond, zerolog.Nop())

	require.NoError(t, m.Activate(context.Background()))
	m.Deactivate()
	require.Eventually(t, func() bool {
		return h.teardowns.Load() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Activate(context.Background()))
	assert.True(t, m.Active())
	assert.Equal(t, int32(2), h.setups.Load())
}

func TestManager_SetupFailureRollsBackReference(t *testing.T) {
	h := &hookCounter{setupErr: errors.New("db offline")}
	m := NewManager(h.hooks(), time.Hour, zerolog.Nop())

	err := m.Activate(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, m.Refs())
	assert.False(t, m.Active())

	// A later attempt retries setup.
	h.setupErr = nil
	require.NoError(t, m.Activate(context.Background()))
	assert.True(t, m.Active())
	assert.Equal(t, int32(2), h.setups.Load())
}

func TestManager_ConcurrentActivationsShareSetup(t *testing.T) {
	h := &hookCounter{setupGate: make(chan struct{})}
	m := NewManager(h.hooks(), time.Hour, zerolog.Nop())

	const callers = 6
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Activate(context.Background())
		}(i)
	}

	assert.Eventually(t, func() bool {
		return h.setups.Load() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(h.setupGate)
	wg.Wait()

	assert.Equal(t, int32(1), h.setups.Load(), "concurrent activations must share one setup")
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, callers, m.Refs())
}

func TestManager_WaiterHonorsContextCancellation(t *testing.T) {
	h := &hookCounter{setupGate: make(chan struct{})}
	m := NewManager(h.hooks(), time.Hour, zerolog.Nop())

	go func() {
		_ = m.Activate(context.Background())
	}()
	require.Eventually(t, func() bool {
		return h.setups.Load() == 1
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	waitErr := make(chan error, 1)
	go func() {
		waitErr <- m.Activate(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-waitErr
	assert.ErrorIs(t, err, context.Canceled)

	close(h.setupGate)
	require.Eventually(t, m.Active, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, m.Refs(), "cancelled waiter must not hold a reference")
}

func TestManager_CancelledTeardownCannotFireLate(t *testing.T) {
	h := &hookCounter{}
	m := NewManager(h.hooks(), time.Hour, zerolog.Nop())

	require.NoError(t, m.Activate(context.Background()))
	m.Deactivate() // arms a timer with the original generation
	require.NoError(t, m.Activate(context.Background()))
	m.Deactivate()

	// A callback from the first, cancelled timer may have been blocked on the
	// mutex across the bounce. It must stay a no-op even though the refcount
	// is back at zero.
	m.teardownAfterGrace(0)

	assert.True(t, m.Active())
	assert.Equal(t, int32(0), h.teardowns.Load())

	m.Close()
}

func TestManager_CloseTearsDownImmediately(t *testing.T) {
	h := &hookCounter{}
	m := NewManager(h.hooks(), time.Hour, zerolog.Nop())

	require.NoError(t, m.Activate(context.Background()))
	require.NoError(t, m.Activate(context.Background()))

	m.Close()
	assert.False(t, m.Active())
	assert.Equal(t, 0, m.Refs())
	assert.Equal(t, int32(1), h.teardowns.Load())
}

func TestManager_DeactivateOnIdleIsNoOp(t *testing.T) {
	h := &hookCounter{}
	m := NewManager(h.hooks(), time.Hour, zerolog.Nop())

	m.Deactivate()
	assert.Equal(t, 0, m.Refs())
	assert.Equal(t, int32(0), h.teardowns.Load())
}
