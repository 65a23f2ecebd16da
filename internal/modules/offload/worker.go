package offload

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is a unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Worker executes jobs one at a time on its own goroutine, so aggregation
// never blocks an HTTP handler or an event callback. Jobs that arrive while
// the queue is full are rejected rather than queued unboundedly. A stopped
// worker can be started again; the lifecycle manager cycles it as consumers
// come and go.
type Worker struct {
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	jobs    chan Job
	stop    chan struct{}
	stopped chan struct{}
	running bool
}

const defaultQueueDepth = 16

// NewWorker creates a worker with a per-job execution timeout. The worker is
// idle until Start is called.
func NewWorker(timeout time.Duration, log zerolog.Logger) *Worker {
	return &Worker{
		timeout: timeout,
		log:     log.With().Str("service", "offload").Logger(),
	}
}

// Start launches the worker loop. Starting an already-running worker is a
// no-op; starting a stopped one brings it back with an empty queue.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.jobs = make(chan Job, defaultQueueDepth)
	w.stop = make(chan struct{})
	w.stopped = make(chan struct{})
	w.running = true
	go w.run(w.jobs, w.stop, w.stopped)
}

func (w *Worker) run(jobs <-chan Job, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	for {
		select {
		case <-stop:
			return
		case job := <-jobs:
			w.execute(job)
		}
	}
}

func (w *Worker) execute(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			w.log.Error().Str("job", job.Name).Dur("elapsed", elapsed).Msg("Job timed out")
		} else {
			w.log.Error().Err(err).Str("job", job.Name).Msg("Job failed")
		}
		return
	}
	w.log.Debug().Str("job", job.Name).Dur("elapsed", elapsed).Msg("Job completed")
}

// Submit enqueues a job. Returns false when the worker is stopped or the
// queue is full; the caller decides whether to run inline or drop.
func (w *Worker) Submit(job Job) bool {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return false
	}
	jobs := w.jobs
	w.mu.Unlock()

	select {
	case jobs <- job:
		return true
	default:
		w.log.Warn().Str("job", job.Name).Msg("Job queue full, rejecting")
		return false
	}
}

// Stop halts the loop after the current job finishes. Queued jobs are
// discarded. Stopping an idle worker is a no-op.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stop, stopped := w.stop, w.stopped
	w.mu.Unlock()

	close(stop)
	<-stopped
}

// Running reports whether the worker loop is up.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
