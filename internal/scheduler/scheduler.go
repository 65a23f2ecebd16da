// Package scheduler drives periodic maintenance for the analytics core:
// sweeping stale cached results and watching SQLite WAL growth.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of scheduled work.
type Job interface {
	Run() error
	Name() string
}

// Scheduler wraps a seconds-resolution cron runner and logs every execution
// with its duration.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	entries map[cron.EntryID]string
}

// New creates an empty scheduler. Jobs are registered with AddJob before
// Start is called.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		log:     log.With().Str("component", "scheduler").Logger(),
		entries: make(map[cron.EntryID]string),
	}
}

// AddJob registers a job under a cron spec. Both 6-field specs
// ("0 */5 * * * *") and descriptors ("@hourly", "@every 1m") are accepted.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	id, err := s.cron.AddFunc(schedule, func() { s.runJob(job) })
	if err != nil {
		return err
	}
	s.entries[id] = job.Name()

	s.log.Info().
		Str("job", job.Name()).
		Str("schedule", schedule).
		Msg("Job registered")
	return nil
}

func (s *Scheduler) runJob(job Job) {
	start := time.Now()
	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("elapsed", time.Since(start)).
			Msg("Job failed")
		return
	}
	s.log.Debug().
		Str("job", job.Name()).
		Dur("elapsed", time.Since(start)).
		Msg("Job completed")
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job off-schedule")
	return job.Run()
}

// Start begins dispatching registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.entries)).Msg("Scheduler started")
}

// Stop halts dispatch and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}
