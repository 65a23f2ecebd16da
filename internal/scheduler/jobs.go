package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/retailpulse/pulse/internal/database"
)

// StalenessSweepJob asks the dashboard to purge expired memo rows and, when
// anyone is watching a stale dashboard, refresh it in the background.
type StalenessSweepJob struct {
	sweep func()
}

// NewStalenessSweepJob creates a new StalenessSweepJob
func NewStalenessSweepJob(sweep func()) *StalenessSweepJob {
	return &StalenessSweepJob{sweep: sweep}
}

// Name returns the job name
func (j *StalenessSweepJob) Name() string {
	return "staleness_sweep"
}

// Run executes the staleness sweep job
func (j *StalenessSweepJob) Run() error {
	j.sweep()
	return nil
}

// CheckWALCheckpointsJob monitors WAL checkpoint status across databases
type CheckWALCheckpointsJob struct {
	log       zerolog.Logger
	databases map[string]*database.DB
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob
func NewCheckWALCheckpointsJob(databases map[string]*database.DB, log zerolog.Logger) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		log:       log.With().Str("job", "check_wal_checkpoints").Logger(),
		databases: databases,
	}
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes the check WAL checkpoints job
func (j *CheckWALCheckpointsJob) Run() error {
	checkedCount := 0
	for name, db := range j.databases {
		if db == nil {
			continue
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, logFrames, checkpointed int
		err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &logFrames, &checkpointed)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		if logFrames > 1000 {
			j.log.Warn().
				Str("database", name).
				Int("wal_frames", logFrames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, checkpoint may be needed")
		} else {
			j.log.Debug().
				Str("database", name).
				Int("wal_frames", logFrames).
				Msg("WAL checkpoint status OK")
		}

		checkedCount++
	}

	j.log.Info().
		Int("checked", checkedCount).
		Msg("WAL checkpoint check completed")

	return nil
}
