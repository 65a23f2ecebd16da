package settings

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailpulse/pulse/internal/domain"
	"github.com/retailpulse/pulse/internal/events"
)

// Persisted preference keys.
const (
	keyTimeframe  = "dashboard.timeframe"
	keyRangeStart = "dashboard.range_start"
	keyRangeEnd   = "dashboard.range_end"
)

// Service exposes typed access to dashboard preferences on top of the
// key-value repository and announces changes on the event bus.
type Service struct {
	repo *Repository
	bus  *events.Bus
	log  zerolog.Logger
}

// NewService creates the settings service.
func NewService(repo *Repository, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
		log:  log.With().Str("service", "settings").Logger(),
	}
}

// Timeframe returns the persisted timeframe selection, defaulting to today
// when nothing is stored or the stored value is no longer recognized.
func (s *Service) Timeframe() (domain.Timeframe, error) {
	value, err := s.repo.Get(keyTimeframe)
	if err != nil {
		return domain.TimeframeToday, err
	}
	if value == nil {
		return domain.TimeframeToday, nil
	}

	tf := domain.Timeframe(*value)
	if !tf.Valid() {
		s.log.Warn().Str("value", *value).Msg("Stored timeframe is invalid, using default")
		return domain.TimeframeToday, nil
	}
	return tf, nil
}

// SetTimeframe persists the timeframe selection and publishes a change event.
func (s *Service) SetTimeframe(tf domain.Timeframe) error {
	if !tf.Valid() {
		return fmt.Errorf("invalid timeframe %q", tf)
	}
	if err := s.repo.Set(keyTimeframe, string(tf)); err != nil {
		return err
	}
	s.publishChange(keyTimeframe, string(tf))
	return nil
}

// CustomRange returns the persisted custom date range, or nil when no
// complete range is stored.
func (s *Service) CustomRange() (*domain.DateRange, error) {
	start, err := s.repo.Get(keyRangeStart)
	if err != nil {
		return nil, err
	}
	end, err := s.repo.Get(keyRangeEnd)
	if err != nil {
		return nil, err
	}
	if start == nil || end == nil {
		return nil, nil
	}

	startAt, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		s.log.Warn().Str("value", *start).Msg("Stored range start is unparseable, ignoring range")
		return nil, nil
	}
	endAt, err := time.Parse(time.RFC3339, *end)
	if err != nil {
		s.log.Warn().Str("value", *end).Msg("Stored range end is unparseable, ignoring range")
		return nil, nil
	}

	return &domain.DateRange{Start: startAt, End: endAt}, nil
}

// SetCustomRange persists a custom date range. The range must be ordered.
func (s *Service) SetCustomRange(r domain.DateRange) error {
	if r.End.Before(r.Start) {
		return fmt.Errorf("custom range end %s precedes start %s", r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	if err := s.repo.Set(keyRangeStart, r.Start.Format(time.RFC3339)); err != nil {
		return err
	}
	if err := s.repo.Set(keyRangeEnd, r.End.Format(time.RFC3339)); err != nil {
		return err
	}
	s.publishChange(keyRangeStart, r.Start.Format(time.RFC3339))
	return nil
}

// ClearCustomRange drops any stored custom range.
func (s *Service) ClearCustomRange() error {
	if err := s.repo.Delete(keyRangeStart); err != nil {
		return err
	}
	return s.repo.Delete(keyRangeEnd)
}

func (s *Service) publishChange(key, value string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.SettingsChanged, "settings", &events.SettingsChangedData{Key: key, Value: value})
}
