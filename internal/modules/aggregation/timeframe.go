package aggregation

import (
	"fmt"
	"time"

	"github.com/retailpulse/pulse/internal/domain"
)

// Window is an inclusive date window resolved from a timeframe.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, inclusive on both ends.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ResolveWindow resolves a timeframe into an inclusive date window relative
// to now. For custom timeframes the range end is clamped to the last
// millisecond of its day.
func ResolveWindow(tf domain.Timeframe, custom *domain.DateRange, now time.Time) (Window, error) {
	switch tf {
	case domain.TimeframeToday:
		return Window{Start: startOfDay(now), End: endOfDay(now)}, nil

	case domain.TimeframeWeek:
		start := startOfWeek(now)
		return Window{Start: start, End: endOfDay(start.AddDate(0, 0, 6))}, nil

	case domain.TimeframeMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Window{Start: start, End: now}, nil

	case domain.TimeframeCustom:
		if custom == nil {
			return Window{}, fmt.Errorf("custom timeframe requires a date range")
		}
		if custom.End.Before(custom.Start) {
			return Window{}, fmt.Errorf("custom range end %s precedes start %s", custom.End, custom.Start)
		}
		return Window{Start: custom.Start, End: endOfDay(custom.End)}, nil

	default:
		return Window{}, fmt.Errorf("unknown timeframe %q", tf)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// endOfDay is the last representable millisecond of t's day.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999_000_000, t.Location())
}

// startOfWeek returns midnight of the Monday of t's week.
func startOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started the previous Monday
	}
	return startOfDay(t.AddDate(0, 0, -(weekday - 1)))
}

// dayKey formats a date as YYYY-MM-DD.
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// monthKey formats a date as YYYY-MM.
func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// weekKey formats a date as YYYY-Www. The week number is derived from the
// day of year of the Monday starting the date's week, so every day of one
// Monday..Sunday span shares a key.
func weekKey(t time.Time) string {
	monday := startOfWeek(t)
	week := (monday.YearDay()-1)/7 + 1
	return fmt.Sprintf("%d-W%02d", monday.Year(), week)
}
