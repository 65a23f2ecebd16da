package aggregation

import (
	"time"

	"github.com/retailpulse/pulse/internal/domain"
)

// BuildPeakHours accumulates sale revenue, profit and count into 24-slot
// hour-of-day arrays over three cumulative windows: today, the current week
// and the current month. The windows are non-exclusive - today is contained
// in the week which is contained in the month, so one sale can count in all
// three.
func BuildPeakHours(sales []domain.Document, now time.Time) (PeakHours, int) {
	var peaks PeakHours
	skipped := 0

	dayWindow := Window{Start: startOfDay(now), End: endOfDay(now)}
	weekStart := startOfWeek(now)
	weekWindow := Window{Start: weekStart, End: endOfDay(weekStart.AddDate(0, 0, 6))}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthWindow := Window{Start: monthStart, End: endOfDay(monthStart.AddDate(0, 1, -1))}

	for _, doc := range sales {
		if doc == nil {
			skipped++
			continue
		}

		sale, ok := doc.(*domain.SaleRecord)
		if !ok {
			// Returns carry no peak-hour signal; only sale activity peaks.
			continue
		}
		if !finite(sale.Total, sale.Profit) {
			skipped++
			continue
		}

		hour := sale.CreatedAt.Hour()
		if monthWindow.Contains(sale.CreatedAt) {
			addHour(&peaks.Monthly, hour, sale)
		}
		if weekWindow.Contains(sale.CreatedAt) {
			addHour(&peaks.Weekly, hour, sale)
		}
		if dayWindow.Contains(sale.CreatedAt) {
			addHour(&peaks.Daily, hour, sale)
		}
	}

	return peaks, skipped
}

func addHour(slots *[24]HourSlot, hour int, sale *domain.SaleRecord) {
	if hour < 0 || hour > 23 {
		return
	}
	slots[hour].Revenue += sale.Total
	slots[hour].Profit += sale.Profit
	slots[hour].Sales++
}
