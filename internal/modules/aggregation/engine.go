package aggregation

import (
	"time"

	"github.com/retailpulse/pulse/internal/domain"
)

// Aggregate runs the full engine over one snapshot: window stats plus the
// rolling chart windows, peak hours and the cash-flow heatmap. The only error
// source is window resolution; data-shape problems are absorbed into the
// skipped count.
func Aggregate(snap *domain.Snapshot, tf domain.Timeframe, custom *domain.DateRange, now time.Time) (*Result, error) {
	window, err := ResolveWindow(tf, custom, now)
	if err != nil {
		return nil, err
	}

	if snap == nil {
		snap = &domain.Snapshot{}
	}

	stats, statsSkipped := CalculateStats(snap, window)
	charts, chartSkipped := BuildChartData(snap.Sales, now)
	peaks, peakSkipped := BuildPeakHours(snap.Sales, now)
	heatmap, heatSkipped := BuildHeatmap(snap.Sales, snap.Purchases)

	return &Result{
		Stats:     stats,
		ChartData: charts,
		PeakHours: peaks,
		Heatmap:   heatmap,
		Skipped:   statsSkipped + chartSkipped + peakSkipped + heatSkipped,
	}, nil
}
