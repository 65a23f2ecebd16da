package aggregation

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/retailpulse/pulse/internal/domain"
)

const (
	dailyBuckets   = 14
	weeklyBuckets  = 12
	monthlyBuckets = 12
)

// BuildChartData accumulates sales and returns into three fixed-size rolling
// windows ending at now: 14 daily, 12 weekly and 12 monthly buckets. Buckets
// are pre-initialized to zero across the full range, so missing data produces
// a zero bucket, never an omitted one. Returns subtract their value and their
// attributed profit share in the bucket of their return date.
func BuildChartData(sales []domain.Document, now time.Time) (ChartData, int) {
	skipped := 0
	lookup := buildSaleLookup(sales)

	daily := initBuckets(dailyBuckets, func(i int) string {
		return dayKey(now.AddDate(0, 0, -(dailyBuckets - 1 - i)))
	})
	weekly := initBuckets(weeklyBuckets, func(i int) string {
		return weekKey(startOfWeek(now).AddDate(0, 0, -7*(weeklyBuckets-1-i)))
	})
	// Anchor month arithmetic on the 1st so late-month dates cannot skip a
	// month during normalization.
	monthAnchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthly := initBuckets(monthlyBuckets, func(i int) string {
		return monthKey(monthAnchor.AddDate(0, -(monthlyBuckets - 1 - i), 0))
	})

	accumulate := func(at time.Time, revenue, profit float64, sale bool) {
		addToBucket(daily, dayKey(at), revenue, profit, sale)
		addToBucket(weekly, weekKey(at), revenue, profit, sale)
		addToBucket(monthly, monthKey(at), revenue, profit, sale)
	}

	for _, doc := range sales {
		if doc == nil {
			skipped++
			continue
		}

		switch rec := doc.(type) {
		case *domain.SaleRecord:
			if !finite(rec.Total, rec.Profit) {
				skipped++
				continue
			}
			accumulate(rec.CreatedAt, rec.Total, rec.Profit, true)

		case *domain.ReturnRecord:
			if !finite(rec.TotalReturnValue) {
				skipped++
				continue
			}
			value := rec.TotalReturnValue
			if value < 0 {
				value = -value
			}
			accumulate(rec.ReturnedAt, -value, -attributedProfit(rec, lookup), false)

		default:
			skipped++
		}
	}

	data := ChartData{
		Daily:   flattenBuckets(daily),
		Weekly:  flattenBuckets(weekly),
		Monthly: flattenBuckets(monthly),
	}
	data.Summary = summarizeBuckets(data.Daily)

	return data, skipped
}

// initBuckets pre-creates n zero buckets keyed oldest-first.
func initBuckets(n int, keyAt func(i int) string) map[string]*ChartPoint {
	buckets := make(map[string]*ChartPoint, n)
	for i := 0; i < n; i++ {
		key := keyAt(i)
		buckets[key] = &ChartPoint{Key: key}
	}
	return buckets
}

// addToBucket accumulates into an initialized bucket. Documents outside the
// rolling window have no bucket and are ignored.
func addToBucket(buckets map[string]*ChartPoint, key string, revenue, profit float64, sale bool) {
	bucket, ok := buckets[key]
	if !ok {
		return
	}
	bucket.Revenue += revenue
	bucket.Profit += profit
	if sale {
		bucket.Sales++
	}
}

// flattenBuckets returns the buckets sorted by key ascending. Keys are
// zero-padded so lexical order is chronological order.
func flattenBuckets(buckets map[string]*ChartPoint) []ChartPoint {
	points := make([]ChartPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, *b)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Key < points[j].Key })
	return points
}

// summarizeBuckets computes mean and standard deviation of bucket revenue
// for trend display.
func summarizeBuckets(points []ChartPoint) BucketSummary {
	if len(points) == 0 {
		return BucketSummary{}
	}

	revenues := make([]float64, len(points))
	for i, p := range points {
		revenues[i] = p.Revenue
	}

	mean, std := stat.MeanStdDev(revenues, nil)
	if !finite(mean) {
		mean = 0
	}
	if !finite(std) {
		std = 0
	}

	return BucketSummary{MeanRevenue: mean, StdDevRevenue: std}
}
