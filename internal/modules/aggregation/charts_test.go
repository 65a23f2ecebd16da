package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailpulse/pulse/internal/domain"
)

func TestBuildChartData_BucketCountsAlwaysFixed(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		data, skipped := BuildChartData(nil, testNow)

		assert.Equal(t, 0, skipped)
		assert.Len(t, data.Daily, dailyBuckets)
		assert.Len(t, data.Weekly, weeklyBuckets)
		assert.Len(t, data.Monthly, monthlyBuckets)
		for _, p := range data.Daily {
			assert.Zero(t, p.Revenue)
			assert.Zero(t, p.Profit)
			assert.Zero(t, p.Sales)
		}
	})

	t.Run("sparse input still yields full windows", func(t *testing.T) {
		sales := []domain.Document{mkSale("s1", testNow, 100, 30, 100)}
		data, _ := BuildChartData(sales, testNow)

		assert.Len(t, data.Daily, dailyBuckets)
		assert.Len(t, data.Weekly, weeklyBuckets)
		assert.Len(t, data.Monthly, monthlyBuckets)
	})
}

func TestBuildChartData_SortedAscending(t *testing.T) {
	data, _ := BuildChartData(nil, testNow)

	for i := 1; i < len(data.Daily); i++ {
		assert.Less(t, data.Daily[i-1].Key, data.Daily[i].Key)
	}
	for i := 1; i < len(data.Monthly); i++ {
		assert.Less(t, data.Monthly[i-1].Key, data.Monthly[i].Key)
	}
}

func TestBuildChartData_AccumulatesIntoTodayBucket(t *testing.T) {
	sales := []domain.Document{
		mkSale("s1", testNow, 100, 30, 100),
		mkSale("s2", testNow.Add(-2*time.Hour), 50, 10, 50),
	}

	data, _ := BuildChartData(sales, testNow)

	today := data.Daily[len(data.Daily)-1]
	require.Equal(t, dayKey(testNow), today.Key)
	assert.InDelta(t, 150.0, today.Revenue, 1e-9)
	assert.InDelta(t, 40.0, today.Profit, 1e-9)
	assert.Equal(t, 2, today.Sales)
}

func TestBuildChartData_ReturnsSubtract(t *testing.T) {
	sales := []domain.Document{
		mkSale("s1", testNow, 100, 30, 100),
		mkReturn("r1", "s1", testNow, 50, domain.SettlementCredit),
	}

	data, _ := BuildChartData(sales, testNow)

	today := data.Daily[len(data.Daily)-1]
	assert.InDelta(t, 50.0, today.Revenue, 1e-9)
	assert.InDelta(t, 15.0, today.Profit, 1e-9) // 30 - 30*0.5
	assert.Equal(t, 1, today.Sales)             // returns never count as sales
}

func TestBuildChartData_OldDocumentsIgnored(t *testing.T) {
	sales := []domain.Document{
		mkSale("s1", testNow.AddDate(-2, 0, 0), 999, 99, 999),
	}

	data, skipped := BuildChartData(sales, testNow)

	assert.Equal(t, 0, skipped)
	for _, p := range data.Daily {
		assert.Zero(t, p.Revenue)
	}
	for _, p := range data.Monthly {
		assert.Zero(t, p.Revenue)
	}
}

func TestBuildChartData_WeeklyBucketSharedAcrossWeek(t *testing.T) {
	// Monday and Wednesday of the current week land in the same weekly bucket.
	monday := time.Date(2026, 8, 17, 9, 0, 0, 0, time.UTC)
	sales := []domain.Document{
		mkSale("s1", monday, 100, 20, 100),
		mkSale("s2", testNow, 50, 10, 50),
	}

	data, _ := BuildChartData(sales, testNow)

	current := data.Weekly[len(data.Weekly)-1]
	require.Equal(t, weekKey(testNow), current.Key)
	assert.InDelta(t, 150.0, current.Revenue, 1e-9)
	assert.Equal(t, 2, current.Sales)
}

func TestBuildChartData_MonthlyAnchoring(t *testing.T) {
	// A late-month reference date must not collapse neighboring months.
	endOfMay := time.Date(2026, 5, 31, 12, 0, 0, 0, time.UTC)

	data, _ := BuildChartData(nil, endOfMay)

	keys := make(map[string]bool)
	for _, p := range data.Monthly {
		assert.False(t, keys[p.Key], "duplicate monthly bucket %s", p.Key)
		keys[p.Key] = true
	}
	assert.Len(t, keys, monthlyBuckets)
}

func TestBuildChartData_Summary(t *testing.T) {
	sales := []domain.Document{mkSale("s1", testNow, 140, 30, 140)}

	data, _ := BuildChartData(sales, testNow)

	assert.InDelta(t, 10.0, data.Summary.MeanRevenue, 1e-9) // 140 over 14 daily buckets
	assert.Greater(t, data.Summary.StdDevRevenue, 0.0)
}
