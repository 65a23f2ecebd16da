package aggregation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailpulse/pulse/internal/domain"
)

func mkPurchase(id string, at time.Time, total, paid float64) *domain.PurchaseRecord {
	return &domain.PurchaseRecord{
		ID:         id,
		CreatedAt:  at,
		GrandTotal: total,
		AmountPaid: paid,
	}
}

func TestBuildHeatmap_SaleAndPurchaseOnSameDay(t *testing.T) {
	sales := []domain.Document{mkSale("s1", testNow, 100, 30, 100)}
	purchases := []domain.Document{mkPurchase("p1", testNow, 500, 200)}

	heatmap, skipped := BuildHeatmap(sales, purchases)

	assert.Equal(t, 0, skipped)
	require.Len(t, heatmap, 1)

	cell := heatmap[testNow.Format("2006-01-02")]
	assert.InDelta(t, 100.0, cell.Inflow, 1e-9)
	assert.InDelta(t, 200.0, cell.Outflow, 1e-9)
}

func TestBuildHeatmap_RefundSettlementsMoveCash(t *testing.T) {
	ret := mkReturn("r1", "s1", testNow, 50, domain.SettlementRefund)
	ret.Settlement.AmountRefunded = 40

	purchaseReturn := &domain.PurchaseReturnRecord{
		ID:                 "pr1",
		ReturnedAt:         testNow,
		OriginalPurchaseID: "p1",
		TotalReturnValue:   25,
		Settlement:         domain.Settlement{Type: domain.SettlementRefund},
	}

	heatmap, skipped := BuildHeatmap(
		[]domain.Document{ret},
		[]domain.Document{purchaseReturn},
	)

	assert.Equal(t, 0, skipped)
	cell := heatmap[testNow.Format("2006-01-02")]
	// Customer refund is cash out; supplier refund is cash in. The purchase
	// return falls back to its return value because no amount was recorded.
	assert.InDelta(t, 25.0, cell.Inflow, 1e-9)
	assert.InDelta(t, 40.0, cell.Outflow, 1e-9)
}

func TestBuildHeatmap_CreditSettlementLeavesNoCell(t *testing.T) {
	ret := mkReturn("r1", "s1", testNow, 50, domain.SettlementCredit)

	heatmap, skipped := BuildHeatmap([]domain.Document{ret}, nil)

	assert.Equal(t, 0, skipped)
	assert.Empty(t, heatmap)
}

func TestBuildHeatmap_ZeroPaymentCreatesNoCell(t *testing.T) {
	heatmap, skipped := BuildHeatmap(
		[]domain.Document{mkSale("s1", testNow, 100, 30, 0)},
		nil,
	)

	assert.Equal(t, 0, skipped)
	assert.Empty(t, heatmap)
}

func TestBuildHeatmap_SkipsBadDocuments(t *testing.T) {
	bad := mkSale("s1", testNow, 100, 30, math.NaN())

	heatmap, skipped := BuildHeatmap([]domain.Document{bad, nil}, nil)

	assert.Equal(t, 2, skipped)
	assert.Empty(t, heatmap)
}

func TestBuildHeatmap_AccumulatesAcrossDays(t *testing.T) {
	yesterday := testNow.AddDate(0, 0, -1)
	sales := []domain.Document{
		mkSale("s1", testNow, 100, 30, 100),
		mkSale("s2", testNow, 50, 10, 50),
		mkSale("s3", yesterday, 80, 20, 80),
	}

	heatmap, skipped := BuildHeatmap(sales, nil)

	assert.Equal(t, 0, skipped)
	require.Len(t, heatmap, 2)
	assert.InDelta(t, 150.0, heatmap[testNow.Format("2006-01-02")].Inflow, 1e-9)
	assert.InDelta(t, 80.0, heatmap[yesterday.Format("2006-01-02")].Inflow, 1e-9)
}

func TestBuildHeatmap_NeverBothZero(t *testing.T) {
	sales := []domain.Document{
		mkSale("paid", testNow, 100, 30, 100),
		mkSale("unpaid", testNow.AddDate(0, 0, -1), 100, 30, 0), // no cash moved
		mkReturn("credit", "paid", testNow.AddDate(0, 0, -2), 50, domain.SettlementCredit),
	}

	heatmap, skipped := BuildHeatmap(sales, nil)

	assert.Equal(t, 0, skipped)
	require.Len(t, heatmap, 1)
	for _, cell := range heatmap {
		assert.False(t, cell.Inflow == 0 && cell.Outflow == 0)
	}

	cell := heatmap[dayKey(testNow)]
	assert.InDelta(t, 100.0, cell.Inflow, 1e-9)
}

func TestBuildHeatmap_RefundsAndPurchases(t *testing.T) {
	day := time.Date(2026, 8, 10, 11, 0, 0, 0, time.UTC)
	sales := []domain.Document{
		&domain.ReturnRecord{
			ID:               "r1",
			ReturnedAt:       day,
			TotalReturnValue: 40,
			Settlement:       domain.Settlement{Type: domain.SettlementRefund, AmountRefunded: 40},
		},
	}
	purchases := []domain.Document{
		mkPurchase("p1", day, 300, 200),
		&domain.PurchaseReturnRecord{
			ID:               "pr1",
			ReturnedAt:       day,
			TotalReturnValue: 80,
			Settlement:       domain.Settlement{Type: domain.SettlementRefund, AmountRefunded: 80},
		},
	}

	heatmap, _ := BuildHeatmap(sales, purchases)

	cell, ok := heatmap[dayKey(day)]
	require.True(t, ok)
	assert.InDelta(t, 80.0, cell.Inflow, 1e-9)   // purchase-return refund
	assert.InDelta(t, 240.0, cell.Outflow, 1e-9) // purchase payment + sale refund
}
