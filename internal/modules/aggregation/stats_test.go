package aggregation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailpulse/pulse/internal/domain"
)

var testNow = time.Date(2026, 8, 19, 14, 30, 0, 0, time.UTC) // a Wednesday

func mkSale(id string, at time.Time, total, profit, paid float64) *domain.SaleRecord {
	return &domain.SaleRecord{
		ID:         id,
		CreatedAt:  at,
		Total:      total,
		Profit:     profit,
		AmountPaid: paid,
		Items:      []domain.SaleItem{{Quantity: 1, SellingPrice: total}},
	}
}

func mkReturn(id, originalID string, at time.Time, value float64, settlement domain.SettlementType) *domain.ReturnRecord {
	return &domain.ReturnRecord{
		ID:                id,
		ReturnedAt:        at,
		OriginalInvoiceID: originalID,
		TotalReturnValue:  value,
		Settlement:        domain.Settlement{Type: settlement},
	}
}

func todayWindow(t *testing.T) Window {
	t.Helper()
	w, err := ResolveWindow(domain.TimeframeToday, nil, testNow)
	require.NoError(t, err)
	return w
}

func TestCalculateStats_SaleWithCreditReturn(t *testing.T) {
	// One sale (total=100, profit=30, paid=100) plus a same-window return of
	// 50 settled as store credit.
	snap := &domain.Snapshot{
		Sales: []domain.Document{
			mkSale("s1", testNow, 100, 30, 100),
			mkReturn("r1", "s1", testNow, 50, domain.SettlementCredit),
		},
	}

	stats, skipped := CalculateStats(snap, todayWindow(t))

	assert.Equal(t, 0, skipped)
	assert.InDelta(t, 50.0, stats.NetRevenue, 1e-9)
	assert.InDelta(t, 15.0, stats.NetProfit, 1e-9) // 30 - 30*0.5
	assert.InDelta(t, 100.0, stats.CashInflow, 1e-9)
	assert.InDelta(t, 0.0, stats.CashOutflow, 1e-9) // credit, not a cash refund
	assert.Equal(t, 1, stats.TotalSales)
	assert.Equal(t, 1, stats.TotalReturns)
}

func TestCalculateStats_RefundReturnMovesCash(t *testing.T) {
	snap := &domain.Snapshot{
		Sales: []domain.Document{
			mkSale("s1", testNow, 100, 30, 100),
			mkReturn("r1", "s1", testNow, 40, domain.SettlementRefund),
		},
	}

	stats, _ := CalculateStats(snap, todayWindow(t))

	assert.InDelta(t, 40.0, stats.CashOutflow, 1e-9)
	assert.InDelta(t, 60.0, stats.NetCashFlow, 1e-9)
}

func TestCalculateStats_AttributionClamped(t *testing.T) {
	// Return value exceeds the original sale total: the attribution ratio is
	// clamped so attributed profit never exceeds the original profit.
	snap := &domain.Snapshot{
		Sales: []domain.Document{
			mkSale("s1", testNow, 100, 30, 100),
			mkReturn("r1", "s1", testNow, 250, domain.SettlementCredit),
		},
	}

	stats, _ := CalculateStats(snap, todayWindow(t))

	assert.InDelta(t, 30.0, stats.ReturnedProfit, 1e-9)
	assert.LessOrEqual(t, math.Abs(stats.ReturnedProfit), 30.0)
}

func TestCalculateStats_OriginalSaleOutsideWindow(t *testing.T) {
	// The original sale predates the window, but its profit still feeds the
	// attribution of the windowed return.
	old := testNow.AddDate(0, -2, 0)
	snap := &domain.Snapshot{
		Sales: []domain.Document{
			mkSale("s1", old, 200, 80, 200),
			mkReturn("r1", "s1", testNow, 100, domain.SettlementCredit),
		},
	}

	stats, _ := CalculateStats(snap, todayWindow(t))

	assert.Equal(t, 0, stats.TotalSales) // sale is outside the window
	assert.InDelta(t, 40.0, stats.ReturnedProfit, 1e-9)
	assert.InDelta(t, -40.0, stats.NetProfit, 1e-9)
}

func TestCalculateStats_OrphanReturn(t *testing.T) {
	snap := &domain.Snapshot{
		Sales: []domain.Document{
			mkReturn("r1", "missing", testNow, 50, domain.SettlementCredit),
		},
	}

	stats, skipped := CalculateStats(snap, todayWindow(t))

	assert.Equal(t, 0, skipped)
	assert.InDelta(t, 50.0, stats.ReturnValue, 1e-9)
	assert.InDelta(t, 0.0, stats.ReturnedProfit, 1e-9)
}

func TestCalculateStats_EmptySnapshot(t *testing.T) {
	stats, skipped := CalculateStats(&domain.Snapshot{}, todayWindow(t))

	assert.Equal(t, 0, skipped)
	assert.Equal(t, Stats{}, stats)
}

func TestCalculateStats_NilSnapshot(t *testing.T) {
	stats, skipped := CalculateStats(nil, todayWindow(t))

	assert.Equal(t, 0, skipped)
	assert.Equal(t, Stats{}, stats)
}

func TestCalculateStats_MalformedDocumentsSkipped(t *testing.T) {
	snap := &domain.Snapshot{
		Sales: []domain.Document{
			mkSale("s1", testNow, 100, 30, 100),
			mkSale("s2", testNow, math.NaN(), 10, 10),
			nil,
		},
		Transactions: []*domain.LedgerTransaction{
			{ID: "t1", OccurredAt: testNow, Direction: domain.DirectionIn, Amount: math.Inf(1)},
		},
	}

	stats, skipped := CalculateStats(snap, todayWindow(t))

	assert.Equal(t, 3, skipped)
	assert.Equal(t, 1, stats.TotalSales)
	assert.InDelta(t, 100.0, stats.GrossRevenue, 1e-9)
}

func TestCalculateStats_BalancesPartitionedBySign(t *testing.T) {
	snap := &domain.Snapshot{
		Customers: []domain.Customer{
			{ID: "c1", Balance: 120},
			{ID: "c2", Balance: -30},
		},
		Suppliers: []domain.Supplier{
			{ID: "v1", Balance: 75},
			{ID: "v2", Balance: -15},
		},
	}

	stats, _ := CalculateStats(snap, todayWindow(t))

	assert.InDelta(t, 120.0, stats.TotalReceivable, 1e-9)
	assert.InDelta(t, 30.0, stats.CustomerCredit, 1e-9)
	assert.InDelta(t, 75.0, stats.TotalPayable, 1e-9)
	assert.InDelta(t, 15.0, stats.SupplierCredit, 1e-9)
}

func TestCalculateStats_LedgerDirections(t *testing.T) {
	snap := &domain.Snapshot{
		Transactions: []*domain.LedgerTransaction{
			{ID: "t1", OccurredAt: testNow, Direction: domain.DirectionIn, Amount: 500},
			{ID: "t2", OccurredAt: testNow, Direction: domain.DirectionOut, Amount: 200},
			{ID: "t3", OccurredAt: testNow.AddDate(0, 0, -10), Direction: domain.DirectionIn, Amount: 999},
		},
	}

	stats, _ := CalculateStats(snap, todayWindow(t))

	assert.InDelta(t, 500.0, stats.CashInflow, 1e-9)
	assert.InDelta(t, 200.0, stats.CashOutflow, 1e-9)
	assert.InDelta(t, 300.0, stats.NetCashFlow, 1e-9)
}

func TestCalculateStats_PurchasesAndSupplierReturns(t *testing.T) {
	snap := &domain.Snapshot{
		Purchases: []domain.Document{
			&domain.PurchaseRecord{ID: "p1", CreatedAt: testNow, GrandTotal: 400, AmountPaid: 250},
			&domain.PurchaseReturnRecord{
				ID:               "pr1",
				ReturnedAt:       testNow,
				TotalReturnValue: 100,
				Settlement:       domain.Settlement{Type: domain.SettlementRefund, AmountRefunded: 100},
			},
		},
	}

	stats, _ := CalculateStats(snap, todayWindow(t))

	assert.InDelta(t, 400.0, stats.GrossPurchases, 1e-9)
	assert.InDelta(t, 300.0, stats.TotalPurchase, 1e-9)
	assert.InDelta(t, 250.0, stats.CashOutflow, 1e-9)
	assert.InDelta(t, 100.0, stats.CashInflow, 1e-9)
}

func TestCalculateStats_AverageSale(t *testing.T) {
	t.Run("zero when no sales", func(t *testing.T) {
		stats, _ := CalculateStats(&domain.Snapshot{}, todayWindow(t))
		assert.Zero(t, stats.AverageSale)
	})

	t.Run("net revenue over sales count", func(t *testing.T) {
		snap := &domain.Snapshot{
			Sales: []domain.Document{
				mkSale("s1", testNow, 100, 30, 100),
				mkSale("s2", testNow, 200, 60, 200),
			},
		}
		stats, _ := CalculateStats(snap, todayWindow(t))
		assert.InDelta(t, 150.0, stats.AverageSale, 1e-9)
	})
}

func TestCalculateStats_Idempotent(t *testing.T) {
	snap := &domain.Snapshot{
		Sales: []domain.Document{
			mkSale("s1", testNow, 100, 30, 100),
			mkReturn("r1", "s1", testNow, 50, domain.SettlementRefund),
		},
		Customers: []domain.Customer{{ID: "c1", Balance: -10}},
	}
	window := todayWindow(t)

	first, firstSkipped := CalculateStats(snap, window)
	second, secondSkipped := CalculateStats(snap, window)

	assert.Equal(t, first, second)
	assert.Equal(t, firstSkipped, secondSkipped)
}

func TestCalculateStats_FieldsAlwaysFinite(t *testing.T) {
	snap := &domain.Snapshot{
		Sales: []domain.Document{
			mkSale("s1", testNow, math.Inf(1), math.NaN(), 50),
			mkSale("s2", testNow, 80, 20, 80),
			mkReturn("r1", "s2", testNow, math.NaN(), domain.SettlementRefund),
		},
		Customers: []domain.Customer{{ID: "c1", Balance: math.NaN()}},
	}

	stats, skipped := CalculateStats(snap, todayWindow(t))

	assert.Equal(t, 3, skipped)
	for _, v := range []float64{
		stats.GrossRevenue, stats.ReturnValue, stats.NetRevenue,
		stats.GrossProfit, stats.ReturnedProfit, stats.NetProfit,
		stats.CashInflow, stats.CashOutflow, stats.NetCashFlow,
		stats.TotalReceivable, stats.CustomerCredit,
		stats.TotalPayable, stats.SupplierCredit,
		stats.GrossPurchases, stats.TotalPurchase, stats.AverageSale,
	} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestReturnedQuantity_Fallback(t *testing.T) {
	assert.Equal(t, 2.0, returnedQuantity(domain.SaleItem{Quantity: 5, ReturnQuantity: 2}))
	// No explicit return quantity: fall back to the full line quantity.
	assert.Equal(t, 5.0, returnedQuantity(domain.SaleItem{Quantity: 5}))
}
