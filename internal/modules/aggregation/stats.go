package aggregation

import (
	"math"

	"github.com/retailpulse/pulse/internal/domain"
)

// CalculateStats computes the statistics block for one window. Malformed
// documents are skipped and counted; an entirely unusable snapshot yields the
// canonical all-zero Stats.
func CalculateStats(snap *domain.Snapshot, window Window) (Stats, int) {
	var stats Stats
	skipped := 0

	if snap == nil {
		return stats, 0
	}

	lookup := buildSaleLookup(snap.Sales)

	for _, doc := range snap.Sales {
		if doc == nil {
			skipped++
			continue
		}

		switch rec := doc.(type) {
		case *domain.SaleRecord:
			if !finite(rec.Total, rec.Profit, rec.AmountPaid) {
				skipped++
				continue
			}
			if !window.Contains(rec.CreatedAt) {
				continue
			}
			stats.GrossRevenue += rec.Total
			stats.GrossProfit += rec.Profit
			stats.CashInflow += rec.AmountPaid
			stats.TotalSales++
			for _, item := range rec.Items {
				stats.ItemsSold += item.Quantity
			}

		case *domain.ReturnRecord:
			if !finite(rec.TotalReturnValue, rec.Settlement.AmountRefunded) {
				skipped++
				continue
			}
			if !window.Contains(rec.ReturnedAt) {
				continue
			}
			stats.ReturnValue += math.Abs(rec.TotalReturnValue)
			stats.ReturnedProfit += attributedProfit(rec, lookup)
			stats.TotalReturns++
			// Cash only actually leaves for REFUND settlements; CREDIT
			// adjusts the customer balance instead.
			if rec.Settlement.Type == domain.SettlementRefund {
				stats.CashOutflow += refundAmount(rec.Settlement, rec.TotalReturnValue)
			}
			for _, item := range rec.Items {
				stats.ItemsReturned += returnedQuantity(item)
			}

		default:
			skipped++
		}
	}

	for _, doc := range snap.Purchases {
		if doc == nil {
			skipped++
			continue
		}

		switch rec := doc.(type) {
		case *domain.PurchaseRecord:
			if !finite(rec.GrandTotal, rec.AmountPaid) {
				skipped++
				continue
			}
			if !window.Contains(rec.CreatedAt) {
				continue
			}
			stats.GrossPurchases += rec.GrandTotal
			stats.CashOutflow += rec.AmountPaid

		case *domain.PurchaseReturnRecord:
			if !finite(rec.TotalReturnValue, rec.Settlement.AmountRefunded) {
				skipped++
				continue
			}
			if !window.Contains(rec.ReturnedAt) {
				continue
			}
			stats.SupplierRefundValue += math.Abs(rec.TotalReturnValue)
			if rec.Settlement.Type == domain.SettlementRefund {
				stats.CashInflow += refundAmount(rec.Settlement, rec.TotalReturnValue)
			}

		default:
			skipped++
		}
	}

	for _, tx := range snap.Transactions {
		if tx == nil || !finite(tx.Amount) {
			skipped++
			continue
		}
		if !window.Contains(tx.OccurredAt) {
			continue
		}
		switch tx.Direction {
		case domain.DirectionIn:
			stats.CashInflow += math.Abs(tx.Amount)
		case domain.DirectionOut:
			stats.CashOutflow += math.Abs(tx.Amount)
		default:
			skipped++
		}
	}

	// Balances reflect the current state, never the window.
	for _, c := range snap.Customers {
		if !finite(c.Balance) {
			skipped++
			continue
		}
		if c.Balance > 0 {
			stats.TotalReceivable += c.Balance
		} else {
			stats.CustomerCredit += -c.Balance
		}
	}
	for _, s := range snap.Suppliers {
		if !finite(s.Balance) {
			skipped++
			continue
		}
		if s.Balance > 0 {
			stats.TotalPayable += s.Balance
		} else {
			stats.SupplierCredit += -s.Balance
		}
	}

	// Derived fields.
	stats.NetRevenue = stats.GrossRevenue - stats.ReturnValue
	stats.NetProfit = stats.GrossProfit - stats.ReturnedProfit
	stats.NetItemsSold = stats.ItemsSold - stats.ItemsReturned
	stats.NetCashFlow = stats.CashInflow - stats.CashOutflow
	stats.TotalPurchase = stats.GrossPurchases - stats.SupplierRefundValue
	if stats.TotalSales > 0 {
		stats.AverageSale = stats.NetRevenue / float64(stats.TotalSales)
	}

	// Non-negative fields are floored at zero; profit and net cash flow stay
	// signed.
	stats.GrossRevenue = floorZero(stats.GrossRevenue)
	stats.ReturnValue = floorZero(stats.ReturnValue)
	stats.NetRevenue = floorZero(stats.NetRevenue)
	stats.ItemsSold = floorZero(stats.ItemsSold)
	stats.ItemsReturned = floorZero(stats.ItemsReturned)
	stats.CashInflow = floorZero(stats.CashInflow)
	stats.CashOutflow = floorZero(stats.CashOutflow)
	stats.TotalReceivable = floorZero(stats.TotalReceivable)
	stats.CustomerCredit = floorZero(stats.CustomerCredit)
	stats.TotalPayable = floorZero(stats.TotalPayable)
	stats.SupplierCredit = floorZero(stats.SupplierCredit)
	stats.GrossPurchases = floorZero(stats.GrossPurchases)
	stats.SupplierRefundValue = floorZero(stats.SupplierRefundValue)
	stats.TotalPurchase = floorZero(stats.TotalPurchase)
	stats.AverageSale = floorZero(stats.AverageSale)

	return stats, skipped
}

// returnedQuantity resolves the returned count for one line item. A return
// lacking an explicit return quantity falls back to the full line quantity.
func returnedQuantity(item domain.SaleItem) float64 {
	if item.ReturnQuantity > 0 {
		return item.ReturnQuantity
	}
	return item.Quantity
}
