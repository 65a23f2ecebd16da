package aggregation

import (
	"math"

	"github.com/retailpulse/pulse/internal/domain"
)

// BuildHeatmap produces the sparse cash-flow calendar: day key to inflow and
// outflow. Only cash-affecting events are recorded - sale payments, purchase
// payments and actual refund settlements in either direction. A cell is only
// created by a non-zero contribution, so no entry ever holds both fields zero.
func BuildHeatmap(sales, purchases []domain.Document) (map[string]CashflowCell, int) {
	heatmap := make(map[string]CashflowCell)
	skipped := 0

	addCash := func(key string, inflow, outflow float64) {
		if inflow == 0 && outflow == 0 {
			return
		}
		cell := heatmap[key]
		cell.Inflow += inflow
		cell.Outflow += outflow
		heatmap[key] = cell
	}

	for _, doc := range sales {
		if doc == nil {
			skipped++
			continue
		}

		switch rec := doc.(type) {
		case *domain.SaleRecord:
			if !finite(rec.AmountPaid) {
				skipped++
				continue
			}
			addCash(dayKey(rec.CreatedAt), math.Abs(rec.AmountPaid), 0)

		case *domain.ReturnRecord:
			if !finite(rec.Settlement.AmountRefunded, rec.TotalReturnValue) {
				skipped++
				continue
			}
			if rec.Settlement.Type == domain.SettlementRefund {
				addCash(dayKey(rec.ReturnedAt), 0, refundAmount(rec.Settlement, rec.TotalReturnValue))
			}

		default:
			skipped++
		}
	}

	for _, doc := range purchases {
		if doc == nil {
			skipped++
			continue
		}

		switch rec := doc.(type) {
		case *domain.PurchaseRecord:
			if !finite(rec.AmountPaid) {
				skipped++
				continue
			}
			addCash(dayKey(rec.CreatedAt), 0, math.Abs(rec.AmountPaid))

		case *domain.PurchaseReturnRecord:
			if !finite(rec.Settlement.AmountRefunded, rec.TotalReturnValue) {
				skipped++
				continue
			}
			if rec.Settlement.Type == domain.SettlementRefund {
				addCash(dayKey(rec.ReturnedAt), refundAmount(rec.Settlement, rec.TotalReturnValue), 0)
			}

		default:
			skipped++
		}
	}

	return heatmap, skipped
}
