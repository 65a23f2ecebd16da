package aggregation

import (
	"math"

	"github.com/retailpulse/pulse/internal/domain"
)

// saleRef is the per-sale data needed for proportional return attribution.
type saleRef struct {
	profit float64
	total  float64
}

// buildSaleLookup indexes every sale by ID, regardless of window: the
// original sale of a windowed return may predate the window.
func buildSaleLookup(sales []domain.Document) map[string]saleRef {
	lookup := make(map[string]saleRef)
	for _, doc := range sales {
		sale, ok := doc.(*domain.SaleRecord)
		if !ok {
			continue
		}
		if !finite(sale.Profit, sale.Total) {
			continue
		}
		lookup[sale.ID] = saleRef{profit: sale.Profit, total: sale.Total}
	}
	return lookup
}

// attributedProfit allocates a share of the original sale's profit to a
// return, proportional to the returned value's share of the sale total. The
// ratio is clamped to [0,1] so attribution never exceeds the original
// profit's magnitude, even when the return value overshoots the sale total.
func attributedProfit(ret *domain.ReturnRecord, lookup map[string]saleRef) float64 {
	ref, ok := lookup[ret.OriginalInvoiceID]
	if !ok || ref.total == 0 {
		return 0
	}

	ratio := math.Abs(ret.TotalReturnValue) / math.Abs(ref.total)
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 0
	}

	return ref.profit * ratio
}

// refundAmount is the cash actually moved by a settlement. Falls back to the
// document's return value when the settlement amount was not recorded.
func refundAmount(st domain.Settlement, returnValue float64) float64 {
	if st.AmountRefunded != 0 {
		return math.Abs(st.AmountRefunded)
	}
	return math.Abs(returnValue)
}

// finite reports whether every value is a usable number.
func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// floorZero clamps semantically non-negative fields at zero.
func floorZero(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
