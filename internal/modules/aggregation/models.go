// Package aggregation computes dashboard statistics from document snapshots.
// All functions are pure: same inputs produce same outputs, and data-shape
// problems never raise errors - malformed documents are skipped and counted.
package aggregation

// Stats is the flat statistics block for the resolved window.
type Stats struct {
	GrossRevenue float64 `json:"gross_revenue"`
	ReturnValue  float64 `json:"return_value"`
	NetRevenue   float64 `json:"net_revenue"`

	GrossProfit    float64 `json:"gross_profit"`
	ReturnedProfit float64 `json:"returned_profit"`
	NetProfit      float64 `json:"net_profit"`

	ItemsSold     float64 `json:"items_sold"`
	ItemsReturned float64 `json:"items_returned"`
	NetItemsSold  float64 `json:"net_items_sold"`

	CashInflow  float64 `json:"cash_inflow"`
	CashOutflow float64 `json:"cash_outflow"`
	NetCashFlow float64 `json:"net_cash_flow"`

	TotalReceivable float64 `json:"total_receivable"`
	CustomerCredit  float64 `json:"customer_credit"`
	TotalPayable    float64 `json:"total_payable"`
	SupplierCredit  float64 `json:"supplier_credit"`

	GrossPurchases      float64 `json:"gross_purchases"`
	SupplierRefundValue float64 `json:"supplier_refund_value"`
	TotalPurchase       float64 `json:"total_purchase"`

	TotalSales   int     `json:"total_sales"`
	TotalReturns int     `json:"total_returns"`
	AverageSale  float64 `json:"average_sale"`
}

// ChartPoint is one bucket of a rolling chart window.
type ChartPoint struct {
	Key     string  `json:"key"`
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
	Sales   int     `json:"sales"`
}

// BucketSummary carries distribution statistics over a bucket series.
type BucketSummary struct {
	MeanRevenue   float64 `json:"mean_revenue"`
	StdDevRevenue float64 `json:"stddev_revenue"`
}

// ChartData holds the three fixed-size rolling windows: 14 daily, 12 weekly
// and 12 monthly buckets, each sorted by key ascending and never sparse.
type ChartData struct {
	Daily   []ChartPoint  `json:"daily"`
	Weekly  []ChartPoint  `json:"weekly"`
	Monthly []ChartPoint  `json:"monthly"`
	Summary BucketSummary `json:"summary"`
}

// HourSlot is one hour-of-day accumulator.
type HourSlot struct {
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
	Sales   int     `json:"sales"`
}

// PeakHours holds three cumulative, non-exclusive hour-of-day windows:
// a sale made today contributes to all three.
type PeakHours struct {
	Daily   [24]HourSlot `json:"daily"`
	Weekly  [24]HourSlot `json:"weekly"`
	Monthly [24]HourSlot `json:"monthly"`
}

// CashflowCell is one day of the cash-flow calendar heatmap. Cells with both
// fields zero are never emitted.
type CashflowCell struct {
	Inflow  float64 `json:"inflow"`
	Outflow float64 `json:"outflow"`
}

// Result is the full aggregation output for one (snapshot, timeframe) pair.
// It is derived data, recomputed on every timeframe or cache change, and is
// never persisted.
type Result struct {
	Stats     Stats                   `json:"stats"`
	ChartData ChartData               `json:"chart_data"`
	PeakHours PeakHours               `json:"peak_hours"`
	Heatmap   map[string]CashflowCell `json:"cashflow_heatmap"`

	// Skipped counts malformed documents dropped during aggregation.
	Skipped int `json:"skipped"`
}
