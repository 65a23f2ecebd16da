package domain

import "time"

// Product is a catalog entry. Carried in the snapshot for completeness; the
// aggregation engine only counts it.
type Product struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku,omitempty"`
	Price     float64 `json:"price"`
	CostPrice float64 `json:"cost_price"`
	Stock     float64 `json:"stock"`
}

// Customer carries a signed balance: positive = receivable, negative = credit
// we owe the customer.
type Customer struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

// Supplier carries a signed balance: positive = payable, negative = credit
// the supplier owes us.
type Supplier struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

// Snapshot is a bounded, point-in-time view of the six document collections.
// Sales holds both sale and return documents; Purchases holds both purchase
// and purchase-return documents. Slices are most-recent-first as fetched.
type Snapshot struct {
	Sales        []Document
	Products     []Product
	Customers    []Customer
	Suppliers    []Supplier
	Purchases    []Document
	Transactions []*LedgerTransaction

	// FailedCollections lists collections that degraded to empty on fetch.
	FailedCollections []string
}

// IsEmpty reports whether the snapshot holds no documents at all.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Sales) == 0 && len(s.Products) == 0 && len(s.Customers) == 0 &&
		len(s.Suppliers) == 0 && len(s.Purchases) == 0 && len(s.Transactions) == 0
}

// LastSaleID returns the ID of the most recent sale or return document, or ""
// when no sales exist. Used by the cache coordinator for change detection.
func (s *Snapshot) LastSaleID() string {
	if len(s.Sales) == 0 {
		return ""
	}
	return s.Sales[0].DocID()
}

// LastTransactionID returns the ID of the most recent ledger transaction.
func (s *Snapshot) LastTransactionID() string {
	if len(s.Transactions) == 0 {
		return ""
	}
	return s.Transactions[0].ID
}

// Timeframe is a named date window used to filter documents before aggregation.
type Timeframe string

const (
	TimeframeToday  Timeframe = "today"
	TimeframeWeek   Timeframe = "week"
	TimeframeMonth  Timeframe = "month"
	TimeframeCustom Timeframe = "custom"
)

// Valid reports whether tf is one of the recognized timeframes.
func (tf Timeframe) Valid() bool {
	switch tf {
	case TimeframeToday, TimeframeWeek, TimeframeMonth, TimeframeCustom:
		return true
	}
	return false
}

// DateRange is an inclusive custom window. Required iff the timeframe is custom.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
