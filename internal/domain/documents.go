// Package domain defines the transactional document model shared by all modules.
// Documents form a discriminated union: each kind is its own struct implementing
// the Document interface, and classification is always by kind tag - never by
// sniffing fields.
package domain

import "time"

// DocKind discriminates the document union.
type DocKind string

const (
	KindSale           DocKind = "SALE"
	KindReturn         DocKind = "RETURN"
	KindPurchase       DocKind = "PURCHASE"
	KindPurchaseReturn DocKind = "PURCHASE_RETURN"
	KindLedger         DocKind = "LEDGER"
)

// SettlementType distinguishes cash refunds from store credit.
type SettlementType string

const (
	SettlementRefund SettlementType = "REFUND"
	SettlementCredit SettlementType = "CREDIT"
)

// LedgerDirection is the direction of a standalone cash movement.
type LedgerDirection string

const (
	DirectionIn  LedgerDirection = "in"
	DirectionOut LedgerDirection = "out"
)

// Document is the interface every transactional record implements.
type Document interface {
	Kind() DocKind
	DocID() string
	At() time.Time
}

// SaleItem is a single line on a sale invoice.
type SaleItem struct {
	ProductID      string  `json:"product_id,omitempty"`
	Quantity       float64 `json:"quantity"`
	ReturnQuantity float64 `json:"return_quantity,omitempty"`
	SellingPrice   float64 `json:"selling_price"`
	CostPrice      float64 `json:"cost_price"`
}

// Settlement describes how a return was settled.
type Settlement struct {
	Type           SettlementType `json:"type"`
	AmountRefunded float64        `json:"amount_refunded"`
}

// SaleRecord is a finalized sale invoice.
type SaleRecord struct {
	ID            string     `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	Items         []SaleItem `json:"items"`
	Subtotal      float64    `json:"subtotal"`
	Discount      float64    `json:"discount"`
	Tax           float64    `json:"tax"`
	Total         float64    `json:"total"`
	Profit        float64    `json:"profit"`
	AmountPaid    float64    `json:"amount_paid"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	CustomerID    string     `json:"customer_id,omitempty"`
}

func (s *SaleRecord) Kind() DocKind { return KindSale }
func (s *SaleRecord) DocID() string { return s.ID }
func (s *SaleRecord) At() time.Time { return s.CreatedAt }

// ReturnRecord is a customer return referencing an original sale.
// TotalReturnValue is expected to be at most the original sale's total, but
// that is not enforced upstream - consumers must clamp.
type ReturnRecord struct {
	ID                string     `json:"id"`
	ReturnedAt        time.Time  `json:"returned_at"`
	OriginalInvoiceID string     `json:"original_invoice_id"`
	TotalReturnValue  float64    `json:"total_return_value"`
	Settlement        Settlement `json:"settlement"`
	Items             []SaleItem `json:"items"`
	CustomerID        string     `json:"customer_id,omitempty"`
}

func (r *ReturnRecord) Kind() DocKind { return KindReturn }
func (r *ReturnRecord) DocID() string { return r.ID }
func (r *ReturnRecord) At() time.Time { return r.ReturnedAt }

// PurchaseRecord is a supplier-facing purchase invoice.
type PurchaseRecord struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	SupplierID string    `json:"supplier_id,omitempty"`
	GrandTotal float64   `json:"grand_total"`
	AmountPaid float64   `json:"amount_paid"`
}

func (p *PurchaseRecord) Kind() DocKind { return KindPurchase }
func (p *PurchaseRecord) DocID() string { return p.ID }
func (p *PurchaseRecord) At() time.Time { return p.CreatedAt }

// PurchaseReturnRecord is goods sent back to a supplier.
type PurchaseReturnRecord struct {
	ID                 string     `json:"id"`
	ReturnedAt         time.Time  `json:"returned_at"`
	OriginalPurchaseID string     `json:"original_purchase_id"`
	TotalReturnValue   float64    `json:"total_return_value"`
	Settlement         Settlement `json:"settlement"`
	SupplierID         string     `json:"supplier_id,omitempty"`
}

func (p *PurchaseReturnRecord) Kind() DocKind { return KindPurchaseReturn }
func (p *PurchaseReturnRecord) DocID() string { return p.ID }
func (p *PurchaseReturnRecord) At() time.Time { return p.ReturnedAt }

// LedgerTransaction is a standalone cash movement not tied to a sale or purchase.
type LedgerTransaction struct {
	ID         string          `json:"id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Direction  LedgerDirection `json:"direction"`
	Amount     float64         `json:"amount"`
	Note       string          `json:"note,omitempty"`
}

func (l *LedgerTransaction) Kind() DocKind { return KindLedger }
func (l *LedgerTransaction) DocID() string { return l.ID }
func (l *LedgerTransaction) At() time.Time { return l.OccurredAt }
