// Package datasource fetches bounded snapshots of the six document collections.
package datasource

import (
	"context"
	"errors"
	"time"
)

// Collection names understood by the document store.
const (
	CollectionSales        = "sales"
	CollectionProducts     = "products"
	CollectionCustomers    = "customers"
	CollectionSuppliers    = "suppliers"
	CollectionPurchases    = "purchases"
	CollectionTransactions = "transactions"
)

// Collections lists all collections in snapshot order.
var Collections = []string{
	CollectionSales,
	CollectionProducts,
	CollectionCustomers,
	CollectionSuppliers,
	CollectionPurchases,
	CollectionTransactions,
}

// ErrUnknownCollection is returned for collection names the store does not know.
var ErrUnknownCollection = errors.New("unknown collection")

// StoredDocument is a raw document as held by the store. Payload is the JSON
// body; decoding into typed records happens in the adapter so one malformed
// document degrades to a skip instead of failing the fetch.
type StoredDocument struct {
	ID         string
	Collection string
	At         time.Time
	Payload    []byte
}

// ListOptions bounds a collection fetch. Order is most-recent-first.
type ListOptions struct {
	Limit int
}

// DocumentStore is the document-store client consumed by the adapter.
// Implementations return documents most-recent-first, bounded by opts.Limit.
type DocumentStore interface {
	ListDocuments(ctx context.Context, collection string, opts ListOptions) ([]StoredDocument, error)
}

// DocumentWriter accepts documents from upstream writers, such as the event
// ingest endpoints.
type DocumentWriter interface {
	Put(ctx context.Context, doc StoredDocument) error
}
