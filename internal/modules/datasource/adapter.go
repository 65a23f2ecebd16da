package datasource

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/retailpulse/pulse/internal/domain"
)

// Adapter turns raw store documents into a typed domain.Snapshot.
// Fetching is pure I/O: no shared state is mutated here.
type Adapter struct {
	store DocumentStore
	limit int
	log   zerolog.Logger
}

// NewAdapter creates a snapshot adapter. limit bounds every collection fetch.
func NewAdapter(store DocumentStore, limit int, log zerolog.Logger) *Adapter {
	return &Adapter{
		store: store,
		limit: limit,
		log:   log.With().Str("service", "datasource").Logger(),
	}
}

// FetchSnapshot fetches all six collections. A failed collection degrades to
// an empty slice and is recorded in FailedCollections; only when every
// collection fails is an error returned.
func (a *Adapter) FetchSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{}

	failures := 0
	for _, collection := range Collections {
		docs, err := a.store.ListDocuments(ctx, collection, ListOptions{Limit: a.limit})
		if err != nil {
			a.log.Warn().Err(err).Str("collection", collection).Msg("Collection fetch failed, degrading to empty")
			snap.FailedCollections = append(snap.FailedCollections, collection)
			failures++
			continue
		}
		a.decodeInto(snap, collection, docs)
	}

	if failures == len(Collections) {
		return nil, fmt.Errorf("all %d collections failed to fetch", failures)
	}

	return snap, nil
}

// decodeInto decodes raw documents into the snapshot's typed slices. A
// malformed document is skipped, never aborts the collection.
func (a *Adapter) decodeInto(snap *domain.Snapshot, collection string, docs []StoredDocument) {
	for _, doc := range docs {
		if err := a.decodeOne(snap, collection, doc); err != nil {
			a.log.Debug().
				Err(err).
				Str("collection", collection).
				Str("id", doc.ID).
				Msg("Skipping malformed document")
		}
	}
}

func (a *Adapter) decodeOne(snap *domain.Snapshot, collection string, doc StoredDocument) error {
	switch collection {
	case CollectionSales:
		rec, err := decodeSaleDocument(doc.Payload)
		if err != nil {
			return err
		}
		snap.Sales = append(snap.Sales, rec)

	case CollectionPurchases:
		rec, err := decodePurchaseDocument(doc.Payload)
		if err != nil {
			return err
		}
		snap.Purchases = append(snap.Purchases, rec)

	case CollectionTransactions:
		var tx domain.LedgerTransaction
		if err := json.Unmarshal(doc.Payload, &tx); err != nil {
			return err
		}
		snap.Transactions = append(snap.Transactions, &tx)

	case CollectionProducts:
		var p domain.Product
		if err := json.Unmarshal(doc.Payload, &p); err != nil {
			return err
		}
		snap.Products = append(snap.Products, p)

	case CollectionCustomers:
		var c domain.Customer
		if err := json.Unmarshal(doc.Payload, &c); err != nil {
			return err
		}
		snap.Customers = append(snap.Customers, c)

	case CollectionSuppliers:
		var s domain.Supplier
		if err := json.Unmarshal(doc.Payload, &s); err != nil {
			return err
		}
		snap.Suppliers = append(snap.Suppliers, s)
	}

	return nil
}

// kindEnvelope peeks at the discriminator tag before full decoding.
type kindEnvelope struct {
	Kind domain.DocKind `json:"kind"`
}

func decodeSaleDocument(payload []byte) (domain.Document, error) {
	var env kindEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}

	switch env.Kind {
	case domain.KindSale:
		var rec domain.SaleRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	case domain.KindReturn:
		var rec domain.ReturnRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	default:
		return nil, fmt.Errorf("unexpected sale document kind %q", env.Kind)
	}
}

func decodePurchaseDocument(payload []byte) (domain.Document, error) {
	var env kindEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}

	switch env.Kind {
	case domain.KindPurchase:
		var rec domain.PurchaseRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	case domain.KindPurchaseReturn:
		var rec domain.PurchaseReturnRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	default:
		return nil, fmt.Errorf("unexpected purchase document kind %q", env.Kind)
	}
}
