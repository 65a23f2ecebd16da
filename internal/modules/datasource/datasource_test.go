package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailpulse/pulse/internal/database"
	"github.com/retailpulse/pulse/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "documents.db"),
		Profile: database.ProfileStandard,
		Name:    "documents",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLiteStore(db, zerolog.Nop())
	require.NoError(t, err)
	return store
}

func putJSON(t *testing.T, store *SQLiteStore, collection, id string, at time.Time, doc interface{}) {
	t.Helper()
	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), StoredDocument{
		ID:         id,
		Collection: collection,
		At:         at,
		Payload:    payload,
	}))
}

func TestSQLiteStore_PutAndListRoundTrip(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	putJSON(t, store, CollectionSales, "s1", now.Add(-2*time.Hour), map[string]interface{}{
		"kind": "SALE", "id": "s1", "total": 100.0,
	})
	putJSON(t, store, CollectionSales, "s2", now, map[string]interface{}{
		"kind": "SALE", "id": "s2", "total": 200.0,
	})

	docs, err := store.ListDocuments(context.Background(), CollectionSales, ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// Most recent first.
	assert.Equal(t, "s2", docs[0].ID)
	assert.Equal(t, "s1", docs[1].ID)
	assert.Equal(t, CollectionSales, docs[0].Collection)
	assert.WithinDuration(t, now, docs[0].At, time.Second)
}

func TestSQLiteStore_PutUpsertsExisting(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	putJSON(t, store, CollectionSales, "s1", now, map[string]interface{}{"kind": "SALE", "total": 100.0})
	putJSON(t, store, CollectionSales, "s1", now, map[string]interface{}{"kind": "SALE", "total": 175.0})

	docs, err := store.ListDocuments(context.Background(), CollectionSales, ListOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, string(docs[0].Payload), "175")
}

func TestSQLiteStore_ListHonorsLimit(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		putJSON(t, store, CollectionTransactions, fmt.Sprintf("txn-%d", i),
			time.Now().Add(time.Duration(i)*time.Minute),
			map[string]interface{}{"id": fmt.Sprintf("txn-%d", i), "direction": "in", "amount": 1.0})
	}

	docs, err := store.ListDocuments(context.Background(), CollectionTransactions, ListOptions{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestSQLiteStore_RejectsUnknownCollection(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ListDocuments(context.Background(), "invoices", ListOptions{})
	assert.ErrorIs(t, err, ErrUnknownCollection)

	err = store.Put(context.Background(), StoredDocument{ID: "x", Collection: "invoices"})
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestAdapter_FetchSnapshotDecodesAllCollections(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	putJSON(t, store, CollectionSales, "s1", now, map[string]interface{}{
		"kind": "SALE", "id": "s1", "created_at": now.Format(time.RFC3339), "total": 100.0, "profit": 40.0,
	})
	putJSON(t, store, CollectionSales, "r1", now, map[string]interface{}{
		"kind": "RETURN", "id": "r1", "returned_at": now.Format(time.RFC3339),
		"original_invoice_id": "s1", "total_return_value": 20.0,
		"settlement": map[string]interface{}{"type": "REFUND", "amount_refunded": 20.0},
	})
	putJSON(t, store, CollectionPurchases, "p1", now, map[string]interface{}{
		"kind": "PURCHASE", "id": "p1", "created_at": now.Format(time.RFC3339), "grand_total": 500.0,
	})
	putJSON(t, store, CollectionPurchases, "pr1", now, map[string]interface{}{
		"kind": "PURCHASE_RETURN", "id": "pr1", "returned_at": now.Format(time.RFC3339),
		"original_purchase_id": "p1", "total_return_value": 50.0,
	})
	putJSON(t, store, CollectionTransactions, "t1", now, map[string]interface{}{
		"id": "t1", "occurred_at": now.Format(time.RFC3339), "direction": "out", "amount": 30.0,
	})
	putJSON(t, store, CollectionProducts, "prod1", now, domain.Product{ID: "prod1", Name: "Widget", Price: 10})
	putJSON(t, store, CollectionCustomers, "c1", now, domain.Customer{ID: "c1", Name: "Alice", Balance: 12})
	putJSON(t, store, CollectionSuppliers, "sup1", now, domain.Supplier{ID: "sup1", Name: "Acme", Balance: -5})

	adapter := NewAdapter(store, 100, zerolog.Nop())
	snap, err := adapter.FetchSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Sales, 2)
	require.Len(t, snap.Purchases, 2)
	require.Len(t, snap.Transactions, 1)
	assert.Len(t, snap.Products, 1)
	assert.Len(t, snap.Customers, 1)
	assert.Len(t, snap.Suppliers, 1)
	assert.Empty(t, snap.FailedCollections)

	kinds := map[domain.DocKind]bool{}
	for _, doc := range snap.Sales {
		kinds[doc.Kind()] = true
	}
	assert.True(t, kinds[domain.KindSale])
	assert.True(t, kinds[domain.KindReturn])

	assert.Equal(t, domain.DirectionOut, snap.Transactions[0].Direction)
}

func TestAdapter_MalformedDocumentIsSkipped(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	putJSON(t, store, CollectionSales, "good", now, map[string]interface{}{
		"kind": "SALE", "id": "good", "total": 100.0,
	})
	require.NoError(t, store.Put(context.Background(), StoredDocument{
		ID:         "bad",
		Collection: CollectionSales,
		At:         now,
		Payload:    []byte("{broken"),
	}))
	putJSON(t, store, CollectionSales, "weird-kind", now, map[string]interface{}{
		"kind": "COUPON", "id": "weird-kind",
	})

	adapter := NewAdapter(store, 100, zerolog.Nop())
	snap, err := adapter.FetchSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Sales, 1)
	assert.Equal(t, "good", snap.Sales[0].DocID())
}

type failingStore struct {
	fail map[string]bool
	base DocumentStore
}

func (f *failingStore) ListDocuments(ctx context.Context, collection string, opts ListOptions) ([]StoredDocument, error) {
	if f.fail[collection] {
		return nil, errors.New("disk on fire")
	}
	return f.base.ListDocuments(ctx, collection, opts)
}

func TestAdapter_PartialFailureDegradesToEmpty(t *testing.T) {
	store := newTestStore(t)
	putJSON(t, store, CollectionSales, "s1", time.Now(), map[string]interface{}{
		"kind": "SALE", "id": "s1", "total": 100.0,
	})

	adapter := NewAdapter(&failingStore{
		fail: map[string]bool{CollectionProducts: true},
		base: store,
	}, 100, zerolog.Nop())

	snap, err := adapter.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Sales, 1)
	assert.Empty(t, snap.Products)
	assert.Equal(t, []string{CollectionProducts}, snap.FailedCollections)
}

func TestAdapter_TotalFailureErrors(t *testing.T) {
	store := newTestStore(t)

	fail := map[string]bool{}
	for _, c := range Collections {
		fail[c] = true
	}

	adapter := NewAdapter(&failingStore{fail: fail, base: store}, 100, zerolog.Nop())
	_, err := adapter.FetchSnapshot(context.Background())
	assert.Error(t, err)
}
