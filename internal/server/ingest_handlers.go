package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/retailpulse/pulse/internal/domain"
	"github.com/retailpulse/pulse/internal/events"
	"github.com/retailpulse/pulse/internal/modules/datasource"
)

// IngestHandlers accepts business events from the POS side: a completed sale
// or return, or a posted ledger transaction. The document is persisted into
// the documents store and the matching event goes onto the bus, where the
// bridge decides whether a refresh is warranted.
type IngestHandlers struct {
	store datasource.DocumentWriter
	bus   *events.Bus
	log   zerolog.Logger
}

// NewIngestHandlers creates ingest handlers.
func NewIngestHandlers(store datasource.DocumentWriter, bus *events.Bus, log zerolog.Logger) *IngestHandlers {
	return &IngestHandlers{
		store: store,
		bus:   bus,
		log:   log.With().Str("component", "ingest_handlers").Logger(),
	}
}

// Stored sale-collection payloads carry the kind discriminator alongside the
// record fields; embedding keeps both flat in one JSON object.
type saleEnvelope struct {
	Kind domain.DocKind `json:"kind"`
	domain.SaleRecord
}

type returnEnvelope struct {
	Kind domain.DocKind `json:"kind"`
	domain.ReturnRecord
}

// HandleSaleCompleted ingests a finalized sale or customer return.
// POST /api/events/sale-completed
func (h *IngestHandlers) HandleSaleCompleted(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var peek struct {
		Kind domain.DocKind `json:"kind"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		writeError(w, http.StatusBadRequest, "invalid sale document")
		return
	}
	if peek.Kind == "" {
		peek.Kind = domain.KindSale
	}

	var (
		id      string
		at      time.Time
		total   float64
		payload []byte
	)

	switch peek.Kind {
	case domain.KindSale:
		var doc saleEnvelope
		if err := json.Unmarshal(body, &doc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid sale document")
			return
		}
		doc.Kind = domain.KindSale
		if doc.ID == "" {
			doc.ID = uuid.New().String()
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now()
		}
		id, at, total = doc.ID, doc.CreatedAt, doc.Total
		payload, err = json.Marshal(doc)

	case domain.KindReturn:
		var doc returnEnvelope
		if err := json.Unmarshal(body, &doc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid return document")
			return
		}
		doc.Kind = domain.KindReturn
		if doc.ID == "" {
			doc.ID = uuid.New().String()
		}
		if doc.ReturnedAt.IsZero() {
			doc.ReturnedAt = time.Now()
		}
		id, at, total = doc.ID, doc.ReturnedAt, doc.TotalReturnValue
		payload, err = json.Marshal(doc)

	default:
		writeError(w, http.StatusBadRequest, "kind must be SALE or RETURN")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sale document")
		return
	}

	if err := h.store.Put(r.Context(), datasource.StoredDocument{
		ID:         id,
		Collection: datasource.CollectionSales,
		At:         at,
		Payload:    payload,
	}); err != nil {
		h.log.Error().Err(err).Str("sale_id", id).Msg("Failed to store sale document")
		writeError(w, http.StatusInternalServerError, "failed to store sale")
		return
	}

	h.bus.Publish(events.SaleFinalized, "ingest", &events.SaleFinalizedData{
		SaleID: id,
		Total:  total,
	})

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"sale_id": id,
	})
}

// HandleTransactionPosted ingests a ledger transaction.
// POST /api/events/transaction-posted
func (h *IngestHandlers) HandleTransactionPosted(w http.ResponseWriter, r *http.Request) {
	var tx domain.LedgerTransaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction document")
		return
	}

	if tx.Direction != domain.DirectionIn && tx.Direction != domain.DirectionOut {
		writeError(w, http.StatusBadRequest, "direction must be in or out")
		return
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(tx)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction document")
		return
	}

	if err := h.store.Put(r.Context(), datasource.StoredDocument{
		ID:         tx.ID,
		Collection: datasource.CollectionTransactions,
		At:         tx.OccurredAt,
		Payload:    payload,
	}); err != nil {
		h.log.Error().Err(err).Str("transaction_id", tx.ID).Msg("Failed to store transaction")
		writeError(w, http.StatusInternalServerError, "failed to store transaction")
		return
	}

	h.bus.Publish(events.TransactionPosted, "ingest", &events.TransactionPostedData{
		TransactionID: tx.ID,
		Direction:     string(tx.Direction),
	})

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":         "accepted",
		"transaction_id": tx.ID,
	})
}
