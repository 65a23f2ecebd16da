package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailpulse/pulse/internal/database"
)

// SQLiteStore is the default DocumentStore implementation. Upstream CRUD
// services write documents into the documents table; this core only reads.
type SQLiteStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSQLiteStore creates a document store backed by the documents database.
func NewSQLiteStore(db *database.DB, log zerolog.Logger) (*SQLiteStore, error) {
	s := &SQLiteStore{
		db:  db,
		log: log.With().Str("repository", "documents").Logger(),
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			at INTEGER NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS idx_documents_collection_at
			ON documents (collection, at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return nil
}

// ListDocuments returns up to opts.Limit documents of a collection,
// most-recent-first.
func (s *SQLiteStore) ListDocuments(ctx context.Context, collection string, opts ListOptions) ([]StoredDocument, error) {
	if !knownCollection(collection) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, payload FROM documents
		WHERE collection = ?
		ORDER BY at DESC
		LIMIT ?
	`, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []StoredDocument
	for rows.Next() {
		var (
			doc     StoredDocument
			at      int64
			payload string
		)
		if err := rows.Scan(&doc.ID, &at, &payload); err != nil {
			s.log.Warn().Err(err).Str("collection", collection).Msg("Failed to scan document row")
			continue
		}
		doc.Collection = collection
		doc.At = time.UnixMilli(at)
		doc.Payload = []byte(payload)
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}

	return docs, nil
}

// Put inserts or replaces a document. Exposed for upstream writers and tests.
func (s *SQLiteStore) Put(ctx context.Context, doc StoredDocument) error {
	if !knownCollection(doc.Collection) {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, doc.Collection)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			at = excluded.at,
			payload = excluded.payload
	`, doc.Collection, doc.ID, doc.At.UnixMilli(), string(doc.Payload))
	if err != nil {
		return fmt.Errorf("failed to put document %s/%s: %w", doc.Collection, doc.ID, err)
	}
	return nil
}

func knownCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}
