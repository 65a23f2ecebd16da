// Package offload keeps heavy aggregation work off the request path: a
// background worker runs submitted jobs one at a time, and a short-TTL memo
// in cache.db lets repeated identical requests skip recomputation entirely.
package offload

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/retailpulse/pulse/internal/database"
	"github.com/retailpulse/pulse/internal/domain"
)

// Memo is a key-value store with expiration, holding msgpack-encoded
// aggregation results. It lives in cache.db under the cache profile, so
// losing it on crash costs nothing but a recomputation.
type Memo struct {
	db *sql.DB
}

// NewMemo creates the memo store and ensures its schema exists.
func NewMemo(db *database.DB) (*Memo, error) {
	m := &Memo{db: db.Conn()}
	if err := m.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate memo schema: %w", err)
	}
	return m, nil
}

func (m *Memo) migrate() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS memo (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	return err
}

// ResultKey derives the memo key for an aggregation request. Custom ranges
// carry their bounds in the key so different ranges never collide.
func ResultKey(tf domain.Timeframe, custom *domain.DateRange) string {
	if tf == domain.TimeframeCustom && custom != nil {
		return fmt.Sprintf("dashboard:%s:%d:%d", tf, custom.Start.Unix(), custom.End.Unix())
	}
	return fmt.Sprintf("dashboard:%s", tf)
}

// Set stores a value under key, expiring after ttl.
func (m *Memo) Set(key string, value interface{}, ttl time.Duration) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode memo value: %w", err)
	}

	_, err = m.db.Exec(`
		INSERT INTO memo (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, payload, time.Now().Add(ttl).Unix())
	return err
}

// Get loads the value for key into dest. Returns false when the key is
// absent or expired.
func (m *Memo) Get(key string, dest interface{}) (bool, error) {
	var payload []byte
	var expiresAt int64
	err := m.db.QueryRow("SELECT value, expires_at FROM memo WHERE key = ?", key).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if time.Now().Unix() >= expiresAt {
		return false, nil
	}

	if err := msgpack.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("failed to decode memo value: %w", err)
	}
	return true, nil
}

// Delete removes a memo entry.
func (m *Memo) Delete(key string) error {
	_, err := m.db.Exec("DELETE FROM memo WHERE key = ?", key)
	return err
}

// DeleteByPrefix removes all entries matching a key prefix. Used when the
// underlying snapshot changes and every memoized result goes stale at once.
func (m *Memo) DeleteByPrefix(prefix string) error {
	_, err := m.db.Exec("DELETE FROM memo WHERE key LIKE ?", prefix+"%")
	return err
}

// PurgeExpired drops entries past their expiration. The scheduler calls this
// periodically so the table doesn't accrete dead rows.
func (m *Memo) PurgeExpired() (int64, error) {
	res, err := m.db.Exec("DELETE FROM memo WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
