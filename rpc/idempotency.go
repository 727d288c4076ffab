package rpc

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// IdempotencyStore persists responses for mutating requests keyed by the
// client-chosen X-Idempotency-Key header, so retried commands return the
// original outcome instead of executing twice.
type IdempotencyStore struct {
	db  *sql.DB
	ttl time.Duration
}

const idempotencyDefaultTTL = 24 * time.Hour

// OpenIdempotencyStore opens (and migrates) the sqlite-backed store at path.
func OpenIdempotencyStore(path string) (*IdempotencyStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("rpc: open idempotency store: %w", err)
	}
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS idempotency (
key TEXT PRIMARY KEY,
method TEXT NOT NULL,
response BLOB NOT NULL,
created_at INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rpc: migrate idempotency store: %w", err)
	}
	return &IdempotencyStore{db: db, ttl: idempotencyDefaultTTL}, nil
}

// Close releases the underlying database handle.
func (s *IdempotencyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// errIdempotencyMethodMismatch signals a key replayed against a different
// method, which is always a client bug.
var errIdempotencyMethodMismatch = errors.New("rpc: idempotency key reused for a different method")

// Lookup returns the stored response for the key, if any. Entries older than
// the TTL are treated as absent and lazily removed.
func (s *IdempotencyStore) Lookup(key, method string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, nil
	}
	var storedMethod string
	var response []byte
	var createdAt int64
	err := s.db.QueryRow(
		`SELECT method, response, created_at FROM idempotency WHERE key = ?`, key,
	).Scan(&storedMethod, &response, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if time.Since(time.Unix(createdAt, 0)) > s.ttl {
		_, _ = s.db.Exec(`DELETE FROM idempotency WHERE key = ?`, key)
		return nil, false, nil
	}
	if storedMethod != method {
		return nil, false, errIdempotencyMethodMismatch
	}
	return response, true, nil
}

// Store records the response for the key. A racing duplicate insert keeps the
// first writer's response.
func (s *IdempotencyStore) Store(key, method string, response []byte) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO idempotency (key, method, response, created_at) VALUES (?, ?, ?, ?)`,
		key, method, response, time.Now().Unix(),
	)
	return err
}
