package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/eihwaz/internal/apperr"
)

const storeSchemaSQL = `
CREATE TABLE IF NOT EXISTS scan_cache (
	key          TEXT PRIMARY KEY,
	value        BLOB NOT NULL,
	created_at   INTEGER NOT NULL,
	expires_at   INTEGER NOT NULL,
	source_mtime INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scan_cache_expires ON scan_cache(expires_at);
`

// Store is the SQLite-backed persistent cache tier.
type Store struct {
	conn *sql.DB
}

// OpenStore opens (or creates) the cache database and applies the schema.
func OpenStore(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open store: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping store: %w", err)
	}
	if _, err := conn.Exec(storeSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Get returns the persisted entry for key, or apperr.ErrNotFound.
func (s *Store) Get(key string) (*Entry, error) {
	row := s.conn.QueryRow(
		`SELECT value, created_at, expires_at, source_mtime FROM scan_cache WHERE key = ?`, key)

	var value []byte
	var createdAt, expiresAt, sourceMtime int64
	if err := row.Scan(&value, &createdAt, &expiresAt, &sourceMtime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("cache: store get: %w", err)
	}

	return &Entry{
		Key:         key,
		Value:       value,
		CreatedAt:   time.Unix(0, createdAt),
		ExpiresAt:   time.Unix(0, expiresAt),
		SourceMtime: time.Unix(0, sourceMtime),
	}, nil
}

// Put upserts an entry.
func (s *Store) Put(e *Entry) error {
	_, err := s.conn.Exec(
		`INSERT INTO scan_cache (key, value, created_at, expires_at, source_mtime)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			source_mtime = excluded.source_mtime`,
		e.Key, e.Value, e.CreatedAt.UnixNano(), e.ExpiresAt.UnixNano(), e.SourceMtime.UnixNano())
	if err != nil {
		return fmt.Errorf("cache: store put: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.conn.Exec(`DELETE FROM scan_cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("cache: store delete: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	if _, err := s.conn.Exec(`DELETE FROM scan_cache`); err != nil {
		return fmt.Errorf("cache: store clear: %w", err)
	}
	return nil
}

// Prune deletes entries that expired before now and reports how many.
func (s *Store) Prune(now time.Time) (int, error) {
	r, err := s.conn.Exec(`DELETE FROM scan_cache WHERE expires_at < ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cache: store prune: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache: store prune count: %w", err)
	}
	return int(n), nil
}
