// Package fscache implements the cache port on top of a local SQLite file
// (modernc.org/sqlite, pure Go), used as the default CACHE_BACKEND=fs
// tier when no NATS deployment is available.
package fscache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Cache is a SQLite-backed cache.Cache implementation.
type Cache struct {
	db *sql.DB
}

// Open creates (or reuses) a SQLite database file at path and ensures the
// cache_entries table exists.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid lock contention

	const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER
)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache_entries schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the value for key if present and not expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt sql.NullInt64
	row := c.db.QueryRowContext(ctx, `SELECT value, expires_at FROM cache_entries WHERE key = ?`, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fscache get %q: %w", key, err)
	}
	if expiresAt.Valid && time.Now().UnixNano() > expiresAt.Int64 {
		_ = c.Delete(ctx, key)
		return nil, false, nil
	}
	return value, true, nil
}

// Set writes key/value, replacing any existing entry. ttl<=0 means no
// expiration.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt any
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	_, err := c.db.ExecContext(ctx, `
INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("fscache set %q: %w", key, err)
	}
	return nil
}

// Delete removes key, if present.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("fscache delete %q: %w", key, err)
	}
	return nil
}
