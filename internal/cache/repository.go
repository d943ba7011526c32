// Package cache provides the dual-tier response cache for provider data.
// The in-memory tier is the fast path; entries are mirrored to a SQLite
// durable tier so a restart does not throw away fresh data. Caching is
// best-effort: durable-tier failures never propagate to callers.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository is the durable cache tier. All data is stored as JSON blobs
// with expiration timestamps.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new cache repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Store saves data with expiration = now + ttl.
// Uses INSERT OR REPLACE to upsert data.
func (r *Repository) Store(key string, data interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(ttl).UnixMilli()

	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO quote_cache (key, data, created_at, expires_at) VALUES (?, ?, ?, ?)",
		key, string(jsonData), now.UnixMilli(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}

	return nil
}

// GetIfFresh returns the entry, with its original lifetime bounds, only if
// expires_at >= now. Returns nil, nil if the key doesn't exist or the data
// is expired. Expired rows are deleted on read (lazy eviction).
func (r *Repository) GetIfFresh(key string) (*Entry, error) {
	now := time.Now().UnixMilli()

	var data string
	var createdAt, expiresAt int64
	err := r.db.QueryRow(
		"SELECT data, created_at, expires_at FROM quote_cache WHERE key = ?", key,
	).Scan(&data, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry %s: %w", key, err)
	}

	if now > expiresAt {
		// Lazy eviction
		_, _ = r.db.Exec("DELETE FROM quote_cache WHERE key = ?", key)
		return nil, nil
	}

	return &Entry{
		Data:      json.RawMessage(data),
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM quote_cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

// DeleteExpired removes all rows where expires_at < now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired() (int64, error) {
	now := time.Now().UnixMilli()

	result, err := r.db.Exec("DELETE FROM quote_cache WHERE expires_at < ?", now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// Clear removes every entry.
func (r *Repository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM quote_cache"); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Count returns the number of stored entries (fresh and stale).
func (r *Repository) Count() (int64, error) {
	var n int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM quote_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
