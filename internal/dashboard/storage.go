package dashboard

import (
	"database/sql"
	"errors"
	"time"
)

// Storage is the durable key/document layer under the store. A missing key
// reads as (nil, nil). Implementations must tolerate concurrent writers
// with last-write-wins semantics; the store treats persistence as
// best-effort either way.
type Storage interface {
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	Delete(key string) error
}

// dbExecutor is the subset of *sql.DB / *database.DB the storage needs.
type dbExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// SQLiteStorage persists documents in a single key/blob table.
type SQLiteStorage struct {
	db dbExecutor
}

// NewSQLiteStorage creates a document storage over db. The documents table
// must already exist (see the dashboard schema).
func NewSQLiteStorage(db dbExecutor) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// Read returns the document stored under key, or (nil, nil) when absent.
func (s *SQLiteStorage) Read(key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM documents WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write stores data under key, replacing any previous document.
func (s *SQLiteStorage) Write(key string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO documents (key, data, updated_at) VALUES (?, ?, ?)`,
		key, string(data), time.Now().UnixMilli(),
	)
	return err
}

// Delete removes the document under key. Deleting a missing key is not an
// error.
func (s *SQLiteStorage) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE key = ?`, key)
	return err
}
