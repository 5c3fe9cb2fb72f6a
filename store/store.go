// Package store is the SQLite persistence layer: cached section content,
// part tables of contents, the append-only changelog, annotations, and the
// fetch log.
//
// The store is a key-value-with-upsert cache over regulatory content, not a
// system of record — every cached row can be rebuilt from the upstream
// provider except annotations and the changelog.
package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps an open database for all persistence operations.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}
