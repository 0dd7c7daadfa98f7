// Package store is the data access layer for survey state: roster items
// and their statuses, the values extracted for them, run metadata, and the
// diagnostic event log. One database file is one survey; reopening it
// resumes where the previous run stopped.
package store

import (
	"context"
	"database/sql"
	"time"
)

// Store wraps the survey database.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// SetMeta stores a run-scoped key/value pair, replacing any prior value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO run_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

// GetMeta returns the value for key, or "" when the key was never set.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM run_meta WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}
