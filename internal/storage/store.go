// Package storage persists the commune's record under a fixed key in sqlite
// and keeps the audit trail written by the worker.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"commune/internal/core"
)

// HistoryKey is the record key the snapshot log is stored under.
const HistoryKey = "commune_resource_record"

// RecordStore is a sqlite-backed key-value record store.
type RecordStore struct {
	db *sql.DB
}

// Open opens (and creates if needed) the sqlite database at path. Callers
// run RunMigrations first.
func Open(path string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &RecordStore{db: db}, nil
}

func (s *RecordStore) Close() error {
	return s.db.Close()
}

// LoadHistory reads the persisted snapshot log. A missing record returns an
// empty history and no error; a malformed one returns an empty history and
// ErrInvalidFormat so the caller can recover with defaults.
func (s *RecordStore) LoadHistory(ctx context.Context) (core.History, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM records WHERE key = ?`, HistoryKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history record: %w", err)
	}

	var history core.History
	if err := json.Unmarshal([]byte(value), &history); err != nil {
		return nil, fmt.Errorf("decode history record: %w", core.ErrInvalidFormat)
	}
	if err := core.ValidateHistory(history); err != nil {
		return nil, fmt.Errorf("validate history record: %w", err)
	}
	return history, nil
}

// SaveHistory writes the snapshot log, replacing any previous value.
func (s *RecordStore) SaveHistory(ctx context.Context, history core.History) error {
	value, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		HistoryKey, string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write history record: %w", err)
	}
	return nil
}

// Wipe deletes the persisted record. Part of the hard-reset path.
func (s *RecordStore) Wipe(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE key = ?`, HistoryKey); err != nil {
		return fmt.Errorf("wipe history record: %w", err)
	}
	return nil
}
