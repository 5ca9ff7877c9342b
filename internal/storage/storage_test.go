package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"commune/internal/core"
)

func openTestStore(t *testing.T) *RecordStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commune.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHistoryRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := core.History{}.
		Record(core.Resources{}, now).
		Record(core.Resources{Cash: 500, Reserves: 100}, now.Add(time.Minute))

	if err := store.SaveHistory(ctx, history); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.LoadHistory(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d snapshots, want 2", len(got))
	}
	if got[1].Data != (core.Resources{Cash: 500, Reserves: 100}) {
		t.Errorf("latest = %+v", got[1].Data)
	}
	if !got[1].RecordedAt.Equal(now.Add(time.Minute)) {
		t.Errorf("recordedAt = %v, want %v", got[1].RecordedAt, now.Add(time.Minute))
	}
}

func TestLoadHistoryMissingRecord(t *testing.T) {
	store := openTestStore(t)
	got, err := store.LoadHistory(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Errorf("history = %v, want nil for missing record", got)
	}
}

func TestLoadHistoryCorruptRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)`,
		HistoryKey, "{not json", time.Now().UTC())
	if err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}

	got, err := store.LoadHistory(ctx)
	if !errors.Is(err, core.ErrInvalidFormat) {
		t.Fatalf("err = %v, want ErrInvalidFormat", err)
	}
	if got != nil {
		t.Errorf("corrupt record must yield empty history, got %v", got)
	}
}

func TestSaveHistoryReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := core.History{}.Record(core.Resources{Cash: 1}, now)
	second := first.Record(core.Resources{Cash: 2}, now.Add(time.Second))

	if err := store.SaveHistory(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.SaveHistory(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	got, err := store.LoadHistory(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[1].Data.Cash != 2 {
		t.Errorf("history = %+v, want the replaced value", got)
	}

	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("records rows = %d, want 1", count)
	}
}

func TestWipe(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	history := core.History{}.Record(core.Resources{Cash: 7}, time.Now().UTC())
	if err := store.SaveHistory(ctx, history); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Wipe(ctx); err != nil {
		t.Fatalf("wipe: %v", err)
	}
	// Idempotent.
	if err := store.Wipe(ctx); err != nil {
		t.Fatalf("second wipe: %v", err)
	}

	got, err := store.LoadHistory(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Errorf("history after wipe = %v, want nil", got)
	}
}

func TestAuditEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ev := AuditEvent{
		OccurredAt: time.Now().UTC(),
		Kind:       "transaction",
		Resources:  core.Resources{Cash: 300, Reserves: 200, Debt: 100},
		Oversight:  "idle",
	}
	if err := store.InsertAuditEvent(ctx, ev); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.InsertAuditEvent(ctx, ev); err != nil {
		t.Fatalf("insert second: %v", err)
	}

	n, err := store.CountAuditEvents(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	var cash int64
	var oversight string
	err = store.db.QueryRowContext(ctx,
		`SELECT cash, oversight FROM audit_events ORDER BY id LIMIT 1`).Scan(&cash, &oversight)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("read back: %v", err)
	}
	if cash != 300 || oversight != "idle" {
		t.Errorf("row = %d/%s, want 300/idle", cash, oversight)
	}
}
