package storage

import (
	"context"
	"fmt"
	"time"

	"commune/internal/core"
)

// AuditEvent is one committed state change as recorded by the worker.
type AuditEvent struct {
	OccurredAt time.Time
	Kind       string
	Resources  core.Resources
	Oversight  string
}

// InsertAuditEvent appends one event to the audit trail.
func (s *RecordStore) InsertAuditEvent(ctx context.Context, ev AuditEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (occurred_at, kind, cash, reserves, debt, oversight)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.OccurredAt.UTC(), ev.Kind,
		ev.Resources.Cash, ev.Resources.Reserves, ev.Resources.Debt,
		ev.Oversight)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// CountAuditEvents returns the number of recorded events.
func (s *RecordStore) CountAuditEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return n, nil
}
