package scheduler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"commune/internal/archive"
	"commune/internal/core"
	"commune/internal/engine"
	"commune/internal/log"
)

type fakeService struct {
	dispatched []engine.Action
	persists   int
	doc        archive.Document
}

func (f *fakeService) Dispatch(ctx context.Context, a engine.Action) (engine.State, engine.Outcome, error) {
	f.dispatched = append(f.dispatched, a)
	return engine.State{}, engine.Outcome{}, nil
}

func (f *fakeService) PersistNow(ctx context.Context) error {
	f.persists++
	return nil
}

func (f *fakeService) Export() archive.Document {
	return f.doc
}

func quietLogger() *log.Logger {
	return log.New(log.Config{
		Component: "test",
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
}

func TestNewRejectsBadSpec(t *testing.T) {
	svc := &fakeService{}
	if _, err := New(svc, "not a cron spec", "@daily", t.TempDir(), quietLogger()); err == nil {
		t.Error("expected error for bad persist spec")
	}
	if _, err := New(svc, "@every 5m", "nope", t.TempDir(), quietLogger()); err == nil {
		t.Error("expected error for bad backup spec")
	}
	if _, err := New(svc, "@every 5m", "@daily", t.TempDir(), quietLogger()); err != nil {
		t.Errorf("valid specs rejected: %v", err)
	}
}

func TestPersistJob(t *testing.T) {
	svc := &fakeService{}
	s, err := New(svc, "@every 5m", "@daily", t.TempDir(), quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	s.persistJob()

	if len(svc.dispatched) != 1 {
		t.Fatalf("dispatched %d actions, want 1", len(svc.dispatched))
	}
	if _, ok := svc.dispatched[0].(engine.RecordHistory); !ok {
		t.Errorf("dispatched %T, want RecordHistory", svc.dispatched[0])
	}
	if svc.persists != 1 {
		t.Errorf("persists = %d, want 1", svc.persists)
	}
}

func TestBackupJobWritesArtifact(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := core.History{}.Record(core.Resources{Cash: 123}, now)
	svc := &fakeService{
		doc: archive.Export(core.Resources{Cash: 123}, core.DefaultSettings(), history, now),
	}
	dir := filepath.Join(t.TempDir(), "backups")

	s, err := New(svc, "@every 5m", "@daily", dir, quietLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.clock = func() time.Time { return now }

	s.backupJob()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("backup dir has %d files, want 1", len(entries))
	}
	if got, want := entries[0].Name(), "commune-20260301-120000.json"; got != want {
		t.Errorf("backup name = %s, want %s", got, want)
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	var doc struct {
		Version   string         `json:"version"`
		Resources core.Resources `json:"resources"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode backup: %v", err)
	}
	if doc.Version != "1.0" || doc.Resources.Cash != 123 {
		t.Errorf("backup content = %+v", doc)
	}
}
