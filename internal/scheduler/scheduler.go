// Package scheduler runs the periodic persistence safety net and the daily
// backup export on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"commune/internal/archive"
	"commune/internal/engine"
	"commune/internal/log"
)

// Service is the slice of the game service the scheduler drives.
type Service interface {
	Dispatch(ctx context.Context, a engine.Action) (engine.State, engine.Outcome, error)
	PersistNow(ctx context.Context) error
	Export() archive.Document
}

// Scheduler owns the cron runner and its two jobs.
type Scheduler struct {
	cron      *cron.Cron
	svc       Service
	backupDir string
	logger    *log.Logger
	clock     func() time.Time
}

// New registers the persist and backup jobs. Invalid cron specs are
// reported up front, not at first fire.
func New(svc Service, persistSpec, backupSpec, backupDir string, logger *log.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		svc:       svc,
		backupDir: backupDir,
		logger:    logger.WithComponent("scheduler"),
		clock:     time.Now,
	}

	if _, err := s.cron.AddFunc(persistSpec, s.persistJob); err != nil {
		return nil, fmt.Errorf("persist schedule %q: %w", persistSpec, err)
	}
	if _, err := s.cron.AddFunc(backupSpec, s.backupJob); err != nil {
		return nil, fmt.Errorf("backup schedule %q: %w", backupSpec, err)
	}
	return s, nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// persistJob records a snapshot if the ledger changed since the last one
// and flushes history to storage. Dedup in the core makes the recording
// side a no-op on quiet periods.
func (s *Scheduler) persistJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, _, err := s.svc.Dispatch(ctx, engine.RecordHistory{}); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled history record failed", "error", err)
		return
	}
	if err := s.svc.PersistNow(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled persist failed", "error", err)
		return
	}
	s.logger.DebugContext(ctx, "Scheduled persist completed")
}

// backupJob writes the export artifact next to the database.
func (s *Scheduler) backupJob() {
	if err := s.writeBackup(); err != nil {
		s.logger.Error("Scheduled backup failed", "error", err)
	}
}

func (s *Scheduler) writeBackup() error {
	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	doc := s.svc.Export()
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}

	name := fmt.Sprintf("commune-%s.json", s.clock().UTC().Format("20060102-150405"))
	path := filepath.Join(s.backupDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	s.logger.Info("Backup written", "path", path, "snapshots", len(doc.History))
	return nil
}
