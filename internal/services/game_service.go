// Package services wires the state machine to persistence and the commit
// event stream. The rule throughout: commit in memory first, persist and
// publish asynchronously, never roll back a committed state.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commune/internal/amqp"
	"commune/internal/archive"
	"commune/internal/core"
	"commune/internal/engine"
	"commune/internal/log"
)

// HistoryStore is the persistence surface the service needs.
type HistoryStore interface {
	LoadHistory(ctx context.Context) (core.History, error)
	SaveHistory(ctx context.Context, history core.History) error
	Wipe(ctx context.Context) error
}

// Publisher pushes commit events to the audit stream.
type Publisher interface {
	PublishStateCommitted(ctx context.Context, msg amqp.StateCommitted) error
}

// GameService orchestrates dispatch, persistence, and publishing.
type GameService struct {
	store          *engine.Store
	records        HistoryStore
	publisher      Publisher // nil when no broker is configured
	logger         *log.Logger
	clock          func() time.Time
	persistTimeout time.Duration

	// persistCh holds at most the latest history awaiting a write;
	// intermediate versions are superseded, not queued.
	persistCh chan core.History
}

// Option customizes a GameService.
type Option func(*GameService)

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *GameService) { s.clock = clock }
}

// WithPersistTimeout bounds each storage write.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *GameService) { s.persistTimeout = d }
}

// New builds the service and subscribes it to the store. The publisher may
// be nil; commits then stay local.
func New(store *engine.Store, records HistoryStore, publisher Publisher, logger *log.Logger, opts ...Option) *GameService {
	s := &GameService{
		store:          store,
		records:        records,
		publisher:      publisher,
		logger:         logger.WithComponent("game_service"),
		clock:          time.Now,
		persistTimeout: 5 * time.Second,
		persistCh:      make(chan core.History, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Every committed state, including ticker-driven transitions, lands
	// here. The channel keeps only the newest history.
	store.Subscribe(func(st engine.State) {
		s.enqueuePersist(st.History)
	})
	return s
}

func (s *GameService) enqueuePersist(h core.History) {
	for {
		select {
		case s.persistCh <- h:
			return
		default:
			select {
			case <-s.persistCh:
			default:
			}
		}
	}
}

// Run drains the persist queue until ctx is done. Write failures are logged
// and retried on the next commit; they never surface to the dispatcher.
func (s *GameService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case h := <-s.persistCh:
			wctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
			if err := s.records.SaveHistory(wctx, h); err != nil {
				s.logger.ErrorContext(ctx, "Failed to persist history", "error", err, "snapshots", len(h))
			}
			cancel()
		}
	}
}

// Bootstrap recovers persisted history and loads it into the store. A
// missing record starts fresh with a zeroed snapshot written immediately. A
// malformed record recovers the same way and the format error is returned
// for the caller to log; the service stays usable.
func (s *GameService) Bootstrap(ctx context.Context) error {
	history, err := s.records.LoadHistory(ctx)
	var formatErr error
	if err != nil {
		if !errors.Is(err, core.ErrInvalidFormat) {
			return fmt.Errorf("load history: %w", err)
		}
		s.logger.WarnContext(ctx, "Stored record is malformed, starting from a clean slate", "error", err)
		formatErr = err
		history = nil
	}
	if len(history) == 0 {
		history = engine.InitialHistory(s.clock())
	}

	var resources core.Resources
	if latest := history.Latest(); latest != nil {
		resources = latest.Data
	}
	if _, _, err := s.store.Dispatch(engine.LoadState{Resources: resources, History: history}); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if err := s.PersistNow(ctx); err != nil {
		return fmt.Errorf("persist initial history: %w", err)
	}
	return formatErr
}

// Dispatch runs an action through the store and announces the commit. The
// publish is best effort on a detached goroutine; a broker outage never
// fails or delays the dispatch.
func (s *GameService) Dispatch(ctx context.Context, a engine.Action) (engine.State, engine.Outcome, error) {
	st, outcome, err := s.store.Dispatch(a)
	if err != nil {
		return st, outcome, err
	}

	if s.publisher != nil {
		msg := amqp.NewStateCommitted(actionKind(a), st.Resources, string(st.Oversight), s.clock())
		go func() {
			pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.publisher.PublishStateCommitted(pctx, msg); err != nil {
				s.logger.Error("Failed to publish commit event", "error", err, "kind", msg.Kind)
			}
		}()
	}
	return st, outcome, nil
}

// State returns a copy of the current state.
func (s *GameService) State() engine.State {
	return s.store.State()
}

// Export builds the portable artifact from the live state.
func (s *GameService) Export() archive.Document {
	st := s.store.State()
	return archive.Export(st.Resources, st.Settings, st.History, s.clock())
}

// Import replaces the state from an artifact and persists synchronously.
// Validation failures leave everything untouched.
func (s *GameService) Import(ctx context.Context, data []byte) error {
	doc, err := archive.Parse(data)
	if err != nil {
		return err
	}
	if _, _, err := s.Dispatch(ctx, engine.LoadState{
		Resources: doc.Resources,
		History:   doc.History,
		Settings:  doc.Settings,
	}); err != nil {
		return fmt.Errorf("apply import: %w", err)
	}
	if err := s.PersistNow(ctx); err != nil {
		return fmt.Errorf("persist import: %w", err)
	}
	s.logger.InfoContext(ctx, "State imported", "snapshots", len(doc.History))
	return nil
}

// Reset wipes the persisted record and returns to the zeroed initial state.
// Safe to call repeatedly.
func (s *GameService) Reset(ctx context.Context) error {
	if _, _, err := s.Dispatch(ctx, engine.ResetAll{}); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	if err := s.records.Wipe(ctx); err != nil {
		return fmt.Errorf("wipe record: %w", err)
	}
	if err := s.PersistNow(ctx); err != nil {
		return fmt.Errorf("persist reset: %w", err)
	}
	s.logger.InfoContext(ctx, "State reset to initial")
	return nil
}

// PersistNow writes the current history synchronously, bypassing the async
// queue. Used for import, reset, and the scheduled safety net.
func (s *GameService) PersistNow(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	return s.records.SaveHistory(wctx, s.store.State().History)
}

func actionKind(a engine.Action) string {
	switch a.(type) {
	case engine.SubmitTransaction:
		return "transaction"
	case engine.IssueDecree:
		return "decree"
	case engine.ResolveInterception, engine.AnswerReview, engine.ResumeOperations:
		return "oversight"
	case engine.SelectBuilding, engine.UpgradeBuilding:
		return "building"
	case engine.UpdateSettings:
		return "settings"
	case engine.ApplyDelta, engine.SetResources:
		return "resources"
	case engine.LoadState:
		return "load"
	case engine.ResetAll:
		return "reset"
	default:
		return "state"
	}
}
