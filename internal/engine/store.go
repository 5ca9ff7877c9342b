package engine

import (
	"sync"
	"time"
)

// Store owns the canonical State and serializes every mutation through the
// reducer. It is safe for concurrent use; callers only ever see copies.
type Store struct {
	mu      sync.Mutex
	state   State
	ticking bool

	clock func() time.Time
	tick  time.Duration
	subs  []func(State)
}

// Option customizes a Store, mainly for tests.
type Option func(*Store)

// WithClock injects the time source used for history snapshots.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithTickInterval sets the emergency countdown cadence.
func WithTickInterval(d time.Duration) Option {
	return func(s *Store) { s.tick = d }
}

// NewStore wraps an initial state built by NewState.
func NewStore(initial State, opts ...Option) *Store {
	s := &Store{
		state: initial,
		clock: time.Now,
		tick:  time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers a listener invoked with a state copy after every
// successful dispatch. Listeners run on the dispatching goroutine and must
// not call back into the Store.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Dispatch runs one action through the reducer. On error the state is
// unchanged and no listener fires. A transition into the emergency status
// starts the countdown ticker.
func (s *Store) Dispatch(a Action) (State, Outcome, error) {
	s.mu.Lock()

	next, outcome, err := reduce(s.state.clone(), a, s.clock())
	if err != nil {
		s.mu.Unlock()
		return s.state.clone(), outcome, err
	}

	startTicker := next.Oversight == OversightEmergency && !s.ticking
	if startTicker {
		s.ticking = true
	}
	s.state = next
	out := next.clone()
	subs := s.subs
	s.mu.Unlock()

	for _, fn := range subs {
		fn(out.clone())
	}
	if startTicker {
		go s.runCountdown()
	}
	return out, outcome, nil
}

// runCountdown feeds EmergencyTick actions through the normal dispatch path
// until the state leaves the emergency status. Ticks after that are no-ops
// in the reducer, so a late tick is harmless.
func (s *Store) runCountdown() {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for range ticker.C {
		st, _, _ := s.Dispatch(EmergencyTick{})
		if st.Oversight != OversightEmergency {
			s.mu.Lock()
			s.ticking = false
			s.mu.Unlock()
			return
		}
	}
}
