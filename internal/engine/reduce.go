package engine

import (
	"fmt"
	"time"

	"commune/internal/catalog"
	"commune/internal/core"
)

// Outcome reports what a dispatched intent did beyond producing new state.
type Outcome struct {
	// Stamp is the label for a committed transaction, empty otherwise.
	Stamp core.Stamp `json:"stamp,omitempty"`
	// Intercepted is true when a transaction was paused for oversight
	// review instead of committing.
	Intercepted bool `json:"intercepted,omitempty"`
}

// reduce applies one action to a private copy of the state. It is pure:
// the clock is injected and every side effect is expressed in the returned
// state. Rejections return the input state unchanged alongside the error.
func reduce(s State, a Action, now time.Time) (State, Outcome, error) {
	switch act := a.(type) {
	case SelectBuilding:
		return reduceSelect(s, act)
	case UpgradeBuilding:
		return reduceUpgrade(s, act)
	case ApplyDelta:
		next, err := s.Resources.Apply(act.Field, act.Amount)
		if err != nil {
			return s, Outcome{}, err
		}
		return commitLedger(s, next, now), Outcome{}, nil
	case SetResources:
		return commitLedger(s, s.Resources.Merge(act.Patch), now), Outcome{}, nil
	case UpdateSettings:
		s.Settings = s.Settings.Merge(act.Patch)
		return s, Outcome{}, nil
	case SubmitTransaction:
		return reduceSubmit(s, act.Plan, now)
	case IssueDecree:
		return reduceDecree(s, act.Plan, now)
	case ResolveInterception:
		return reduceInterception(s, act.Choice, now)
	case AnswerReview:
		return reduceReview(s, act.Choice, now)
	case EmergencyTick:
		return reduceTick(s), Outcome{}, nil
	case ResumeOperations:
		if s.Oversight != OversightPostEmergency {
			return s, Outcome{}, fmt.Errorf("resume in %s: %w", s.Oversight, ErrBadChoice)
		}
		s.Oversight = OversightIdle
		syncOversightBuilding(&s)
		return s, Outcome{}, nil
	case SetPending:
		s.Pending = act.Tx
		return s, Outcome{}, nil
	case SetReserveUnlock:
		s.ReservesUnlocked = act.Unlocked
		return s, Outcome{}, nil
	case RecordHistory:
		s.History = s.History.Record(s.Resources, now)
		return s, Outcome{}, nil
	case LoadState:
		return reduceLoad(s, act)
	case ResetAll:
		return reduceReset(s, now), Outcome{}, nil
	default:
		return s, Outcome{}, fmt.Errorf("unknown action %T", a)
	}
}

func reduceSelect(s State, act SelectBuilding) (State, Outcome, error) {
	if act.ID == "" {
		s.SelectedBuilding = ""
		s.Proposal = nil
		return s, Outcome{}, nil
	}
	for _, b := range s.Buildings {
		if b.ID != act.ID {
			continue
		}
		if !catalog.Interactable(b, s.HasResources(), s.OversightIdleNow()) {
			return s, Outcome{}, fmt.Errorf("select %s: %w", act.ID, ErrBuildingUnavailable)
		}
		s.SelectedBuilding = act.ID
		s.Proposal = nil
		return s, Outcome{}, nil
	}
	return s, Outcome{}, fmt.Errorf("select %s: %w", act.ID, ErrBuildingUnavailable)
}

func reduceUpgrade(s State, act UpgradeBuilding) (State, Outcome, error) {
	for i, b := range s.Buildings {
		if b.ID == act.ID {
			s.Buildings[i].Level++
			s.Buildings[i].Status = catalog.StatusActive
			return s, Outcome{}, nil
		}
	}
	return s, Outcome{}, fmt.Errorf("upgrade %s: %w", act.ID, ErrBuildingUnavailable)
}

// reduceSubmit handles the Gosplan transaction path. Affordability is
// checked before interception is even considered: interception gates
// reserve access, not solvency.
func reduceSubmit(s State, plan core.TransactionPlan, now time.Time) (State, Outcome, error) {
	if s.Oversight != OversightIdle {
		return s, Outcome{}, fmt.Errorf("submit during %s: %w", s.Oversight, ErrOversightEngaged)
	}
	if err := plan.Affordable(s.Resources); err != nil {
		return s, Outcome{Stamp: core.StampDenied}, err
	}
	if plan.TouchesReserves() {
		if !s.ReservesUnlocked {
			s.Proposal = &plan
			return s, Outcome{Intercepted: true}, nil
		}
		// The unlock is single-use, consumed by this commit.
		s.ReservesUnlocked = false
	}
	s = commitLedger(s, plan.Commit(s.Resources), now)
	s.Proposal = nil
	return s, Outcome{Stamp: plan.Stamp}, nil
}

// reduceDecree commits on the Kremlin's authority. Decrees never pass
// through the interception path, whatever they touch.
func reduceDecree(s State, plan core.TransactionPlan, now time.Time) (State, Outcome, error) {
	if s.Oversight != OversightIdle {
		return s, Outcome{}, fmt.Errorf("decree during %s: %w", s.Oversight, ErrOversightEngaged)
	}
	if err := plan.Affordable(s.Resources); err != nil {
		return s, Outcome{Stamp: core.StampDenied}, err
	}
	s = commitLedger(s, plan.Commit(s.Resources), now)
	return s, Outcome{Stamp: plan.Stamp}, nil
}

func reduceInterception(s State, choice InterceptionChoice, now time.Time) (State, Outcome, error) {
	if s.Proposal == nil {
		return s, Outcome{}, ErrNoProposal
	}
	plan := *s.Proposal

	switch choice {
	case ChoiceAllClear:
		if !s.ReservesUnlocked {
			return s, Outcome{}, fmt.Errorf("all clear: %w", ErrReservesLocked)
		}
		if err := plan.Affordable(s.Resources); err != nil {
			s.Proposal = nil
			return s, Outcome{Stamp: core.StampDenied}, err
		}
		s.ReservesUnlocked = false
		s.Proposal = nil
		s = commitLedger(s, plan.Commit(s.Resources), now)
		return s, Outcome{Stamp: plan.Stamp}, nil

	case ChoiceNeedTime:
		pending := plan.Pending()
		s.Pending = &pending
		s.Proposal = nil
		s.SelectedBuilding = ""
		s.Oversight = OversightWarningMild
		// Granted so a retry after resolving the warning is not
		// re-intercepted.
		s.ReservesUnlocked = true
		syncOversightBuilding(&s)
		return s, Outcome{}, nil

	case ChoiceProceedAnyway:
		pending := plan.Pending()
		s.Pending = &pending
		s.Proposal = nil
		s.SelectedBuilding = ""
		s.Oversight = OversightWarningGrave
		syncOversightBuilding(&s)
		return s, Outcome{}, nil

	default:
		return s, Outcome{}, fmt.Errorf("interception choice %q: %w", choice, ErrBadChoice)
	}
}

func reduceReview(s State, choice ReviewChoice, now time.Time) (State, Outcome, error) {
	if choice != ReviewUnderstood && choice != ReviewDisagreed {
		return s, Outcome{}, fmt.Errorf("review choice %q: %w", choice, ErrBadChoice)
	}

	switch s.Oversight {
	case OversightWarningMild:
		if choice == ReviewUnderstood {
			// The deferred transaction is cancelled, never applied.
			s.Pending = nil
			s.Oversight = OversightIdle
		} else {
			s.Oversight = OversightWarningGrave
		}
		syncOversightBuilding(&s)
		return s, Outcome{}, nil

	case OversightWarningGrave:
		if choice == ReviewUnderstood {
			s.Pending = nil
			s.Oversight = OversightIdle
			syncOversightBuilding(&s)
			return s, Outcome{}, nil
		}
		// Defiance: the buffered magnitudes are seized from both cash
		// and reserves, clamped at zero as usual.
		if s.Pending != nil {
			next := s.Resources
			next, _ = next.Apply(core.FieldCash, -s.Pending.Cash)
			next, _ = next.Apply(core.FieldReserves, -s.Pending.Reserves)
			s = commitLedger(s, next, now)
			s.Pending = nil
		}
		s.Oversight = OversightEmergency
		s.Countdown = EmergencyCountdownStart
		syncOversightBuilding(&s)
		return s, Outcome{}, nil

	default:
		return s, Outcome{}, fmt.Errorf("review during %s: %w", s.Oversight, ErrBadChoice)
	}
}

// reduceTick consumes one emergency second. Ticks outside an emergency are
// no-ops so a straggling ticker cannot corrupt anything.
func reduceTick(s State) State {
	if s.Oversight != OversightEmergency {
		return s
	}
	if s.Countdown > 0 {
		s.Countdown--
	}
	if s.Countdown == 0 {
		s.Oversight = OversightPostEmergency
		syncOversightBuilding(&s)
	}
	return s
}

func reduceLoad(s State, act LoadState) (State, Outcome, error) {
	if err := core.ValidateHistory(act.History); err != nil {
		return s, Outcome{}, fmt.Errorf("load state: %w", err)
	}
	s.Resources = act.Resources
	s.History = append(core.History(nil), act.History...)
	if act.Settings != nil {
		s.Settings = *act.Settings
	}
	s.Oversight = OversightIdle
	s.SelectedBuilding = ""
	s.Pending = nil
	s.Proposal = nil
	s.ReservesUnlocked = false
	s.Countdown = 0
	syncOversightBuilding(&s)
	return s, Outcome{}, nil
}

func reduceReset(s State, now time.Time) State {
	s.Resources = core.Resources{}
	s.History = InitialHistory(now)
	s.Settings = core.DefaultSettings()
	s.Oversight = OversightIdle
	s.SelectedBuilding = ""
	s.Pending = nil
	s.Proposal = nil
	s.ReservesUnlocked = false
	s.Countdown = 0
	syncOversightBuilding(&s)
	return s
}

// commitLedger installs new balances and records the snapshot; dedup in
// Record keeps no-op commits out of the history.
func commitLedger(s State, next core.Resources, now time.Time) State {
	s.Resources = next
	s.History = s.History.Record(next, now)
	return s
}

// syncOversightBuilding mirrors the oversight status onto the KGB building
// card so the renderer paints it as a warning while engaged. Other
// buildings keep their stored status; visual gating is derived, not stored.
func syncOversightBuilding(s *State) {
	for i, b := range s.Buildings {
		if b.ID != catalog.KGB {
			continue
		}
		if s.Oversight != OversightIdle {
			s.Buildings[i].Status = catalog.StatusWarning
		} else {
			s.Buildings[i].Status = catalog.StatusActive
		}
	}
}
