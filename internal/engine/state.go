// Package engine implements the state machine governing resource mutation,
// transaction interception, and the escalating oversight protocol. All
// mutations flow through a single pure reducer serialized by the Store.
package engine

import (
	"errors"
	"time"

	"commune/internal/catalog"
	"commune/internal/core"
)

// OversightStatus is the position of the oversight (KGB) state machine.
type OversightStatus string

const (
	OversightIdle          OversightStatus = "idle"
	OversightWarningMild   OversightStatus = "warning_mild"
	OversightWarningGrave  OversightStatus = "warning_grave"
	OversightEmergency     OversightStatus = "emergency"
	OversightPostEmergency OversightStatus = "post_emergency"
)

// EmergencyCountdownStart is the number of one-second ticks an emergency
// lasts. No user action can shorten it.
const EmergencyCountdownStart = 10

var (
	ErrBuildingUnavailable = errors.New("building not available for interaction")
	ErrOversightEngaged    = errors.New("oversight protocol engaged")
	ErrNoProposal          = errors.New("no intercepted transaction awaiting resolution")
	ErrReservesLocked      = errors.New("reserve access has not been cleared")
	ErrBadChoice           = errors.New("choice not valid in current oversight state")
)

// State is the complete core state visible to the renderer. Values are
// copied on read; only the reducer produces new ones.
type State struct {
	Resources        core.Resources           `json:"resources"`
	Buildings        []catalog.Building       `json:"buildings"`
	SelectedBuilding string                   `json:"selectedBuildingId"`
	Oversight        OversightStatus          `json:"kgbStatus"`
	Pending          *core.PendingTransaction `json:"pendingTransaction"`
	Proposal         *core.TransactionPlan    `json:"interceptedPlan"`
	Settings         core.Settings            `json:"settings"`
	ReservesUnlocked bool                     `json:"hasUnlockedReserves"`
	History          core.History             `json:"resourceHistory"`

	// Countdown is the remaining emergency ticks; zero outside emergencies.
	Countdown int `json:"emergencyCountdown"`
}

// HasResources reports whether any balance is nonzero; before the first
// directive only the Kremlin is reachable.
func (s State) HasResources() bool {
	return !s.Resources.IsZero()
}

// OversightIdleNow reports whether building interaction is ungated.
func (s State) OversightIdleNow() bool {
	return s.Oversight == OversightIdle
}

// InitialHistory is the single zeroed snapshot a fresh commune starts with.
func InitialHistory(now time.Time) core.History {
	return core.History{}.Record(core.Resources{}, now)
}

// NewState builds the boot state from a building catalog and whatever the
// persistence layer recovered. Resources come from the latest snapshot.
func NewState(buildings []catalog.Building, settings core.Settings, history core.History) State {
	s := State{
		Buildings: buildings,
		Oversight: OversightIdle,
		Settings:  settings,
		History:   history,
	}
	if latest := history.Latest(); latest != nil {
		s.Resources = latest.Data
	}
	syncOversightBuilding(&s)
	return s
}

// clone returns a deep enough copy for handing outside the store: slices
// and pointers must not alias reducer-owned memory.
func (s State) clone() State {
	out := s
	out.Buildings = append([]catalog.Building(nil), s.Buildings...)
	out.History = append(core.History(nil), s.History...)
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	if s.Proposal != nil {
		p := *s.Proposal
		out.Proposal = &p
	}
	return out
}
