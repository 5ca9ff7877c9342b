package engine

import (
	"commune/internal/core"
)

// Action is the closed set of intents the core accepts from the renderer.
// Every state transition, including the emergency countdown tick, flows
// through the same dispatch path as a value of this type.
type Action interface {
	isAction()
}

// SelectBuilding selects a building for interaction; an empty ID deselects.
type SelectBuilding struct {
	ID string
}

// UpgradeBuilding raises a building's level and activates it.
type UpgradeBuilding struct {
	ID string
}

// ApplyDelta adds a signed amount to one ledger field, clamped at zero.
type ApplyDelta struct {
	Field  core.Field
	Amount int64
}

// SetResources overwrites the given ledger fields, a manual audit.
type SetResources struct {
	Patch core.ResourcePatch
}

// UpdateSettings merges new labor standards into the settings store.
type UpdateSettings struct {
	Patch core.SettingsPatch
}

// SubmitTransaction asks for a planned transaction to be committed. Plans
// that withdraw from reserves are intercepted for oversight review unless
// a single-use unlock is held.
type SubmitTransaction struct {
	Plan core.TransactionPlan
}

// IssueDecree commits a plan on the Kremlin's authority, bypassing the
// interception path entirely.
type IssueDecree struct {
	Plan core.TransactionPlan
}

// InterceptionChoice names one of the three answers to an interception.
type InterceptionChoice string

const (
	ChoiceAllClear      InterceptionChoice = "all_clear"
	ChoiceNeedTime      InterceptionChoice = "need_time"
	ChoiceProceedAnyway InterceptionChoice = "proceed_anyway"
)

// ResolveInterception answers an open interception.
type ResolveInterception struct {
	Choice InterceptionChoice
}

// ReviewChoice names an answer given during an oversight warning.
type ReviewChoice string

const (
	ReviewUnderstood ReviewChoice = "understood"
	ReviewDisagreed  ReviewChoice = "disagreed"
)

// AnswerReview responds to a mild or grave oversight warning.
type AnswerReview struct {
	Choice ReviewChoice
}

// EmergencyTick is one second of the emergency countdown. Submitted by the
// store's own ticker, never by the renderer.
type EmergencyTick struct{}

// ResumeOperations leaves the post-emergency state.
type ResumeOperations struct{}

// SetPending overwrites or clears the pending-transaction buffer directly.
type SetPending struct {
	Tx *core.PendingTransaction
}

// SetReserveUnlock grants or revokes the single-use reserve unlock.
type SetReserveUnlock struct {
	Unlocked bool
}

// RecordHistory appends a snapshot of the current ledger if it changed.
type RecordHistory struct{}

// LoadState replaces the full state from an import or a storage bootstrap.
// Settings may be nil to keep the current ones.
type LoadState struct {
	Resources core.Resources
	History   core.History
	Settings  *core.Settings
}

// ResetAll wipes everything back to the zeroed initial state.
type ResetAll struct{}

func (SelectBuilding) isAction()      {}
func (UpgradeBuilding) isAction()     {}
func (ApplyDelta) isAction()          {}
func (SetResources) isAction()        {}
func (UpdateSettings) isAction()      {}
func (SubmitTransaction) isAction()   {}
func (IssueDecree) isAction()         {}
func (ResolveInterception) isAction() {}
func (AnswerReview) isAction()        {}
func (EmergencyTick) isAction()       {}
func (ResumeOperations) isAction()    {}
func (SetPending) isAction()          {}
func (SetReserveUnlock) isAction()    {}
func (RecordHistory) isAction()       {}
func (LoadState) isAction()           {}
func (ResetAll) isAction()            {}
