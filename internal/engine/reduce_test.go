package engine

import (
	"errors"
	"testing"
	"time"

	"commune/internal/catalog"
	"commune/internal/core"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testState(t *testing.T, r core.Resources) State {
	t.Helper()
	buildings, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	s := NewState(buildings, core.DefaultSettings(), InitialHistory(testNow))
	s.Resources = r
	s.History = s.History.Record(r, testNow)
	return s
}

func mustReduce(t *testing.T, s State, a Action) (State, Outcome) {
	t.Helper()
	next, out, err := reduce(s, a, testNow)
	if err != nil {
		t.Fatalf("reduce %T: %v", a, err)
	}
	return next, out
}

func TestSubmitPlainExpense(t *testing.T) {
	s := testState(t, core.Resources{Cash: 1000})
	plan, err := core.PlanExpenseSplit(400, 0)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	next, out := mustReduce(t, s, SubmitTransaction{Plan: plan})

	if next.Resources.Cash != 600 {
		t.Errorf("cash = %d, want 600", next.Resources.Cash)
	}
	if out.Stamp != core.StampApproved {
		t.Errorf("stamp = %q, want APPROVED", out.Stamp)
	}
	if out.Intercepted {
		t.Error("plain cash expense must not be intercepted")
	}
	if got := len(next.History); got != len(s.History)+1 {
		t.Errorf("history grew by %d, want 1", got-len(s.History))
	}
}

func TestSubmitInsufficientFundsCheckedBeforeInterception(t *testing.T) {
	// A reserve-touching plan that is also unaffordable must be rejected
	// outright, never parked for review.
	s := testState(t, core.Resources{Cash: 100, Reserves: 100})
	plan, _ := core.PlanExpenseSplit(600, 50)

	next, out, err := reduce(s, SubmitTransaction{Plan: plan}, testNow)

	if !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if out.Intercepted {
		t.Error("unaffordable plan must not reach interception")
	}
	if out.Stamp != core.StampDenied {
		t.Errorf("stamp = %q, want DENIED", out.Stamp)
	}
	if next.Resources != s.Resources {
		t.Error("rejection must not mutate the ledger")
	}
}

func TestSubmitReserveTouchingIntercepted(t *testing.T) {
	s := testState(t, core.Resources{Cash: 1000, Reserves: 1000})
	plan, _ := core.PlanExpenseSplit(600, 50)

	next, out := mustReduce(t, s, SubmitTransaction{Plan: plan})

	if !out.Intercepted {
		t.Fatal("reserve withdrawal without unlock must be intercepted")
	}
	if next.Resources != s.Resources {
		t.Error("interception must leave the ledger untouched")
	}
	if next.Proposal == nil {
		t.Fatal("intercepted plan must be held as the proposal")
	}
	if next.Proposal.FromReserves != 300 || next.Proposal.FromCash != 300 {
		t.Errorf("proposal split = %d/%d, want 300/300", next.Proposal.FromCash, next.Proposal.FromReserves)
	}
	if next.Pending != nil {
		t.Error("pending buffer must stay empty until a deferral choice")
	}
}

func TestSubmitWithUnlockConsumesIt(t *testing.T) {
	s := testState(t, core.Resources{Cash: 1000, Reserves: 1000})
	s.ReservesUnlocked = true
	plan, _ := core.PlanExpenseSplit(600, 50)

	next, out := mustReduce(t, s, SubmitTransaction{Plan: plan})

	if out.Intercepted {
		t.Fatal("unlocked submission must commit directly")
	}
	if next.Resources.Cash != 700 || next.Resources.Reserves != 700 {
		t.Errorf("balances = %d/%d, want 700/700", next.Resources.Cash, next.Resources.Reserves)
	}
	if next.ReservesUnlocked {
		t.Error("the unlock is single-use and must be consumed")
	}

	// The very next reserve withdrawal is intercepted again.
	_, out2 := mustReduce(t, next, SubmitTransaction{Plan: plan})
	if !out2.Intercepted {
		t.Error("second reserve withdrawal must be intercepted after the unlock is spent")
	}
}

func TestSubmitBlockedWhileOversightEngaged(t *testing.T) {
	s := testState(t, core.Resources{Cash: 1000})
	s.Oversight = OversightWarningMild
	plan, _ := core.PlanExpenseSplit(100, 0)

	_, _, err := reduce(s, SubmitTransaction{Plan: plan}, testNow)
	if !errors.Is(err, ErrOversightEngaged) {
		t.Fatalf("err = %v, want ErrOversightEngaged", err)
	}
}

func TestDecreeBypassesInterception(t *testing.T) {
	s := testState(t, core.Resources{Reserves: 1000, Debt: 400})
	plan, _ := core.PlanAttackDebtDecree(1000)

	next, out := mustReduce(t, s, IssueDecree{Plan: plan})

	if out.Intercepted {
		t.Fatal("decrees never pass through interception")
	}
	if next.Resources.Reserves != 0 {
		t.Errorf("reserves = %d, want 0", next.Resources.Reserves)
	}
	if next.Resources.Debt != 0 {
		t.Errorf("debt = %d, want 0 (floored)", next.Resources.Debt)
	}
	if out.Stamp != core.StampLiquidated {
		t.Errorf("stamp = %q, want LIQUIDATED", out.Stamp)
	}
}

func interceptedState(t *testing.T) State {
	t.Helper()
	s := testState(t, core.Resources{Cash: 1000, Reserves: 1000})
	plan, _ := core.PlanExpenseSplit(600, 50)
	next, out := mustReduce(t, s, SubmitTransaction{Plan: plan})
	if !out.Intercepted {
		t.Fatal("setup: expected interception")
	}
	return next
}

func TestInterceptionAllClearRequiresUnlock(t *testing.T) {
	s := interceptedState(t)

	_, _, err := reduce(s, ResolveInterception{Choice: ChoiceAllClear}, testNow)
	if !errors.Is(err, ErrReservesLocked) {
		t.Fatalf("err = %v, want ErrReservesLocked", err)
	}
}

func TestInterceptionAllClearCommits(t *testing.T) {
	s := interceptedState(t)
	s.ReservesUnlocked = true

	next, out := mustReduce(t, s, ResolveInterception{Choice: ChoiceAllClear})

	if next.Resources.Cash != 700 || next.Resources.Reserves != 700 {
		t.Errorf("balances = %d/%d, want 700/700", next.Resources.Cash, next.Resources.Reserves)
	}
	if out.Stamp != core.StampApproved {
		t.Errorf("stamp = %q, want APPROVED", out.Stamp)
	}
	if next.Proposal != nil {
		t.Error("proposal must be cleared after resolution")
	}
	if next.ReservesUnlocked {
		t.Error("unlock must be consumed by the commit")
	}
	if next.Oversight != OversightIdle {
		t.Errorf("oversight = %s, want idle", next.Oversight)
	}
}

func TestInterceptionNeedTimeDefers(t *testing.T) {
	s := interceptedState(t)

	next, _ := mustReduce(t, s, ResolveInterception{Choice: ChoiceNeedTime})

	if next.Resources != s.Resources {
		t.Error("deferral must not touch the ledger")
	}
	if next.Oversight != OversightWarningMild {
		t.Errorf("oversight = %s, want warning_mild", next.Oversight)
	}
	if next.Pending == nil || next.Pending.Cash != 300 || next.Pending.Reserves != 300 {
		t.Errorf("pending = %+v, want 300/300", next.Pending)
	}
	if next.Proposal != nil {
		t.Error("proposal must be cleared on deferral")
	}
	if next.SelectedBuilding != "" {
		t.Error("building selection must be cleared on deferral")
	}
	if !next.ReservesUnlocked {
		t.Error("deferral grants the single-use unlock for the retry")
	}
}

func TestInterceptionProceedAnywayEscalates(t *testing.T) {
	s := interceptedState(t)

	next, _ := mustReduce(t, s, ResolveInterception{Choice: ChoiceProceedAnyway})

	if next.Oversight != OversightWarningGrave {
		t.Errorf("oversight = %s, want warning_grave", next.Oversight)
	}
	if next.Pending == nil {
		t.Fatal("defiance must still buffer the transaction")
	}
	if next.ReservesUnlocked {
		t.Error("proceeding anyway earns no unlock")
	}
}

func TestInterceptionWithoutProposal(t *testing.T) {
	s := testState(t, core.Resources{Cash: 100})
	_, _, err := reduce(s, ResolveInterception{Choice: ChoiceAllClear}, testNow)
	if !errors.Is(err, ErrNoProposal) {
		t.Fatalf("err = %v, want ErrNoProposal", err)
	}
}

func TestReviewMildUnderstoodCancelsPending(t *testing.T) {
	s := interceptedState(t)
	s, _ = mustReduce(t, s, ResolveInterception{Choice: ChoiceNeedTime})

	next, _ := mustReduce(t, s, AnswerReview{Choice: ReviewUnderstood})

	if next.Oversight != OversightIdle {
		t.Errorf("oversight = %s, want idle", next.Oversight)
	}
	if next.Pending != nil {
		t.Error("compliance cancels the buffered transaction")
	}
	if next.Resources != s.Resources {
		t.Error("cancelled transaction must never apply")
	}
	// Idempotent in effect: the buffered debits can no longer reach the
	// ledger by any later action.
	if kgb := buildingStatus(next, catalog.KGB); kgb != catalog.StatusActive {
		t.Errorf("kgb status = %s, want active after resolution", kgb)
	}
}

func TestReviewMildDisagreedEscalates(t *testing.T) {
	s := interceptedState(t)
	s, _ = mustReduce(t, s, ResolveInterception{Choice: ChoiceNeedTime})

	next, _ := mustReduce(t, s, AnswerReview{Choice: ReviewDisagreed})

	if next.Oversight != OversightWarningGrave {
		t.Errorf("oversight = %s, want warning_grave", next.Oversight)
	}
	if next.Pending == nil {
		t.Error("escalation keeps the buffered transaction")
	}
	if next.Resources != s.Resources {
		t.Error("escalation alone must not touch the ledger")
	}
}

func TestReviewGraveDisagreedForceAppliesAndStartsEmergency(t *testing.T) {
	s := interceptedState(t)
	s, _ = mustReduce(t, s, ResolveInterception{Choice: ChoiceProceedAnyway})

	next, _ := mustReduce(t, s, AnswerReview{Choice: ReviewDisagreed})

	if next.Oversight != OversightEmergency {
		t.Fatalf("oversight = %s, want emergency", next.Oversight)
	}
	if next.Countdown != EmergencyCountdownStart {
		t.Errorf("countdown = %d, want %d", next.Countdown, EmergencyCountdownStart)
	}
	if next.Resources.Cash != 700 || next.Resources.Reserves != 700 {
		t.Errorf("balances = %d/%d, want 700/700 after forced application", next.Resources.Cash, next.Resources.Reserves)
	}
	if next.Pending != nil {
		t.Error("forced application consumes the buffer")
	}
	if kgb := buildingStatus(next, catalog.KGB); kgb != catalog.StatusWarning {
		t.Errorf("kgb status = %s, want warning", kgb)
	}
}

func TestForceApplyClampsAtZero(t *testing.T) {
	s := testState(t, core.Resources{Cash: 100, Reserves: 50})
	s.Oversight = OversightWarningGrave
	s.Pending = &core.PendingTransaction{Cash: 300, Reserves: 300}

	next, _ := mustReduce(t, s, AnswerReview{Choice: ReviewDisagreed})

	if next.Resources.Cash != 0 || next.Resources.Reserves != 0 {
		t.Errorf("balances = %d/%d, want 0/0", next.Resources.Cash, next.Resources.Reserves)
	}
}

func TestEmergencyCountdownRunsExactlyTenTicks(t *testing.T) {
	s := testState(t, core.Resources{Cash: 100})
	s.Oversight = OversightEmergency
	s.Countdown = EmergencyCountdownStart

	for i := 0; i < EmergencyCountdownStart-1; i++ {
		s, _ = mustReduce(t, s, EmergencyTick{})
		if s.Oversight != OversightEmergency {
			t.Fatalf("left emergency after %d ticks", i+1)
		}
	}
	if s.Countdown != 1 {
		t.Fatalf("countdown = %d after %d ticks, want 1", s.Countdown, EmergencyCountdownStart-1)
	}

	s, _ = mustReduce(t, s, EmergencyTick{})
	if s.Oversight != OversightPostEmergency {
		t.Fatalf("oversight = %s after final tick, want post_emergency", s.Oversight)
	}
	if s.Countdown != 0 {
		t.Errorf("countdown = %d, want 0", s.Countdown)
	}
}

func TestEmergencyCannotBeShortened(t *testing.T) {
	s := testState(t, core.Resources{Cash: 1000})
	s.Oversight = OversightEmergency
	s.Countdown = 5

	if _, _, err := reduce(s, ResumeOperations{}, testNow); !errors.Is(err, ErrBadChoice) {
		t.Errorf("resume during emergency: err = %v, want ErrBadChoice", err)
	}
	if _, _, err := reduce(s, AnswerReview{Choice: ReviewUnderstood}, testNow); !errors.Is(err, ErrBadChoice) {
		t.Errorf("review during emergency: err = %v, want ErrBadChoice", err)
	}
	plan, _ := core.PlanExpenseSplit(100, 0)
	if _, _, err := reduce(s, SubmitTransaction{Plan: plan}, testNow); !errors.Is(err, ErrOversightEngaged) {
		t.Errorf("submit during emergency: err = %v, want ErrOversightEngaged", err)
	}
}

func TestTickOutsideEmergencyIsNoOp(t *testing.T) {
	s := testState(t, core.Resources{Cash: 100})
	next, _ := mustReduce(t, s, EmergencyTick{})
	if next.Oversight != OversightIdle || next.Countdown != 0 {
		t.Errorf("stray tick changed state: %s/%d", next.Oversight, next.Countdown)
	}
}

func TestResumeOperations(t *testing.T) {
	s := testState(t, core.Resources{Cash: 100})
	s.Oversight = OversightPostEmergency
	syncOversightBuilding(&s)

	next, _ := mustReduce(t, s, ResumeOperations{})
	if next.Oversight != OversightIdle {
		t.Errorf("oversight = %s, want idle", next.Oversight)
	}
	if kgb := buildingStatus(next, catalog.KGB); kgb != catalog.StatusActive {
		t.Errorf("kgb status = %s, want active", kgb)
	}
}

func TestSelectBuildingGating(t *testing.T) {
	s := testState(t, core.Resources{})
	if _, _, err := reduce(s, SelectBuilding{ID: catalog.Gosplan}, testNow); !errors.Is(err, ErrBuildingUnavailable) {
		t.Errorf("gosplan with no resources: err = %v, want ErrBuildingUnavailable", err)
	}
	next, _ := mustReduce(t, s, SelectBuilding{ID: catalog.Kremlin})
	if next.SelectedBuilding != catalog.Kremlin {
		t.Errorf("selected = %q, want kremlin", next.SelectedBuilding)
	}

	engaged := testState(t, core.Resources{Cash: 100})
	engaged.Oversight = OversightWarningMild
	if _, _, err := reduce(engaged, SelectBuilding{ID: catalog.Kremlin}, testNow); !errors.Is(err, ErrBuildingUnavailable) {
		t.Errorf("kremlin during oversight: err = %v, want ErrBuildingUnavailable", err)
	}
	if _, _, err := reduce(engaged, SelectBuilding{ID: catalog.KGB}, testNow); err != nil {
		t.Errorf("kgb during oversight: %v", err)
	}
}

func TestDeselectClearsProposal(t *testing.T) {
	s := interceptedState(t)
	next, _ := mustReduce(t, s, SelectBuilding{ID: ""})
	if next.Proposal != nil {
		t.Error("deselect must drop the open proposal")
	}
	if next.SelectedBuilding != "" {
		t.Errorf("selected = %q, want empty", next.SelectedBuilding)
	}
}

func TestApplyDeltaClampsAndRecords(t *testing.T) {
	s := testState(t, core.Resources{Cash: 100})
	next, _ := mustReduce(t, s, ApplyDelta{Field: core.FieldCash, Amount: -250})
	if next.Resources.Cash != 0 {
		t.Errorf("cash = %d, want 0", next.Resources.Cash)
	}
	if len(next.History) != len(s.History)+1 {
		t.Error("delta must record a snapshot")
	}
}

func TestSetResourcesPartialPatch(t *testing.T) {
	s := testState(t, core.Resources{Cash: 100, Reserves: 200, Debt: 300})
	v := int64(500)
	next, _ := mustReduce(t, s, SetResources{Patch: core.ResourcePatch{Reserves: &v}})
	want := core.Resources{Cash: 100, Reserves: 500, Debt: 300}
	if next.Resources != want {
		t.Errorf("resources = %+v, want %+v", next.Resources, want)
	}
}

func TestLoadStateResetsTransient(t *testing.T) {
	s := interceptedState(t)
	s, _ = mustReduce(t, s, ResolveInterception{Choice: ChoiceNeedTime})

	hist := core.History{}.Record(core.Resources{Cash: 42}, testNow)
	settings := core.Settings{MonthlyIncome: 5000, MonthlyWorkHours: 160}
	next, _ := mustReduce(t, s, LoadState{Resources: core.Resources{Cash: 42}, History: hist, Settings: &settings})

	if next.Resources.Cash != 42 {
		t.Errorf("cash = %d, want 42", next.Resources.Cash)
	}
	if next.Oversight != OversightIdle || next.Pending != nil || next.Proposal != nil || next.ReservesUnlocked {
		t.Error("load must clear all transient oversight state")
	}
	if next.Settings != settings {
		t.Errorf("settings = %+v, want %+v", next.Settings, settings)
	}
}

func TestLoadStateRejectsBadHistory(t *testing.T) {
	s := testState(t, core.Resources{Cash: 100})
	bad := core.History{{Data: core.Resources{Cash: 1}}} // zero timestamp
	_, _, err := reduce(s, LoadState{History: bad}, testNow)
	if !errors.Is(err, core.ErrInvalidFormat) {
		t.Fatalf("err = %v, want ErrInvalidFormat", err)
	}
}

func TestResetAll(t *testing.T) {
	s := interceptedState(t)
	s, _ = mustReduce(t, s, ResolveInterception{Choice: ChoiceProceedAnyway})
	s.Settings = core.Settings{MonthlyIncome: 1, MonthlyWorkHours: 1}

	next, _ := mustReduce(t, s, ResetAll{})

	if !next.Resources.IsZero() {
		t.Errorf("resources = %+v, want zero", next.Resources)
	}
	if len(next.History) != 1 || !next.History[0].Data.IsZero() {
		t.Errorf("history = %+v, want single zeroed snapshot", next.History)
	}
	if next.Settings != core.DefaultSettings() {
		t.Errorf("settings = %+v, want defaults", next.Settings)
	}
	if next.Oversight != OversightIdle || next.Pending != nil || next.Proposal != nil {
		t.Error("reset must clear oversight state")
	}
}

func buildingStatus(s State, id string) catalog.Status {
	for _, b := range s.Buildings {
		if b.ID == id {
			return b.Status
		}
	}
	return ""
}
