package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"commune/internal/catalog"
	"commune/internal/core"
	"commune/internal/engine"
)

// stateView is the renderer-facing projection of the core state. Gating is
// derived per building so the renderer never re-implements the rules.
type stateView struct {
	Resources        core.Resources           `json:"resources"`
	Buildings        []buildingView           `json:"buildings"`
	SelectedBuilding string                   `json:"selectedBuildingId"`
	Oversight        engine.OversightStatus   `json:"kgbStatus"`
	Pending          *core.PendingTransaction `json:"pendingTransaction"`
	Proposal         *core.TransactionPlan    `json:"interceptedPlan"`
	Settings         core.Settings            `json:"settings"`
	HourlyRate       float64                  `json:"hourlyRate"`
	ReservesUnlocked bool                     `json:"hasUnlockedReserves"`
	History          core.History             `json:"resourceHistory"`
	Countdown        int                      `json:"emergencyCountdown"`
}

type buildingView struct {
	catalog.Building
	VisualStatus catalog.Status `json:"visualStatus"`
	Interactable bool           `json:"interactable"`
}

func viewOf(st engine.State) stateView {
	view := stateView{
		Resources:        st.Resources,
		SelectedBuilding: st.SelectedBuilding,
		Oversight:        st.Oversight,
		Pending:          st.Pending,
		Proposal:         st.Proposal,
		Settings:         st.Settings,
		HourlyRate:       st.Settings.HourlyRate(),
		ReservesUnlocked: st.ReservesUnlocked,
		History:          st.History,
		Countdown:        st.Countdown,
	}
	hasResources := st.HasResources()
	idle := st.OversightIdleNow()
	for _, b := range st.Buildings {
		view.Buildings = append(view.Buildings, buildingView{
			Building:     b,
			VisualStatus: catalog.VisualStatus(b, hasResources, idle),
			Interactable: catalog.Interactable(b, hasResources, idle),
		})
	}
	return view
}

// outcomeView is the response to any dispatched intent.
type outcomeView struct {
	Stamp       core.Stamp `json:"stamp,omitempty"`
	Intercepted bool       `json:"intercepted,omitempty"`
	NoOp        bool       `json:"noop,omitempty"`
	State       stateView  `json:"state"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(s.svc.State()))
}

type transactionRequest struct {
	Type       string `json:"type"`
	Amount     string `json:"amount"`
	Allocation string `json:"allocation"`
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	plan, err := planTransaction(req)
	if err != nil {
		if errors.Is(err, core.ErrInvalidNumericInput) {
			// Garbage numeric input is a documented no-op, not a failure.
			writeJSON(w, http.StatusOK, outcomeView{NoOp: true, State: viewOf(s.svc.State())})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.dispatchPlan(w, r, engine.SubmitTransaction{Plan: plan})
}

func planTransaction(req transactionRequest) (core.TransactionPlan, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.TransactionPlan{}, err
	}
	allocation, err := core.ParseAllocation(req.Allocation)
	if err != nil {
		return core.TransactionPlan{}, err
	}

	switch req.Type {
	case "expense":
		return core.PlanExpenseSplit(amount, allocation)
	case "debt_payment":
		return core.PlanDebtPaymentSplit(amount, allocation)
	case "supply_base":
		return core.PlanSupplyBaseCredit(amount)
	case "supply_bonus":
		return core.PlanSupplyBonusSplit(amount, allocation)
	default:
		return core.TransactionPlan{}, errors.New("unknown transaction type " + req.Type)
	}
}

type decreeRequest struct {
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

func (s *Server) handleDecree(w http.ResponseWriter, r *http.Request) {
	var req decreeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusOK, outcomeView{NoOp: true, State: viewOf(s.svc.State())})
		return
	}

	var plan core.TransactionPlan
	switch req.Type {
	case "balance_transfer":
		plan, err = core.PlanBalanceTransferDecree(amount)
	case "attack_debt":
		plan, err = core.PlanAttackDebtDecree(amount)
	default:
		writeError(w, http.StatusBadRequest, "unknown decree type "+req.Type)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.dispatchPlan(w, r, engine.IssueDecree{Plan: plan})
}

// dispatchPlan runs a plan-carrying action and maps the error taxonomy onto
// HTTP statuses. Insufficient funds is a denial stamp, not a server fault.
func (s *Server) dispatchPlan(w http.ResponseWriter, r *http.Request, a engine.Action) {
	st, outcome, err := s.svc.Dispatch(r.Context(), a)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInsufficientFunds):
			writeJSON(w, http.StatusUnprocessableEntity, outcomeView{Stamp: core.StampDenied, State: viewOf(st)})
		case errors.Is(err, engine.ErrOversightEngaged):
			writeError(w, http.StatusConflict, err.Error())
		default:
			slog.ErrorContext(r.Context(), "Dispatch failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, outcomeView{Stamp: outcome.Stamp, Intercepted: outcome.Intercepted, State: viewOf(st)})
}

type choiceRequest struct {
	Choice string `json:"choice"`
}

func (s *Server) handleOversightChoice(w http.ResponseWriter, r *http.Request) {
	var req choiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var action engine.Action
	switch req.Choice {
	case string(engine.ChoiceAllClear), string(engine.ChoiceNeedTime), string(engine.ChoiceProceedAnyway):
		action = engine.ResolveInterception{Choice: engine.InterceptionChoice(req.Choice)}
	case string(engine.ReviewUnderstood), string(engine.ReviewDisagreed):
		action = engine.AnswerReview{Choice: engine.ReviewChoice(req.Choice)}
	default:
		writeError(w, http.StatusBadRequest, "unknown choice "+req.Choice)
		return
	}

	st, outcome, err := s.svc.Dispatch(r.Context(), action)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInsufficientFunds):
			writeJSON(w, http.StatusUnprocessableEntity, outcomeView{Stamp: core.StampDenied, State: viewOf(st)})
		case errors.Is(err, engine.ErrNoProposal),
			errors.Is(err, engine.ErrReservesLocked),
			errors.Is(err, engine.ErrBadChoice):
			writeError(w, http.StatusConflict, err.Error())
		default:
			slog.ErrorContext(r.Context(), "Oversight choice failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, outcomeView{Stamp: outcome.Stamp, Intercepted: outcome.Intercepted, State: viewOf(st)})
}

func (s *Server) handleOversightResume(w http.ResponseWriter, r *http.Request) {
	st, _, err := s.svc.Dispatch(r.Context(), engine.ResumeOperations{})
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcomeView{State: viewOf(st)})
}

type buildingRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleSelectBuilding(w http.ResponseWriter, r *http.Request) {
	var req buildingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	st, _, err := s.svc.Dispatch(r.Context(), engine.SelectBuilding{ID: req.ID})
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcomeView{State: viewOf(st)})
}

func (s *Server) handleUpgradeBuilding(w http.ResponseWriter, r *http.Request) {
	var req buildingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	st, _, err := s.svc.Dispatch(r.Context(), engine.UpgradeBuilding{ID: req.ID})
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcomeView{State: viewOf(st)})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var patch core.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	st, _, err := s.svc.Dispatch(r.Context(), engine.UpdateSettings{Patch: patch})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, outcomeView{State: viewOf(st)})
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	var patch core.ResourcePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	st, _, err := s.svc.Dispatch(r.Context(), engine.SetResources{Patch: patch})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, outcomeView{State: viewOf(st)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc := s.svc.Export()
	data, err := doc.Encode()
	if err != nil {
		slog.ErrorContext(r.Context(), "Export encoding failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="commune-export.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	if err := s.svc.Import(r.Context(), data); err != nil {
		if errors.Is(err, core.ErrInvalidFormat) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Import failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, outcomeView{State: viewOf(s.svc.State())})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reset(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Reset failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, outcomeView{State: viewOf(s.svc.State())})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
