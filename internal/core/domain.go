package core

import (
	"errors"
	"time"
)

// Field names a single ledger balance.
type Field string

const (
	FieldCash     Field = "cash"
	FieldReserves Field = "reserves"
	FieldDebt     Field = "debt"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidFormat       = errors.New("invalid format")
	ErrInvalidNumericInput = errors.New("invalid numeric input")
	ErrUnknownField        = errors.New("unknown resource field")
)

type (
	// Resources holds the authoritative ledger balances, in whole RUB.
	// No field is ever negative; every mutation clamps at zero.
	Resources struct {
		Cash     int64 `json:"cash"`
		Reserves int64 `json:"reserves"`
		Debt     int64 `json:"debt"`
	}

	// ResourcePatch carries an optional absolute value per field for
	// manual-audit corrections. Nil fields are left untouched.
	ResourcePatch struct {
		Cash     *int64 `json:"cash,omitempty"`
		Reserves *int64 `json:"reserves,omitempty"`
		Debt     *int64 `json:"debt,omitempty"`
	}

	// ResourceSnapshot is an immutable timestamped copy of the ledger.
	ResourceSnapshot struct {
		RecordedAt time.Time `json:"recordedAt"`
		Data       Resources `json:"data"`
	}

	// History is the append-only, time-ordered snapshot log.
	History []ResourceSnapshot

	// Settings are the labor constants behind the hourly-rate calculation.
	Settings struct {
		MonthlyIncome    int64 `json:"monthlyIncome"`
		MonthlyWorkHours int64 `json:"monthlyWorkHours"`
	}

	// SettingsPatch is a partial settings update issued by decree.
	SettingsPatch struct {
		MonthlyIncome    *int64 `json:"monthlyIncome,omitempty"`
		MonthlyWorkHours *int64 `json:"monthlyWorkHours,omitempty"`
	}

	// PendingTransaction holds the magnitudes of a deferred withdrawal
	// awaiting oversight resolution. At most one exists at a time.
	PendingTransaction struct {
		Cash     int64 `json:"cash"`
		Reserves int64 `json:"reserves"`
		Debt     int64 `json:"debt"`
	}
)

// DefaultSettings matches the constants the planning office starts from.
func DefaultSettings() Settings {
	return Settings{MonthlyIncome: 10000, MonthlyWorkHours: 168}
}

func clampZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// Get returns the balance of a single field.
func (r Resources) Get(f Field) (int64, error) {
	switch f {
	case FieldCash:
		return r.Cash, nil
	case FieldReserves:
		return r.Reserves, nil
	case FieldDebt:
		return r.Debt, nil
	default:
		return 0, ErrUnknownField
	}
}

// Apply adds a signed amount to one field, flooring the result at zero.
// All other fields are unchanged. Over-withdrawal is not an error here;
// callers needing insufficient-funds semantics must pre-check.
func (r Resources) Apply(f Field, amount int64) (Resources, error) {
	switch f {
	case FieldCash:
		r.Cash = clampZero(r.Cash + amount)
	case FieldReserves:
		r.Reserves = clampZero(r.Reserves + amount)
	case FieldDebt:
		r.Debt = clampZero(r.Debt + amount)
	default:
		return r, ErrUnknownField
	}
	return r, nil
}

// Merge sets the fields present in the patch to max(0, value), leaving
// omitted fields untouched.
func (r Resources) Merge(p ResourcePatch) Resources {
	if p.Cash != nil {
		r.Cash = clampZero(*p.Cash)
	}
	if p.Reserves != nil {
		r.Reserves = clampZero(*p.Reserves)
	}
	if p.Debt != nil {
		r.Debt = clampZero(*p.Debt)
	}
	return r
}

// IsZero reports whether every balance is zero, the state of a commune
// awaiting its first directive.
func (r Resources) IsZero() bool {
	return r.Cash == 0 && r.Reserves == 0 && r.Debt == 0
}

// Record appends a snapshot only when the balances differ from the last
// recorded entry; recording an unchanged ledger is a no-op.
func (h History) Record(r Resources, now time.Time) History {
	if len(h) > 0 && h[len(h)-1].Data == r {
		return h
	}
	return append(h, ResourceSnapshot{RecordedAt: now.UTC(), Data: r})
}

// Latest returns the most recent snapshot, or nil for an empty history.
func (h History) Latest() *ResourceSnapshot {
	if len(h) == 0 {
		return nil
	}
	s := h[len(h)-1]
	return &s
}

// ValidateHistory checks a full replacement candidate: snapshots must carry
// timestamps in non-decreasing order and non-negative balances.
func ValidateHistory(snapshots []ResourceSnapshot) error {
	for i, s := range snapshots {
		if s.RecordedAt.IsZero() {
			return ErrInvalidFormat
		}
		if s.Data.Cash < 0 || s.Data.Reserves < 0 || s.Data.Debt < 0 {
			return ErrInvalidFormat
		}
		if i > 0 && s.RecordedAt.Before(snapshots[i-1].RecordedAt) {
			return ErrInvalidFormat
		}
	}
	return nil
}

// Merge applies the fields present in the patch. Zero or negative hours are
// permitted inputs; the derived rate degrades to zero instead.
func (s Settings) Merge(p SettingsPatch) Settings {
	if p.MonthlyIncome != nil {
		s.MonthlyIncome = *p.MonthlyIncome
	}
	if p.MonthlyWorkHours != nil {
		s.MonthlyWorkHours = *p.MonthlyWorkHours
	}
	return s
}

// HourlyRate derives RUB per hour of labor, guarding division by zero.
func (s Settings) HourlyRate() float64 {
	if s.MonthlyWorkHours <= 0 {
		return 0
	}
	return float64(s.MonthlyIncome) / float64(s.MonthlyWorkHours)
}
