package core

import "fmt"

// PlanKind identifies the transaction category a plan was computed for.
type PlanKind string

const (
	PlanExpense         PlanKind = "expense"
	PlanDebtPayment     PlanKind = "debt_payment"
	PlanSupplyBase      PlanKind = "supply_base"
	PlanSupplyBonus     PlanKind = "supply_bonus"
	PlanBalanceTransfer PlanKind = "balance_transfer"
	PlanAttackDebt      PlanKind = "attack_debt"
)

// Stamp is the outcome label the renderer prints over a processed form.
type Stamp string

const (
	StampApproved   Stamp = "APPROVED"
	StampDenied     Stamp = "DENIED"
	StampLiquidated Stamp = "LIQUIDATED"
	StampAllocated  Stamp = "ALLOCATED"
)

// TransactionPlan is the computed effect of a requested transaction before
// anything touches the ledger. FromCash and FromReserves are source
// withdrawals and must be affordable; ToCash and ToReserves are credits;
// DebtPaydown reduces debt and floors at zero rather than failing.
type TransactionPlan struct {
	Kind         PlanKind `json:"kind"`
	FromCash     int64    `json:"fromCash"`
	FromReserves int64    `json:"fromReserves"`
	ToCash       int64    `json:"toCash"`
	ToReserves   int64    `json:"toReserves"`
	DebtPaydown  int64    `json:"debtPaydown"`
	Stamp        Stamp    `json:"stamp"`
}

// TouchesReserves reports whether committing the plan withdraws from the
// strategic reserves, the trigger condition for oversight interception.
func (p TransactionPlan) TouchesReserves() bool {
	return p.FromReserves > 0
}

// Pending converts the plan's withdrawal magnitudes into the shape held by
// the pending-transaction buffer.
func (p TransactionPlan) Pending() PendingTransaction {
	return PendingTransaction{Cash: p.FromCash, Reserves: p.FromReserves}
}

func validatePlanInput(amount, allocationPercent int64) error {
	if amount < 0 {
		return fmt.Errorf("amount %d: %w", amount, ErrInvalidNumericInput)
	}
	if allocationPercent < 0 || allocationPercent > 100 {
		return fmt.Errorf("allocation %d: %w", allocationPercent, ErrInvalidNumericInput)
	}
	return nil
}

// allocate floors amount*percent/100; the remainder always stays on the
// non-floored side of the split, never silently dropped.
func allocate(amount, percent int64) int64 {
	return amount * percent / 100
}

// PlanExpenseSplit splits an expense between cash and reserves.
// allocationPercent is the reserve share.
func PlanExpenseSplit(amount, allocationPercent int64) (TransactionPlan, error) {
	if err := validatePlanInput(amount, allocationPercent); err != nil {
		return TransactionPlan{}, err
	}
	fromReserves := allocate(amount, allocationPercent)
	return TransactionPlan{
		Kind:         PlanExpense,
		FromCash:     amount - fromReserves,
		FromReserves: fromReserves,
		Stamp:        StampApproved,
	}, nil
}

// PlanDebtPaymentSplit pays amount from cash; only the principal share
// reduces debt. The interest share is destroyed, a one-way value sink.
func PlanDebtPaymentSplit(amount, allocationPercent int64) (TransactionPlan, error) {
	if err := validatePlanInput(amount, allocationPercent); err != nil {
		return TransactionPlan{}, err
	}
	interest := allocate(amount, allocationPercent)
	return TransactionPlan{
		Kind:        PlanDebtPayment,
		FromCash:    amount,
		DebtPaydown: amount - interest,
		Stamp:       StampApproved,
	}, nil
}

// PlanSupplyBaseCredit credits the entire supply amount to cash.
func PlanSupplyBaseCredit(amount int64) (TransactionPlan, error) {
	if err := validatePlanInput(amount, 0); err != nil {
		return TransactionPlan{}, err
	}
	return TransactionPlan{
		Kind:   PlanSupplyBase,
		ToCash: amount,
		Stamp:  StampApproved,
	}, nil
}

// PlanSupplyBonusSplit splits a bonus between reserves and debt paydown.
// allocationPercent is the debt share. The stamp distinguishes a full
// liquidation (100), a plain deposit (0), and a mixed allocation.
func PlanSupplyBonusSplit(amount, allocationPercent int64) (TransactionPlan, error) {
	if err := validatePlanInput(amount, allocationPercent); err != nil {
		return TransactionPlan{}, err
	}
	toDebt := allocate(amount, allocationPercent)
	stamp := StampAllocated
	switch allocationPercent {
	case 100:
		stamp = StampLiquidated
	case 0:
		stamp = StampApproved
	}
	return TransactionPlan{
		Kind:        PlanSupplyBonus,
		ToReserves:  amount - toDebt,
		DebtPaydown: toDebt,
		Stamp:       stamp,
	}, nil
}

// PlanBalanceTransferDecree moves cash into reserves. Irreversible: no
// inverse operation exists.
func PlanBalanceTransferDecree(amount int64) (TransactionPlan, error) {
	if err := validatePlanInput(amount, 0); err != nil {
		return TransactionPlan{}, err
	}
	return TransactionPlan{
		Kind:       PlanBalanceTransfer,
		FromCash:   amount,
		ToReserves: amount,
		Stamp:      StampApproved,
	}, nil
}

// PlanAttackDebtDecree spends reserves to pay down debt one-for-one. Debt
// floors at zero if smaller than the transfer.
func PlanAttackDebtDecree(amount int64) (TransactionPlan, error) {
	if err := validatePlanInput(amount, 0); err != nil {
		return TransactionPlan{}, err
	}
	return TransactionPlan{
		Kind:         PlanAttackDebt,
		FromReserves: amount,
		DebtPaydown:  amount,
		Stamp:        StampLiquidated,
	}, nil
}

// Affordable rejects any plan whose source withdrawals exceed the current
// balances. The whole transaction is rejected; there is no partial
// application. Debt paydown is a sink, not a source, and never fails.
func (p TransactionPlan) Affordable(r Resources) error {
	if p.FromCash > r.Cash {
		return fmt.Errorf("cash withdrawal %d exceeds balance %d: %w", p.FromCash, r.Cash, ErrInsufficientFunds)
	}
	if p.FromReserves > r.Reserves {
		return fmt.Errorf("reserve withdrawal %d exceeds balance %d: %w", p.FromReserves, r.Reserves, ErrInsufficientFunds)
	}
	return nil
}

// Commit applies the plan to the ledger. Affordability must have been
// checked already; clamping still guards the floor.
func (p TransactionPlan) Commit(r Resources) Resources {
	r.Cash = clampZero(r.Cash - p.FromCash + p.ToCash)
	r.Reserves = clampZero(r.Reserves - p.FromReserves + p.ToReserves)
	r.Debt = clampZero(r.Debt - p.DebtPaydown)
	return r
}
