// Package core holds the domain values of the commune ledger: balances,
// snapshots, labor settings, and the pure transaction planner.
//
// This file parses user-entered amounts. Balances are whole RUB; there is
// no sub-ruble precision anywhere in the system.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts a user-entered string to a non-negative whole-RUB
// amount. Grouping spaces are tolerated ("12 500"). Empty input parses to
// zero, which callers treat as a no-op rather than a failure. Anything
// non-numeric or negative returns ErrInvalidNumericInput.
//
// Examples:
//
//	ParseAmount("600")    -> 600, nil
//	ParseAmount("")       -> 0, nil
//	ParseAmount("12 500") -> 12500, nil
//	ParseAmount("-5")     -> 0, ErrInvalidNumericInput
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.ReplaceAll(s, " ", "")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidNumericInput
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidNumericInput
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidNumericInput
	}
	return v, nil
}

// ParseAllocation parses a percentage in [0,100]. Empty input is zero.
func ParseAllocation(s string) (int64, error) {
	v, err := ParseAmount(s)
	if err != nil {
		return 0, err
	}
	if v > 100 {
		return 0, ErrInvalidNumericInput
	}
	return v, nil
}
