// Package core provides money parsing and handling utilities.
//
// Amounts travel as decimal.Decimal with two fractional digits and are
// persisted as integer cents so balance updates stay exact in SQL.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for every amount.
const MoneyScale = 2

// MaxAmount is the exclusive upper bound for a single transaction amount.
// Its cents and any balance built from such amounts fit in int64.
var MaxAmount = decimal.New(1, 13)

// MaxBalanceCents bounds an account balance in either direction.
const MaxBalanceCents int64 = 1e17

// AmountInRange reports whether d, once rounded to cents, is a positive
// amount below MaxAmount.
func AmountInRange(d decimal.Decimal) bool {
	d = d.Round(MoneyScale)
	return d.IsPositive() && d.LessThan(MaxAmount)
}

// ParseAmount converts a user-supplied decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) separators and rounds
// half away from zero to two decimal places.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
//	ParseAmount("1e13")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !AmountInRange(d) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(MoneyScale), nil
}

// ToCents converts an amount to integer cents, rounding to two places.
// Callers keep d within AmountInRange; larger values do not fit in int64.
func ToCents(d decimal.Decimal) int64 {
	return d.Round(MoneyScale).Shift(MoneyScale).IntPart()
}

// FromCents converts stored cents back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -MoneyScale)
}
