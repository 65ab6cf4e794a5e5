// Package types provides common type aliases and utilities.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// CentPlaces is the precision money is rounded to when it leaves the engine
// (ledger postings, reported sums).
const CentPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	m, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return m, nil
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// FromUnits converts an integer count to a decimal factor.
func FromUnits(n int) Money {
	return decimal.NewFromInt(int64(n))
}

// AddPercent returns base increased by pct percent: base * (1 + pct/100).
func AddPercent(base Money, pct decimal.Decimal) Money {
	if pct.IsZero() {
		return base
	}
	return base.Mul(hundred.Add(pct)).Div(hundred)
}

// RoundCents rounds half away from zero to CentPlaces.
func RoundCents(m Money) Money {
	return m.Round(CentPlaces)
}
