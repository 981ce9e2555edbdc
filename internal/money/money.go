// Package money provides fixed-point monetary arithmetic in minor units
// (cents). Amounts never pass through binary floating point; percentage
// application rounds half-up at the cent boundary.
package money

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Money is an amount of currency expressed as an integer number of minor
// units (cents).
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// ErrSubCent is returned when a decimal value carries precision finer than
// one cent and cannot be represented exactly.
var ErrSubCent = errors.New("amount has sub-cent precision")

// FromCents returns the amount for the given number of minor units.
func FromCents(cents int64) Money {
	return Money(cents)
}

// FromDecimal converts a decimal major-unit value (e.g. "19.99") into Money.
// Values with more than two fractional digits are rejected rather than
// silently rounded.
func FromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, errors.Wrapf(ErrSubCent, "amount %s", d)
	}
	return Money(cents.IntPart()), nil
}

// Cents returns the amount as an integer number of minor units.
func (m Money) Cents() int64 {
	return int64(m)
}

// Decimal returns the amount in major units as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String renders the amount in major units with two fractional digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return m + other
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return m - other
}

// Min returns the smaller of m and other.
func (m Money) Min(other Money) Money {
	if other < m {
		return other
	}
	return m
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m > 0
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool {
	return m < other
}

// MulPercent applies a percentage to the amount and rounds the exact
// rational result half-up at the cent boundary: round(cents * percent / 100).
// The intermediate product stays in decimal space, so no precision is lost
// before the single rounding step. Round is half-away-from-zero, which for
// non-negative amounts equals half-up.
func (m Money) MulPercent(percent decimal.Decimal) Money {
	exact := decimal.NewFromInt(int64(m)).Mul(percent).Shift(-2)
	return Money(exact.Round(0).IntPart())
}
