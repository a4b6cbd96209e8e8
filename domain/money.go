package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a precise decimal representing currency. It never touches binary
// floating point: all arithmetic goes through shopspring/decimal so fills and
// VWAP updates don't accumulate rounding drift.
type Money struct {
	d decimal.Decimal
}

// NewMoney wraps a decimal as Money with no validation (negative amounts are
// legal, e.g. realized PnL or theta).
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// MoneyFromFloat builds Money from a float64, primarily for config defaults
// and test fixtures; never use this for values derived from fills.
func MoneyFromFloat(f float64) Money {
	return Money{d: decimal.NewFromFloat(f)}
}

// ParseMoney parses a decimal string exactly, preserving precision.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidValue, err)
	}
	return Money{d: d}, nil
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money      { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money      { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money             { return Money{d: m.d.Neg()} }
func (m Money) MulScalar(f decimal.Decimal) Money {
	return Money{d: m.d.Mul(f)}
}

func (m Money) Equal(o Money) bool              { return m.d.Equal(o.d) }
func (m Money) GreaterThan(o Money) bool        { return m.d.GreaterThan(o.d) }
func (m Money) GreaterThanOrEqual(o Money) bool  { return m.d.GreaterThanOrEqual(o.d) }
func (m Money) LessThan(o Money) bool           { return m.d.LessThan(o.d) }
func (m Money) LessThanOrEqual(o Money) bool     { return m.d.LessThanOrEqual(o.d) }
func (m Money) IsZero() bool                    { return m.d.IsZero() }
func (m Money) IsNegative() bool                { return m.d.IsNegative() }
func (m Money) IsPositive() bool                { return m.d.IsPositive() }

// String renders with exactly 4 fractional digits (rounded), matching the
// spec's precision floor for currency values.
func (m Money) String() string {
	return m.d.StringFixed(4)
}

// MarshalText/UnmarshalText round-trip bit-exactly through serialize/parse.
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.d.String()), nil
}

func (m *Money) UnmarshalText(text []byte) error {
	d, err := decimal.NewFromString(string(text))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidValue, err)
	}
	m.d = d
	return nil
}

var ZeroMoney = Money{d: decimal.Zero}
