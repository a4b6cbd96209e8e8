package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the configurable ceiling on any single order's quantity.
// The spec names 100,000 as the default; callers needing a different ceiling
// should validate against their own RiskPolicy instead of relying on this.
var MaxQuantity = decimal.NewFromInt(100000)

// Quantity is a precise decimal representing a share or contract count. It
// may carry fractional decimal places (e.g. fractional shares).
type Quantity struct {
	d decimal.Decimal
}

func NewQuantity(d decimal.Decimal) Quantity {
	return Quantity{d: d}
}

func QuantityFromFloat(f float64) Quantity {
	return Quantity{d: decimal.NewFromFloat(f)}
}

func ParseQuantity(s string) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("%w: %s", ErrInvalidValue, err)
	}
	return Quantity{d: d}, nil
}

func (q Quantity) Decimal() decimal.Decimal { return q.d }

// ValidateForOrder enforces the spec invariant: strictly positive and at
// most MaxQuantity.
func (q Quantity) ValidateForOrder() error {
	if !q.d.IsPositive() {
		return fmt.Errorf("%w: quantity must be strictly positive, got %s", ErrInvalidValue, q.d)
	}
	if q.d.GreaterThan(MaxQuantity) {
		return fmt.Errorf("%w: quantity %s exceeds max %s", ErrInvalidValue, q.d, MaxQuantity)
	}
	return nil
}

func (q Quantity) Add(o Quantity) Quantity { return Quantity{d: q.d.Add(o.d)} }
func (q Quantity) Sub(o Quantity) Quantity { return Quantity{d: q.d.Sub(o.d)} }

func (q Quantity) Equal(o Quantity) bool             { return q.d.Equal(o.d) }
func (q Quantity) GreaterThan(o Quantity) bool       { return q.d.GreaterThan(o.d) }
func (q Quantity) GreaterThanOrEqual(o Quantity) bool { return q.d.GreaterThanOrEqual(o.d) }
func (q Quantity) LessThan(o Quantity) bool          { return q.d.LessThan(o.d) }
func (q Quantity) LessThanOrEqual(o Quantity) bool    { return q.d.LessThanOrEqual(o.d) }
func (q Quantity) IsZero() bool                      { return q.d.IsZero() }
func (q Quantity) IsPositive() bool                  { return q.d.IsPositive() }
func (q Quantity) IsNegative() bool                  { return q.d.IsNegative() }

func (q Quantity) String() string { return q.d.String() }

var ZeroQuantity = Quantity{d: decimal.Zero}
