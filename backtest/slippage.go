// Package backtest implements the Backtest Fill Engine: slippage and
// commission models, same-bar trigger-aware fill simulation, and a bounded
// parallel grid search over a parameter space.
package backtest

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/marketstructure/execengine/domain"
)

// SlippageModel adjusts a reference price to a simulated fill price.
type SlippageModel interface {
	Apply(side domain.Side, reference domain.Money) domain.Money
}

// FixedBps applies a constant basis-point adjustment, asymmetric for entry
// vs exit per spec.md §4.6.
type FixedBps struct {
	EntryBps decimal.Decimal
	ExitBps  decimal.Decimal
}

func (m FixedBps) Apply(side domain.Side, reference domain.Money) domain.Money {
	bps := m.EntryBps
	if side == domain.SideSell {
		bps = m.ExitBps
	}
	adjustment := bps.Div(decimal.NewFromInt(10000))
	factor := decimal.NewFromInt(1).Add(adjustment)
	if side == domain.SideSell {
		factor = decimal.NewFromInt(1).Sub(adjustment)
	}
	return reference.MulScalar(factor)
}

// SpreadBased fills at a point between mid and the far side of the spread,
// controlled by f in [0,1].
type SpreadBased struct {
	Bid domain.Money
	Ask domain.Money
	F   decimal.Decimal
}

func (m SpreadBased) Apply(side domain.Side, _ domain.Money) domain.Money {
	mid := m.Bid.Add(m.Ask).MulScalar(decimal.NewFromFloat(0.5))
	if side == domain.SideBuy {
		return mid.Add(m.Ask.Sub(mid).MulScalar(m.F))
	}
	return mid.Sub(mid.Sub(m.Bid).MulScalar(m.F))
}

// VolumeImpact models price impact as a power-law function of participation
// rate: impact = coeff * (order_size / avg_volume)^exponent.
type VolumeImpact struct {
	Coefficient decimal.Decimal
	Exponent    float64
	OrderSize   domain.Quantity
	AvgVolume   domain.Quantity
}

func (m VolumeImpact) Apply(side domain.Side, reference domain.Money) domain.Money {
	if m.AvgVolume.IsZero() {
		return reference
	}
	participation, _ := m.OrderSize.Decimal().Div(m.AvgVolume.Decimal()).Float64()
	impact := math.Pow(participation, m.Exponent)
	impactDecimal := m.Coefficient.Mul(decimal.NewFromFloat(impact))

	factor := decimal.NewFromInt(1).Add(impactDecimal)
	if side == domain.SideSell {
		factor = decimal.NewFromInt(1).Sub(impactDecimal)
	}
	return reference.MulScalar(factor)
}
