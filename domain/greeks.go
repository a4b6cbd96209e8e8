package domain

import "github.com/shopspring/decimal"

// Greeks is the 5-tuple of option sensitivities consumed (never computed)
// by this engine.
type Greeks struct {
	Delta decimal.Decimal
	Gamma decimal.Decimal
	Vega  decimal.Decimal
	Theta decimal.Decimal
	Rho   decimal.Decimal
}

// Scale multiplies every component by factor (e.g. position size).
func (g Greeks) Scale(factor decimal.Decimal) Greeks {
	return Greeks{
		Delta: g.Delta.Mul(factor),
		Gamma: g.Gamma.Mul(factor),
		Vega:  g.Vega.Mul(factor),
		Theta: g.Theta.Mul(factor),
		Rho:   g.Rho.Mul(factor),
	}
}

// Add returns the componentwise sum of g and o.
func (g Greeks) Add(o Greeks) Greeks {
	return Greeks{
		Delta: g.Delta.Add(o.Delta),
		Gamma: g.Gamma.Add(o.Gamma),
		Vega:  g.Vega.Add(o.Vega),
		Theta: g.Theta.Add(o.Theta),
		Rho:   g.Rho.Add(o.Rho),
	}
}

var ZeroGreeks = Greeks{
	Delta: decimal.Zero,
	Gamma: decimal.Zero,
	Vega:  decimal.Zero,
	Theta: decimal.Zero,
	Rho:   decimal.Zero,
}
