package backtest

import (
	"github.com/shopspring/decimal"

	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/stops"
)

// PartialFillConfig controls whether and how a simulated fill is split.
type PartialFillConfig struct {
	Enabled           bool
	FillProbability   decimal.Decimal // drawn against a caller-supplied random source
	MinFillRatio      decimal.Decimal
}

// BarFillResult is the outcome of simulating one order against one candle.
type BarFillResult struct {
	Filled       bool
	FilledQty    domain.Quantity
	RemainingQty domain.Quantity
	FillPrice    domain.Money
	Commission   CommissionBreakdown
	Trigger      stops.TriggerKind
}

// SimulateFill resolves one order against one candle: trigger detection via
// stops.SimulateBar, slippage applied to the triggered level, commission
// computed on the filled notional, and, when partial fill is enabled and
// fillRatioDraw is below FillProbability, a split that fills MinFillRatio
// (capped at 1) of orderQty and reports the rest as RemainingQty. The split
// does not depend on time in force: SimulateFill takes no time-in-force
// argument and applies it to every order.
func SimulateFill(
	levels domain.StopLevels,
	candle stops.Candle,
	orderQty domain.Quantity,
	class InstrumentClass,
	side domain.Side,
	slippage SlippageModel,
	commission CommissionModel,
	priority stops.SameBarPriority,
	partial PartialFillConfig,
	fillRatioDraw decimal.Decimal, // caller-supplied random draw in [0,1]
) BarFillResult {
	trigger := stops.SimulateBar(levels, candle, priority)
	if trigger == stops.TriggerNone {
		return BarFillResult{Filled: false, RemainingQty: orderQty, Trigger: trigger}
	}

	reference := levels.StopLoss
	if trigger == stops.TriggerTakeProfit {
		reference = levels.TakeProfit
	}
	fillPrice := slippage.Apply(side, reference)

	fillQty := orderQty
	remaining := domain.ZeroQuantity
	if partial.Enabled && fillRatioDraw.LessThan(partial.FillProbability) {
		ratio := partial.MinFillRatio
		if ratio.GreaterThan(decimal.NewFromInt(1)) {
			ratio = decimal.NewFromInt(1)
		}
		fillQty = domain.NewQuantity(orderQty.Decimal().Mul(ratio))
		remaining = orderQty.Sub(fillQty)
	}

	notional := fillPrice.MulScalar(fillQty.Decimal())
	fees := commission.Compute(class, side, fillQty, notional)

	return BarFillResult{
		Filled:       true,
		FilledQty:    fillQty,
		RemainingQty: remaining,
		FillPrice:    fillPrice,
		Commission:   fees,
		Trigger:      trigger,
	}
}

// MultiLegResult is the outcome of an All-or-None multi-leg simulation.
type MultiLegResult struct {
	Filled bool
	Legs   []BarFillResult
}

// SimulateMultiLegAON fills every leg only if every leg individually would
// fill in the bar; otherwise none fill, per §4.6's All-or-None rule.
func SimulateMultiLegAON(legResults []BarFillResult) MultiLegResult {
	for _, r := range legResults {
		if !r.Filled {
			return MultiLegResult{Filled: false, Legs: legResults}
		}
	}
	return MultiLegResult{Filled: true, Legs: legResults}
}
