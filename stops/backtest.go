package stops

import "github.com/marketstructure/execengine/domain"

// Candle is one OHLCV bar used by the backtest same-bar-priority simulation.
type Candle struct {
	Open, High, Low, Close domain.Money
}

// SimulateBar determines which level (if any) triggers within one candle for
// a Long or Short position, resolving simultaneous touches per cfg.SameBarPriority.
func SimulateBar(levels domain.StopLevels, candle Candle, priority SameBarPriority) TriggerKind {
	stopTouched, targetTouched := touchedLevels(levels, candle)

	switch {
	case !stopTouched && !targetTouched:
		return TriggerNone
	case stopTouched && !targetTouched:
		return TriggerStopLoss
	case !stopTouched && targetTouched:
		return TriggerTakeProfit
	}

	// Both touched in the same bar: resolve per priority.
	switch priority {
	case TargetFirst:
		return TriggerTakeProfit
	case HighLowOrder:
		return highLowOrderResolve(levels, candle)
	default: // StopFirst, and any unrecognized value
		return TriggerStopLoss
	}
}

func touchedLevels(levels domain.StopLevels, candle Candle) (stopTouched, targetTouched bool) {
	switch levels.Direction {
	case domain.DirectionLong:
		stopTouched = candle.Low.LessThanOrEqual(levels.StopLoss)
		targetTouched = candle.High.GreaterThanOrEqual(levels.TakeProfit)
	case domain.DirectionShort:
		stopTouched = candle.High.GreaterThanOrEqual(levels.StopLoss)
		targetTouched = candle.Low.LessThanOrEqual(levels.TakeProfit)
	}
	return
}

// highLowOrderResolve determines bar traversal from candle direction: if
// close >= open the bar is assumed to travel open -> low -> high -> close
// (stop-first for a long, since low is visited before high); otherwise
// open -> high -> low -> close (target-first for a long). Symmetric for shorts.
func highLowOrderResolve(levels domain.StopLevels, candle Candle) TriggerKind {
	risingBar := candle.Close.GreaterThanOrEqual(candle.Open)

	switch levels.Direction {
	case domain.DirectionLong:
		if risingBar {
			return TriggerStopLoss // low visited before high
		}
		return TriggerTakeProfit // high visited before low
	case domain.DirectionShort:
		if risingBar {
			return TriggerTakeProfit
		}
		return TriggerStopLoss
	default:
		return TriggerStopLoss
	}
}
