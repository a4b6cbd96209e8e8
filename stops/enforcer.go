// Package stops implements the Stops/Targets Enforcer: bracket-order
// construction, price-monitoring registration and trigger checks, and the
// backtest same-bar-priority simulation.
package stops

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/ports"
)

// Config mirrors original_source/config/stops.rs with its exact defaults.
type Config struct {
	Enabled              bool
	SameBarPriority       SameBarPriority
	MonitoringIntervalMs  int
	UseBracketOrders      bool
	MinStopPct            decimal.Decimal
	MaxStopPct            decimal.Decimal
}

// DefaultConfig matches StopsConfigExternal's serde defaults exactly.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		SameBarPriority:      StopFirst,
		MonitoringIntervalMs: 100,
		UseBracketOrders:     true,
		MinStopPct:           decimal.NewFromFloat(0.001),
		MaxStopPct:           decimal.NewFromFloat(0.20),
	}
}

// IsEnabledForEnv returns c.Enabled for every environment; stops enforcement,
// unlike reconciliation, is not disabled in BACKTEST.
func (c Config) IsEnabledForEnv(_ string) bool {
	return c.Enabled
}

// SameBarPriority resolves simultaneous stop/target touches within one candle.
type SameBarPriority string

const (
	StopFirst    SameBarPriority = "stop_first"
	TargetFirst  SameBarPriority = "target_first"
	HighLowOrder SameBarPriority = "high_low_order"
)

// ParseSameBarPriority maps a config string to the enum, defaulting unknown
// values to StopFirst, matching to_stops_config()'s fallback.
func ParseSameBarPriority(s string) SameBarPriority {
	switch s {
	case string(TargetFirst):
		return TargetFirst
	case string(HighLowOrder):
		return HighLowOrder
	default:
		return StopFirst
	}
}

// TriggerKind is which level fired.
type TriggerKind string

const (
	TriggerNone       TriggerKind = "NONE"
	TriggerStopLoss   TriggerKind = "STOP_LOSS"
	TriggerTakeProfit TriggerKind = "TAKE_PROFIT"
)

// SupportsBracketOrders is the symbol-shape predicate from §4.4: equities
// support broker-native bracket orders, options (on Alpaca-family brokers) do not.
func SupportsBracketOrders(symbol domain.Symbol) bool {
	return !symbol.IsOption()
}

// ValidateBracketLevels enforces the ordering and stop-distance invariants
// required before submitting a three-leg bracket order.
func ValidateBracketLevels(direction domain.Direction, entry, stop, target domain.Money, cfg Config) error {
	if !stop.IsPositive() || !target.IsPositive() {
		return fmt.Errorf("%w: stop and target must be strictly positive", domain.ErrInvalidValue)
	}
	switch direction {
	case domain.DirectionLong:
		if !(stop.LessThan(entry) && entry.LessThan(target)) {
			return fmt.Errorf("%w: long bracket requires stop < entry < target", domain.ErrInvalidValue)
		}
	case domain.DirectionShort:
		if !(target.LessThan(entry) && entry.LessThan(stop)) {
			return fmt.Errorf("%w: short bracket requires target < entry < stop", domain.ErrInvalidValue)
		}
	default:
		return fmt.Errorf("%w: bracket orders require Long or Short direction", domain.ErrInvalidValue)
	}

	if entry.IsZero() {
		return fmt.Errorf("%w: entry price must be nonzero to compute stop distance", domain.ErrInvalidValue)
	}
	dist := stop.Sub(entry).Decimal()
	if dist.IsNegative() {
		dist = dist.Neg()
	}
	pct := dist.Div(entry.Decimal())
	if pct.LessThan(cfg.MinStopPct) || pct.GreaterThan(cfg.MaxStopPct) {
		return fmt.Errorf("%w: stop distance %s%% outside [%s%%, %s%%]",
			domain.ErrInvalidValue, pct.Mul(decimal.NewFromInt(100)), cfg.MinStopPct.Mul(decimal.NewFromInt(100)), cfg.MaxStopPct.Mul(decimal.NewFromInt(100)))
	}
	return nil
}

// CheckTrigger applies the price-monitoring trigger rules for one quote.
func CheckTrigger(levels domain.StopLevels, price domain.Money) TriggerKind {
	switch levels.Direction {
	case domain.DirectionLong:
		if price.LessThanOrEqual(levels.StopLoss) {
			return TriggerStopLoss
		}
		if price.GreaterThanOrEqual(levels.TakeProfit) {
			return TriggerTakeProfit
		}
	case domain.DirectionShort:
		if price.GreaterThanOrEqual(levels.StopLoss) {
			return TriggerStopLoss
		}
		if price.LessThanOrEqual(levels.TakeProfit) {
			return TriggerTakeProfit
		}
	}
	return TriggerNone
}

// CloseCallback is invoked when a monitored position's trigger fires; the
// caller (Gateway) is responsible for issuing the market close order.
type CloseCallback func(ctx context.Context, pos *domain.MonitoredPosition, trigger TriggerKind, price domain.Money)

// Enforcer owns the set of actively price-monitored positions. Bracket-method
// positions never enter this map; the broker owns their enforcement.
type Enforcer struct {
	mu       sync.RWMutex
	cfg      Config
	feed     ports.PriceFeedPort
	monitored map[string]*domain.MonitoredPosition
	onTrigger CloseCallback
}

func NewEnforcer(cfg Config, feed ports.PriceFeedPort, onTrigger CloseCallback) *Enforcer {
	return &Enforcer{
		cfg:       cfg,
		feed:      feed,
		monitored: make(map[string]*domain.MonitoredPosition),
		onTrigger: onTrigger,
	}
}

// Register selects a method for the position: bracket orders return
// (false, nil) meaning "the broker handles this, nothing to monitor"; price
// monitoring returns (true, nil) and the position is now tracked here.
func (e *Enforcer) Register(symbol domain.Symbol, pos *domain.MonitoredPosition) (monitoring bool, err error) {
	if !e.cfg.Enabled {
		return false, nil
	}
	if e.cfg.UseBracketOrders && SupportsBracketOrders(symbol) {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.monitored[pos.PositionID] = pos
	log.Debug().Str("position_id", pos.PositionID).Str("method", "price_monitoring").Msg("👀 stop/target registered")
	return true, nil
}

func (e *Enforcer) Deregister(positionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.monitored, positionID)
}

// OnQuote checks every monitored position for the quoted instrument and
// fires onTrigger for the first matching trigger, then deregisters it.
func (e *Enforcer) OnQuote(ctx context.Context, instrumentID domain.InstrumentId, price domain.Money) {
	e.mu.RLock()
	var fired []*domain.MonitoredPosition
	for _, pos := range e.monitored {
		if pos.InstrumentID != instrumentID || !pos.Active {
			continue
		}
		if trigger := CheckTrigger(pos.Levels, price); trigger != TriggerNone {
			fired = append(fired, pos)
			if e.onTrigger != nil {
				go e.onTrigger(ctx, pos, trigger, price)
			}
		}
	}
	e.mu.RUnlock()

	if len(fired) == 0 {
		return
	}
	e.mu.Lock()
	for _, pos := range fired {
		delete(e.monitored, pos.PositionID)
	}
	e.mu.Unlock()
}

func (e *Enforcer) MonitoredCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.monitored)
}
