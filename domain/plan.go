package domain

import (
	"fmt"
	"time"
)

// Action is what a Decision instructs the Gateway to do.
type Action string

const (
	ActionBuy     Action = "BUY"
	ActionSell    Action = "SELL"
	ActionHold    Action = "HOLD"
	ActionClose   Action = "CLOSE"
	ActionNoTrade Action = "NO_TRADE"
)

// Direction is the resulting position direction a Decision targets.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionFlat  Direction = "FLAT"
)

// SizeUnit is the denomination of a Decision's size.
type SizeUnit string

const (
	UnitShares    SizeUnit = "SHARES"
	UnitContracts SizeUnit = "CONTRACTS"
	UnitDollars   SizeUnit = "DOLLARS"
	UnitPctEquity SizeUnit = "PCT_EQUITY"
)

// Size pairs a quantity with its denomination.
type Size struct {
	Quantity Quantity
	Unit     SizeUnit
}

// Decision is a single instruction within a DecisionPlan.
type Decision struct {
	DecisionID      DecisionId
	InstrumentID    InstrumentId
	Action          Action
	Direction       Direction
	Size            Size
	StopLossLevel   *Money
	TakeProfitLevel *Money
	LimitPrice      *Money
	Strategy        string
	Horizon         string
	Confidence      float64 // [0,1]
	Rationale       string
}

// Validate checks the universal shape constraints a Decision must satisfy
// regardless of the Risk Constraint Engine's policy-specific checks.
func (d Decision) Validate() error {
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.4f out of [0,1]", ErrInvalidValue, d.Confidence)
	}
	if d.Direction == DirectionFlat && (d.StopLossLevel != nil || d.TakeProfitLevel != nil) {
		return fmt.Errorf("%w: a flat decision may not carry stop/target levels", ErrInvalidValue)
	}
	return nil
}

// DecisionPlan is the strategy agent's externally-supplied unit of work.
type DecisionPlan struct {
	PlanID              PlanId
	CycleID             CycleId
	Timestamp           time.Time
	RiskManagerApproved bool
	CriticApproved      bool
	PlanRationale       string
	Decisions           []Decision
}

// IsExecutable reports whether both required approval flags are set and at
// least one decision is tradeable (its action is neither Hold nor NoTrade).
func (p DecisionPlan) IsExecutable() bool {
	if !p.RiskManagerApproved || !p.CriticApproved {
		return false
	}
	for _, d := range p.Decisions {
		if d.Action != ActionHold && d.Action != ActionNoTrade {
			return true
		}
	}
	return false
}

// Severity classifies a ConstraintViolation.
type Severity string

const (
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// ConstraintViolation is a single structured risk-check finding.
type ConstraintViolation struct {
	Code         string
	Severity     Severity
	Message      string
	InstrumentID *InstrumentId
	FieldPath    string
	Observed     string
	Limit        string
}

// ConstraintResult bundles all violations from one risk evaluation.
// Passed is true iff no Error-severity violation is present.
type ConstraintResult struct {
	Passed     bool
	Violations []ConstraintViolation
}

// Recompute derives Passed from Violations; call after building the slice.
func (r *ConstraintResult) Recompute() {
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			r.Passed = false
			return
		}
	}
	r.Passed = true
}

// FirstError returns the first Error-severity violation, if any.
func (r ConstraintResult) FirstError() (ConstraintViolation, bool) {
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			return v, true
		}
	}
	return ConstraintViolation{}, false
}

// PositionSnapshot is one entry of RiskContext.Positions.
type PositionSnapshot struct {
	Quantity       Quantity
	MarketValue    Money
	CostBasis      Money
	UnrealizedPnL  Money
	Greeks         *Greeks
}

// Exposure summarizes gross/net/long/short notional across the book.
type Exposure struct {
	Gross Money
	Net   Money
	Long  Money
	Short Money
}

// PdtStatus carries pattern-day-trader tracking state for the PDT constraint.
type PdtStatus struct {
	IsPatternDayTrader bool
	DayTradesUsed      int
}

// RiskContext is the read-model the Risk Constraint Engine validates against.
// Building it is the caller's responsibility; the engine never fetches it.
type RiskContext struct {
	Equity             Money
	BuyingPower         Money
	Exposure           Exposure
	Greeks             Greeks
	Positions          map[InstrumentId]PositionSnapshot
	PendingOrders      []OrderId
	PdtStatus          PdtStatus
	DayTradesRemaining int
	RecentSizeMedian   *Quantity // for the sizing-sanity check, optional
}

// RiskPolicy is a persistent entity carrying the numeric constraint limits
// used by the Risk Constraint Engine. Activation is mutually exclusive:
// exactly one policy is active at a time (enforced by the RiskPolicyStore).
type RiskPolicy struct {
	ID          string
	Name        string
	Active      bool
	Constraints ConstraintsConfig
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StopDenomination is the price space a MonitoredPosition's levels are in.
type StopDenomination string

const (
	DenominationUnderlyingPrice StopDenomination = "UNDERLYING_PRICE"
	DenominationOptionPrice     StopDenomination = "OPTION_PRICE"
)

// StopLevels carries the trigger prices for a MonitoredPosition.
type StopLevels struct {
	StopLoss     Money
	TakeProfit   Money
	EntryPrice   Money
	Direction    Direction
	Denomination StopDenomination
}

// Validate enforces the stop/target ordering invariant relative to direction.
func (l StopLevels) Validate() error {
	switch l.Direction {
	case DirectionLong:
		if !(l.StopLoss.LessThan(l.EntryPrice) && l.EntryPrice.LessThan(l.TakeProfit)) {
			return fmt.Errorf("%w: long position requires stop_loss < entry_price < take_profit", ErrInvalidValue)
		}
	case DirectionShort:
		if !(l.StopLoss.GreaterThan(l.EntryPrice) && l.EntryPrice.GreaterThan(l.TakeProfit)) {
			return fmt.Errorf("%w: short position requires stop_loss > entry_price > take_profit", ErrInvalidValue)
		}
	case DirectionFlat:
		return fmt.Errorf("%w: a flat position may never carry stop/target levels", ErrInvalidValue)
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidValue, l.Direction)
	}
	return nil
}

// MonitoredPosition is a stops/targets registration watched by the Stops Enforcer.
type MonitoredPosition struct {
	PositionID   string
	InstrumentID InstrumentId
	Levels       StopLevels
	Active       bool
}

// NewMonitoredPosition validates levels before registering.
func NewMonitoredPosition(positionID string, instrumentID InstrumentId, levels StopLevels) (*MonitoredPosition, error) {
	if err := levels.Validate(); err != nil {
		return nil, err
	}
	return &MonitoredPosition{
		PositionID:   positionID,
		InstrumentID: instrumentID,
		Levels:       levels,
		Active:       true,
	}, nil
}
