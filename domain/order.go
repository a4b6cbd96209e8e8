package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// OrderStatus is the FIX-inspired lifecycle state of an Order Aggregate.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPendingNew      OrderStatus = "PENDING_NEW"
	StatusAccepted        OrderStatus = "ACCEPTED"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// IsTerminal reports whether no further transition is possible from this status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// validTransitions is the DAG from spec.md/SPEC_FULL.md §4.1. Ported 1:1 from
// original_source/domain/order_execution/services/order_state_machine.rs's
// is_valid_transition table.
var validTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusNew: {
		StatusPendingNew: true,
		StatusAccepted:   true,
		StatusRejected:   true,
		StatusCanceled:   true,
	},
	StatusPendingNew: {
		StatusAccepted: true,
		StatusRejected: true,
		StatusCanceled: true,
	},
	StatusAccepted: {
		StatusPartiallyFilled: true,
		StatusFilled:          true,
		StatusPendingCancel:   true,
		StatusCanceled:        true,
		StatusExpired:         true,
	},
	StatusPartiallyFilled: {
		StatusPartiallyFilled: true,
		StatusFilled:          true,
		StatusPendingCancel:   true,
		StatusCanceled:        true,
		StatusExpired:         true,
	},
	StatusPendingCancel: {
		StatusCanceled:        true,
		StatusFilled:          true,
		StatusPartiallyFilled: true,
	},
}

// isValidTransition checks the table above; terminal states allow nothing.
func isValidTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	return validTransitions[from][to]
}

// Side is the buy/sell direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the broker order type.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// TimeInForce is the broker time-in-force instruction.
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGtc TimeInForce = "GTC"
	TIFIoc TimeInForce = "IOC"
	TIFFok TimeInForce = "FOK"
	TIFOpg TimeInForce = "OPG"
	TIFCls TimeInForce = "CLS"
)

// OrderPurpose classifies why an order exists, driving the Gateway's
// per-purpose partial-fill timeout and the Stops Enforcer's method choice.
type OrderPurpose string

const (
	PurposeEntry      OrderPurpose = "ENTRY"
	PurposeExit       OrderPurpose = "EXIT"
	PurposeStopLoss   OrderPurpose = "STOP_LOSS"
	PurposeTakeProfit OrderPurpose = "TAKE_PROFIT"
	PurposeBracketLeg OrderPurpose = "BRACKET_LEG"
	PurposeScaleIn    OrderPurpose = "SCALE_IN"
	PurposeScaleOut   OrderPurpose = "SCALE_OUT"
)

// UrgencyLevel returns the partial-fill timeout priority for the purpose,
// StopLoss=10 (most urgent) down to ScaleIn=1, per spec.md §4.3.
func (p OrderPurpose) UrgencyLevel() int {
	switch p {
	case PurposeStopLoss:
		return 10
	case PurposeTakeProfit:
		return 8
	case PurposeExit:
		return 6
	case PurposeBracketLeg:
		return 5
	case PurposeScaleOut:
		return 3
	case PurposeEntry:
		return 2
	case PurposeScaleIn:
		return 1
	default:
		return 1
	}
}

// RejectReason is a structured (code, message) reason taxonomy for Reject,
// grounded on original_source/domain/order_execution/value_objects/reasons.rs.
type RejectReason struct {
	Code    string
	Message string
}

func NewRejectReason(code, message string) RejectReason {
	return RejectReason{Code: code, Message: message}
}

var (
	RejectBrokerRejected       = func(msg string) RejectReason { return NewRejectReason("BROKER_REJECTED", msg) }
	RejectInsufficientFunds    = NewRejectReason("INSUFFICIENT_FUNDS", "insufficient buying power")
	RejectRiskViolation        = func(msg string) RejectReason { return NewRejectReason("RISK_VIOLATION", msg) }
	RejectMultiLegPartialFail  = NewRejectReason("MULTI_LEG_PARTIAL_FAILURE", "one leg of a multi-leg order failed")
	RejectInvalidSymbol        = NewRejectReason("INVALID_SYMBOL", "symbol failed validation")
)

// CancelReason is a structured (code, message) reason taxonomy for Cancel.
type CancelReason struct {
	Code    string
	Message string
}

func NewCancelReason(code, message string) CancelReason {
	return CancelReason{Code: code, Message: message}
}

var (
	CancelUserRequested       = NewCancelReason("USER_REQUESTED", "cancel requested by caller")
	CancelPartialFillTimeout  = NewCancelReason("PARTIAL_FILL_TIMEOUT", "partial fill outstanding past purpose timeout")
	CancelMissingAtBroker     = NewCancelReason("MISSING_AT_BROKER", "order not found at broker during reconciliation")
	CancelDisconnectSafety    = NewCancelReason("DISCONNECT_SAFETY", "mass-cancelled after broker disconnect grace period")
)

// Fill is one execution against an order.
type Fill struct {
	Quantity  Quantity
	Price     Money
	Timestamp time.Time
}

// OrderLine tracks one leg of a multi-leg (spread) order independently.
type OrderLine struct {
	Symbol       Symbol
	Side         Side
	Quantity     Quantity
	FilledQty    Quantity
	AvgPrice     Money
	Status       OrderStatus
}

// Command is the input to New(); it captures everything immutable after creation.
type Command struct {
	Symbol      Symbol
	Side        Side
	OrderType   OrderType
	TimeInForce TimeInForce
	Quantity    Quantity
	LimitPrice  *Money
	StopPrice   *Money
	Purpose     OrderPurpose
	Legs        []OrderLine
}

// Order is the central aggregate: a FIX-inspired order state machine with
// partial-fill arithmetic. All mutation goes through its methods so the core
// invariant (OrderQty == cum_qty + leaves_qty) is re-checked on every write.
type Order struct {
	mu sync.Mutex

	id            OrderId
	brokerOrderID *BrokerId
	symbol        Symbol
	side          Side
	orderType     OrderType
	timeInForce   TimeInForce
	orderQty      Quantity
	limitPrice    *Money
	stopPrice     *Money
	purpose       OrderPurpose
	status        OrderStatus

	cumQty    Quantity
	leavesQty Quantity
	avgPx     Money
	fills     []Fill

	legs []OrderLine

	rejectReason *RejectReason
	cancelReason *CancelReason

	createdAt time.Time
	updatedAt time.Time
}

// New constructs an order in status New, validating required fields.
func New(cmd Command) (*Order, error) {
	if err := cmd.Quantity.ValidateForOrder(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, err)
	}
	if (cmd.OrderType == OrderTypeLimit || cmd.OrderType == OrderTypeStopLimit) && cmd.LimitPrice == nil {
		return nil, fmt.Errorf("%w: limit_price required for %s order", ErrInvalidValue, cmd.OrderType)
	}
	if (cmd.OrderType == OrderTypeStop || cmd.OrderType == OrderTypeStopLimit) && cmd.StopPrice == nil {
		return nil, fmt.Errorf("%w: stop_price required for %s order", ErrInvalidValue, cmd.OrderType)
	}

	now := time.Now()
	o := &Order{
		id:          NewOrderId(),
		symbol:      cmd.Symbol,
		side:        cmd.Side,
		orderType:   cmd.OrderType,
		timeInForce: cmd.TimeInForce,
		orderQty:    cmd.Quantity,
		limitPrice:  cmd.LimitPrice,
		stopPrice:   cmd.StopPrice,
		purpose:     cmd.Purpose,
		status:      StatusNew,
		cumQty:      ZeroQuantity,
		leavesQty:   cmd.Quantity,
		avgPx:       ZeroMoney,
		legs:        cmd.Legs,
		createdAt:   now,
		updatedAt:   now,
	}

	log.Debug().
		Str("order_id", o.id.String()).
		Str("symbol", o.symbol.String()).
		Str("side", string(o.side)).
		Str("qty", o.orderQty.String()).
		Msg("📝 order created")

	return o, nil
}

func (o *Order) ID() OrderId                   { return o.id }
func (o *Order) Symbol() Symbol                { return o.symbol }
func (o *Order) Side() Side                    { return o.side }
func (o *Order) OrderType() OrderType          { return o.orderType }
func (o *Order) TimeInForce() TimeInForce      { return o.timeInForce }
func (o *Order) OrderQty() Quantity            { return o.orderQty }
func (o *Order) LimitPrice() *Money            { return o.limitPrice }
func (o *Order) StopPrice() *Money             { return o.stopPrice }
func (o *Order) Purpose() OrderPurpose         { return o.purpose }
func (o *Order) Legs() []OrderLine             { return o.legs }
func (o *Order) CreatedAt() time.Time          { return o.createdAt }
func (o *Order) UpdatedAt() time.Time          { return o.updatedAt }

func (o *Order) Status() OrderStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Order) BrokerOrderID() (BrokerId, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.brokerOrderID == nil {
		return "", false
	}
	return *o.brokerOrderID, true
}

func (o *Order) CumQty() Quantity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cumQty
}

func (o *Order) LeavesQty() Quantity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.leavesQty
}

func (o *Order) AvgPx() Money {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.avgPx
}

func (o *Order) Fills() []Fill {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Fill, len(o.fills))
	copy(out, o.fills)
	return out
}

// Snapshot is the flat, serializable view of an Order used by persistence
// adapters. It round-trips through Hydrate without re-running New's
// construction-time validation, since a persisted order is already valid.
type Snapshot struct {
	ID            OrderId
	BrokerOrderID *BrokerId
	Symbol        Symbol
	Side          Side
	OrderType     OrderType
	TimeInForce   TimeInForce
	OrderQty      Quantity
	LimitPrice    *Money
	StopPrice     *Money
	Purpose       OrderPurpose
	Status        OrderStatus
	CumQty        Quantity
	LeavesQty     Quantity
	AvgPx         Money
	Fills         []Fill
	Legs          []OrderLine
	RejectReason  *RejectReason
	CancelReason  *CancelReason
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot captures the order's current state for persistence.
func (o *Order) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	fills := make([]Fill, len(o.fills))
	copy(fills, o.fills)
	legs := make([]OrderLine, len(o.legs))
	copy(legs, o.legs)
	return Snapshot{
		ID: o.id, BrokerOrderID: o.brokerOrderID, Symbol: o.symbol, Side: o.side,
		OrderType: o.orderType, TimeInForce: o.timeInForce, OrderQty: o.orderQty,
		LimitPrice: o.limitPrice, StopPrice: o.stopPrice, Purpose: o.purpose, Status: o.status,
		CumQty: o.cumQty, LeavesQty: o.leavesQty, AvgPx: o.avgPx, Fills: fills, Legs: legs,
		RejectReason: o.rejectReason, CancelReason: o.cancelReason,
		CreatedAt: o.createdAt, UpdatedAt: o.updatedAt,
	}
}

// Hydrate reconstructs an Order from a previously captured Snapshot, for
// repository adapters loading persisted state. It bypasses New's validation
// since the snapshot is assumed to already satisfy every invariant.
func Hydrate(s Snapshot) *Order {
	return &Order{
		id: s.ID, brokerOrderID: s.BrokerOrderID, symbol: s.Symbol, side: s.Side,
		orderType: s.OrderType, timeInForce: s.TimeInForce, orderQty: s.OrderQty,
		limitPrice: s.LimitPrice, stopPrice: s.StopPrice, purpose: s.Purpose, status: s.Status,
		cumQty: s.CumQty, leavesQty: s.LeavesQty, avgPx: s.AvgPx, fills: s.Fills, legs: s.Legs,
		rejectReason: s.RejectReason, cancelReason: s.CancelReason,
		createdAt: s.CreatedAt, updatedAt: s.UpdatedAt,
	}
}

// checkInvariant re-verifies OrderQty == cum_qty + leaves_qty. A violation is
// a fatal programmer error (FixInvariantViolation), never a recoverable one.
func (o *Order) checkInvariant() error {
	sum := o.cumQty.Add(o.leavesQty)
	if !sum.Equal(o.orderQty) {
		return fmt.Errorf("%w: order_qty=%s cum_qty=%s leaves_qty=%s",
			ErrFixInvariantViolation, o.orderQty, o.cumQty, o.leavesQty)
	}
	return nil
}

func (o *Order) transition(to OrderStatus) error {
	if !isValidTransition(o.status, to) {
		return &InvalidStateTransitionError{From: o.status, To: to}
	}
	o.status = to
	o.updatedAt = time.Now()
	return nil
}

// Accept moves New/PendingNew to Accepted. Idempotent on the same broker_id;
// fails if a different broker_id arrives for an already-accepted order.
func (o *Order) Accept(brokerID BrokerId) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.brokerOrderID != nil {
		if *o.brokerOrderID == brokerID {
			return nil // idempotent
		}
		return &AcceptConflictError{Existing: o.brokerOrderID.String(), Incoming: brokerID.String()}
	}

	if err := o.transition(StatusAccepted); err != nil {
		var ist *InvalidStateTransitionError
		if isTerminalTransitionErr(err, &ist) && o.status == StatusAccepted {
			return nil
		}
		return err
	}
	o.brokerOrderID = &brokerID

	log.Info().Str("order_id", o.id.String()).Str("broker_id", brokerID.String()).Msg("✅ order accepted")
	return nil
}

// isTerminalTransitionErr is a helper for idempotency checks against an
// already-applied transition (as opposed to a genuinely invalid one).
func isTerminalTransitionErr(err error, target **InvalidStateTransitionError) bool {
	ist, ok := err.(*InvalidStateTransitionError)
	if ok {
		*target = ist
	}
	return ok
}

// Reject transitions the order to Rejected, carrying a structured reason.
func (o *Order) Reject(reason RejectReason) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status == StatusRejected {
		return nil // idempotent on already-rejected
	}
	if err := o.transition(StatusRejected); err != nil {
		return err
	}
	o.rejectReason = &reason

	log.Warn().Str("order_id", o.id.String()).Str("reason_code", reason.Code).Msg("❌ order rejected")
	return nil
}

func (o *Order) RejectReason() (RejectReason, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rejectReason == nil {
		return RejectReason{}, false
	}
	return *o.rejectReason, true
}

// ApplyFill applies a fill, recomputing avg_px/cum_qty/leaves_qty and
// transitioning to Filled or PartiallyFilled. Fails with FillExceedsRemaining
// if quantity > leaves_qty; fatal FixInvariantViolation if the core invariant
// does not hold after mutation.
func (o *Order) ApplyFill(quantity Quantity, price Money, timestamp time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.status {
	case StatusAccepted, StatusPartiallyFilled, StatusPendingCancel:
		// ok
	default:
		return &CannotFillError{Status: o.status}
	}

	if quantity.GreaterThan(o.leavesQty) {
		return &FillExceedsRemainingError{Fill: quantity.String(), Leaves: o.leavesQty.String()}
	}

	cumBefore := o.cumQty
	avgBefore := o.avgPx

	numerator := avgBefore.Decimal().Mul(cumBefore.Decimal()).Add(price.Decimal().Mul(quantity.Decimal()))
	newCum := cumBefore.Add(quantity)

	var newAvg Money
	if newCum.IsZero() {
		newAvg = ZeroMoney
	} else {
		newAvg = NewMoney(numerator.Div(newCum.Decimal()))
	}

	o.cumQty = newCum
	o.leavesQty = o.orderQty.Sub(newCum)
	o.avgPx = newAvg
	o.fills = append(o.fills, Fill{Quantity: quantity, Price: price, Timestamp: timestamp})

	if err := o.checkInvariant(); err != nil {
		// Fatal: caller must quarantine, never silently swallow.
		return err
	}

	var target OrderStatus
	if o.leavesQty.IsZero() {
		target = StatusFilled
	} else {
		target = StatusPartiallyFilled
	}
	if err := o.transition(target); err != nil {
		return err
	}

	log.Info().
		Str("order_id", o.id.String()).
		Str("fill_qty", quantity.String()).
		Str("fill_price", price.String()).
		Str("cum_qty", o.cumQty.String()).
		Str("leaves_qty", o.leavesQty.String()).
		Str("status", string(o.status)).
		Msg("💰 fill applied")

	return nil
}

// Cancel transitions to Canceled from any cancelable non-terminal state.
// Idempotent on an already-terminal order: returns nil without error.
func (o *Order) Cancel(reason CancelReason) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status.IsTerminal() {
		return nil // idempotent per spec's round-trip law
	}

	switch o.status {
	case StatusNew, StatusPendingNew, StatusAccepted, StatusPartiallyFilled, StatusPendingCancel:
		// ok
	default:
		return &CannotCancelError{Status: o.status}
	}

	if err := o.transition(StatusCanceled); err != nil {
		return err
	}
	o.cancelReason = &reason

	log.Info().Str("order_id", o.id.String()).Str("reason_code", reason.Code).Msg("🚫 order canceled")
	return nil
}

func (o *Order) CancelReason() (CancelReason, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancelReason == nil {
		return CancelReason{}, false
	}
	return *o.cancelReason, true
}

// RequestCancel transitions an order into PendingCancel optimistically
// (used by the Gateway before the broker has acknowledged the cancel).
func (o *Order) RequestCancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status.IsTerminal() {
		return nil
	}
	return o.transition(StatusPendingCancel)
}

// Expire transitions a Day order to Expired at session close.
func (o *Order) Expire() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status.IsTerminal() {
		return nil
	}
	return o.transition(StatusExpired)
}

// CannotCancelError carries the status that refused the cancel.
type CannotCancelError struct {
	Status OrderStatus
}

func (e *CannotCancelError) Error() string {
	return fmt.Sprintf("cannot cancel: order is %s", e.Status)
}

// AggregateLegStatus computes the aggregate status across all legs for a
// multi-leg order: Filled iff every leg is Filled, PartiallyFilled if any
// leg has any fill but not all are full.
func AggregateLegStatus(legs []OrderLine) OrderStatus {
	if len(legs) == 0 {
		return StatusNew
	}
	allFilled := true
	anyFilled := false
	for _, leg := range legs {
		if leg.Status == StatusFilled {
			anyFilled = true
			continue
		}
		allFilled = false
		if leg.FilledQty.IsPositive() {
			anyFilled = true
		}
	}
	if allFilled {
		return StatusFilled
	}
	if anyFilled {
		return StatusPartiallyFilled
	}
	return StatusNew
}
