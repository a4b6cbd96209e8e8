package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/ports"
	"github.com/marketstructure/execengine/risk"
	"github.com/marketstructure/execengine/stops"
)

// GatewayConfig carries the per-broker-call timeout and the risk limits used
// to validate every incoming plan.
type GatewayConfig struct {
	BrokerTimeout time.Duration // default 30s
	Limits        domain.ConstraintsConfig
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		BrokerTimeout: 30 * time.Second,
		Limits:        domain.DefaultConstraintsConfig(),
	}
}

// Gateway drives DecisionPlans through risk validation, broker submission,
// and lifecycle tracking. It never holds I/O inside an Order Aggregate's
// mutex-held sections; all broker calls happen outside aggregate methods.
type Gateway struct {
	mu sync.RWMutex

	cfg      GatewayConfig
	broker   ports.BrokerPort
	repo     ports.OrderRepository
	stopsEnf *stops.Enforcer

	quarantined bool

	// per-purpose partial-fill timeout thresholds, keyed by order purpose
	purposeTimeouts map[domain.OrderPurpose]time.Duration
}

func NewGateway(cfg GatewayConfig, broker ports.BrokerPort, repo ports.OrderRepository, stopsEnf *stops.Enforcer) *Gateway {
	return &Gateway{
		cfg:      cfg,
		broker:   broker,
		repo:     repo,
		stopsEnf: stopsEnf,
		purposeTimeouts: map[domain.OrderPurpose]time.Duration{
			domain.PurposeStopLoss:   5 * time.Second,
			domain.PurposeTakeProfit: 10 * time.Second,
			domain.PurposeExit:       15 * time.Second,
			domain.PurposeBracketLeg: 15 * time.Second,
			domain.PurposeScaleOut:   30 * time.Second,
			domain.PurposeEntry:      60 * time.Second,
			domain.PurposeScaleIn:    60 * time.Second,
		},
	}
}

// Quarantine puts the Gateway into a refuse-new-plans state, used when a
// FixInvariantViolation is detected (Open Question #4, resolved in DESIGN.md).
func (g *Gateway) Quarantine(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quarantined = true
	log.Error().Str("reason", reason).Msg("🛑 gateway entering quarantine, refusing new plans")
}

func (g *Gateway) IsQuarantined() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.quarantined
}

// SubmitPlan validates and submits every Decision in plan, returning an
// ExecutionAck that preserves the plan's decision order.
func (g *Gateway) SubmitPlan(ctx context.Context, plan domain.DecisionPlan, riskCtx domain.RiskContext, marks risk.ReferenceMarks) ExecutionAck {
	ack := ExecutionAck{PlanID: plan.PlanID}

	if g.IsQuarantined() {
		ack.Error = "QUARANTINED"
		return ack
	}
	if !plan.IsExecutable() {
		ack.Error = errPlanNotApproved
		return ack
	}

	result := risk.Validate(plan, riskCtx, marks, g.cfg.Limits)
	if !result.Passed {
		fallback, hasAny := result.FirstError()
		for _, d := range plan.Decisions {
			v, ok := firstMatchingViolation(result, d.InstrumentID)
			if !ok {
				if !hasAny {
					continue
				}
				v = fallback
			}
			ack.Rejected = append(ack.Rejected, RejectedDecision{DecisionID: d.DecisionID, Violation: v})
		}
		return ack
	}

	for _, d := range plan.Decisions {
		orderID, err := g.submitDecision(ctx, d)
		if err != nil {
			ack.Rejected = append(ack.Rejected, RejectedDecision{
				DecisionID: d.DecisionID,
				Violation: domain.ConstraintViolation{
					Code: "SUBMISSION_FAILED", Severity: domain.SeverityError, Message: err.Error(),
				},
			})
			continue
		}
		ack.Submitted = append(ack.Submitted, SubmittedOrder{DecisionID: d.DecisionID, OrderID: orderID})
	}

	return ack
}

// firstMatchingViolation returns the first Error-severity violation tied to
// instrumentID, so a rejected Decision carries the reason specific to it.
func firstMatchingViolation(result domain.ConstraintResult, instrumentID domain.InstrumentId) (domain.ConstraintViolation, bool) {
	for _, v := range result.Violations {
		if v.Severity == domain.SeverityError && v.InstrumentID != nil && *v.InstrumentID == instrumentID {
			return v, true
		}
	}
	return domain.ConstraintViolation{}, false
}

func (g *Gateway) submitDecision(ctx context.Context, d domain.Decision) (domain.OrderId, error) {
	order, err := g.buildOrder(d)
	if err != nil {
		return "", err
	}

	if err := g.repo.Save(ctx, order); err != nil {
		return "", fmt.Errorf("persist new order: %w", err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, g.cfg.BrokerTimeout)
	defer cancel()

	req := ports.SubmitOrderRequest{
		ClientOrderID: order.ID(),
		Symbol:        order.Symbol(),
		Side:          order.Side(),
		OrderType:     order.OrderType(),
		TimeInForce:   order.TimeInForce(),
		Quantity:      order.OrderQty(),
		LimitPrice:    order.LimitPrice(),
		StopPrice:     order.StopPrice(),
	}

	ackResp, err := g.broker.SubmitOrder(submitCtx, req)
	if err != nil {
		// Timeout or connection error: order remains New; reconciliation
		// will determine its true fate later (§5 cancellation/timeouts).
		return order.ID(), fmt.Errorf("broker submit: %w", err)
	}

	if err := order.Accept(ackResp.BrokerID); err != nil {
		return order.ID(), fmt.Errorf("accept broker ack: %w", err)
	}
	if err := g.repo.Save(ctx, order); err != nil {
		return order.ID(), fmt.Errorf("persist accepted order: %w", err)
	}

	if d.StopLossLevel != nil && d.TakeProfitLevel != nil {
		g.registerStops(order, d)
	}

	return order.ID(), nil
}

func (g *Gateway) buildOrder(d domain.Decision) (*domain.Order, error) {
	orderType := domain.OrderTypeMarket
	if d.LimitPrice != nil {
		orderType = domain.OrderTypeLimit
	}

	side := domain.SideBuy
	if d.Action == domain.ActionSell || d.Action == domain.ActionClose {
		side = domain.SideSell
	}

	sym, err := domain.NewSymbol(string(d.InstrumentID))
	if err != nil {
		return nil, fmt.Errorf("invalid instrument symbol: %w", err)
	}

	return domain.New(domain.Command{
		Symbol:      sym,
		Side:        side,
		OrderType:   orderType,
		TimeInForce: domain.TIFDay,
		Quantity:    d.Size.Quantity,
		LimitPrice:  d.LimitPrice,
		Purpose:     domain.PurposeEntry,
	})
}

func (g *Gateway) registerStops(order *domain.Order, d domain.Decision) {
	entry := order.AvgPx()
	if entry.IsZero() && order.LimitPrice() != nil {
		entry = *order.LimitPrice()
	}
	levels := domain.StopLevels{
		StopLoss:     *d.StopLossLevel,
		TakeProfit:   *d.TakeProfitLevel,
		EntryPrice:   entry,
		Direction:    d.Direction,
		Denomination: domain.DenominationUnderlyingPrice,
	}
	if order.Symbol().IsOption() {
		levels.Denomination = domain.DenominationOptionPrice
	}

	pos, err := domain.NewMonitoredPosition(order.ID().String(), d.InstrumentID, levels)
	if err != nil {
		log.Warn().Err(err).Str("order_id", order.ID().String()).Msg("⚠️ skipping stop registration: invalid levels")
		return
	}
	if _, err := g.stopsEnf.Register(order.Symbol(), pos); err != nil {
		log.Warn().Err(err).Str("order_id", order.ID().String()).Msg("⚠️ stop registration failed")
	}
}

// CancelOrder transitions the order to PendingCancel optimistically, then
// issues the broker cancel; on broker error the optimistic transition is not
// reverted (next reconciliation resolves it, per §5).
func (g *Gateway) CancelOrder(ctx context.Context, order *domain.Order, reason domain.CancelReason) error {
	if err := order.RequestCancel(); err != nil {
		return err
	}
	if err := g.repo.Save(ctx, order); err != nil {
		return fmt.Errorf("persist pending cancel: %w", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, g.cfg.BrokerTimeout)
	defer cancel()

	brokerID, hasBrokerID := order.BrokerOrderID()
	req := ports.CancelOrderRequest{ClientOrderID: order.ID()}
	if hasBrokerID {
		req.BrokerID = &brokerID
	}

	if err := g.broker.CancelOrder(cancelCtx, req); err != nil {
		return fmt.Errorf("broker cancel: %w", err)
	}

	if err := order.Cancel(reason); err != nil {
		return err
	}
	return g.repo.Save(ctx, order)
}

// OnBrokerEvent applies an inbound broker event idempotently: if the
// aggregate is already in a compatible terminal state, the event is a no-op.
func (g *Gateway) OnBrokerEvent(ctx context.Context, order *domain.Order, event BrokerEvent) error {
	switch event.Kind {
	case EventFill, EventPartialFill:
		if order.Status().IsTerminal() {
			return nil // idempotent: already resolved
		}
		if err := order.ApplyFill(event.Quantity, event.Price, event.Timestamp); err != nil {
			return fmt.Errorf("apply fill: %w", err)
		}
	case EventCanceled:
		if order.Status() == domain.StatusCanceled {
			return nil
		}
		if err := order.Cancel(domain.CancelMissingAtBroker); err != nil {
			return fmt.Errorf("apply cancel event: %w", err)
		}
	case EventRejected:
		if order.Status() == domain.StatusRejected {
			return nil
		}
		if err := order.Reject(domain.RejectBrokerRejected(event.Message)); err != nil {
			return fmt.Errorf("apply reject event: %w", err)
		}
	case EventExpired:
		if order.Status() == domain.StatusExpired {
			return nil
		}
		if err := order.Expire(); err != nil {
			return fmt.Errorf("apply expire event: %w", err)
		}
	default:
		return fmt.Errorf("unknown broker event kind %q", event.Kind)
	}

	return g.repo.Save(ctx, order)
}

// EventKind classifies an inbound broker event.
type EventKind string

const (
	EventFill        EventKind = "FILL"
	EventPartialFill EventKind = "PARTIAL_FILL"
	EventCanceled    EventKind = "CANCELED"
	EventRejected    EventKind = "REJECTED"
	EventExpired     EventKind = "EXPIRED"
)

// BrokerEvent is a normalized inbound event dispatched to an Order Aggregate.
type BrokerEvent struct {
	Kind      EventKind
	Quantity  domain.Quantity
	Price     domain.Money
	Message   string
	Timestamp time.Time
}
