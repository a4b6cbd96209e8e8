package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/ports"
)

// DiscrepancyKind classifies one diff finding.
type DiscrepancyKind string

const (
	DiscrepancyStatusDrift     DiscrepancyKind = "STATUS_DRIFT"
	DiscrepancyOrphanBroker    DiscrepancyKind = "ORPHAN_BROKER"
	DiscrepancyMissingAtBroker DiscrepancyKind = "MISSING_AT_BROKER"
	DiscrepancyPositionDrift   DiscrepancyKind = "POSITION_DRIFT"
	DiscrepancyPriceDrift      DiscrepancyKind = "PRICE_DRIFT"
	DiscrepancyCritical        DiscrepancyKind = "CRITICAL"
)

// Discrepancy is one finding from Diff.
type Discrepancy struct {
	Kind         DiscrepancyKind
	OrderID      *domain.OrderId
	BrokerID     *domain.BrokerId
	InstrumentID *domain.InstrumentId
	Detail       string
}

// Diff compares a broker snapshot against the local view and returns every
// discrepancy found, per spec.md §4.5's exact classification rules.
func Diff(snapshot BrokerStateSnapshot, localOrders []LocalOrderView, localPositions []LocalPositionView, cfg Config, now time.Time) []Discrepancy {
	var out []Discrepancy

	localByBroker := map[domain.BrokerId]LocalOrderView{}
	for _, lo := range localOrders {
		if lo.BrokerID != nil {
			localByBroker[*lo.BrokerID] = lo
		}
	}
	brokerByID := map[domain.BrokerId]BrokerOrderView{}
	for _, bo := range snapshot.Orders {
		brokerByID[bo.BrokerID] = bo
	}

	for _, bo := range snapshot.Orders {
		bid := bo.BrokerID
		lo, found := localByBroker[bid]
		if found {
			if lo.Status != bo.Status {
				out = append(out, Discrepancy{
					Kind: DiscrepancyStatusDrift, OrderID: &lo.OrderID, BrokerID: &bid,
					Detail: fmt.Sprintf("local=%s broker=%s", lo.Status, bo.Status),
				})
			}
			continue
		}
		age := now.Sub(bo.CreatedAt)
		if age < cfg.ProtectionWindow() {
			continue // may still be in-flight locally, ignore
		}
		out = append(out, Discrepancy{Kind: DiscrepancyOrphanBroker, BrokerID: &bid, Detail: "broker order has no local record"})
	}

	for _, lo := range localOrders {
		if lo.Status.IsTerminal() {
			continue
		}
		if lo.BrokerID == nil {
			continue // never acknowledged; not yet the broker's problem
		}
		if _, found := brokerByID[*lo.BrokerID]; !found {
			out = append(out, Discrepancy{Kind: DiscrepancyMissingAtBroker, OrderID: &lo.OrderID, BrokerID: lo.BrokerID, Detail: "local non-terminal order absent from broker"})
		}
	}

	localPosByInstrument := map[domain.InstrumentId]LocalPositionView{}
	for _, lp := range localPositions {
		localPosByInstrument[lp.InstrumentID] = lp
	}
	for _, bp := range snapshot.Positions {
		iid := bp.InstrumentID
		lp, found := localPosByInstrument[iid]
		if !found {
			continue
		}
		qtyDiff := bp.Quantity.Decimal().Sub(lp.Quantity.Decimal())
		if qtyDiff.IsNegative() {
			qtyDiff = qtyDiff.Neg()
		}
		if qtyDiff.GreaterThan(decimal.NewFromFloat(cfg.PositionQtyTolerance)) {
			out = append(out, Discrepancy{Kind: DiscrepancyPositionDrift, InstrumentID: &iid,
				Detail: fmt.Sprintf("local_qty=%s broker_qty=%s", lp.Quantity, bp.Quantity)})
		}
		if !lp.AvgPrice.IsZero() {
			priceDiffPct := bp.AvgPrice.Sub(lp.AvgPrice).Decimal().Div(lp.AvgPrice.Decimal())
			if priceDiffPct.IsNegative() {
				priceDiffPct = priceDiffPct.Neg()
			}
			if priceDiffPct.GreaterThan(decimal.NewFromFloat(cfg.PositionPriceTolerancePct)) {
				out = append(out, Discrepancy{Kind: DiscrepancyPriceDrift, InstrumentID: &iid,
					Detail: fmt.Sprintf("local_avg=%s broker_avg=%s", lp.AvgPrice, bp.AvgPrice)})
			}
		}
	}

	return out
}

// Reconciler owns the trigger schedule, resolution policy, and halt state.
type Reconciler struct {
	cfg       Config
	broker    ports.BrokerPort
	repo      ports.OrderRepository
	audit     ports.AuditLog
	notifier  Notifier
	halted    bool
}

// Notifier is the minimal alerting surface the Reconciler pushes to on a
// CRITICAL discrepancy under the Alert policy.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

func NewReconciler(cfg Config, broker ports.BrokerPort, repo ports.OrderRepository, audit ports.AuditLog, notifier Notifier) *Reconciler {
	return &Reconciler{cfg: cfg, broker: broker, repo: repo, audit: audit, notifier: notifier}
}

func (r *Reconciler) IsHalted() bool { return r.halted }

// Resolve applies the resolution policy for each discrepancy and returns the
// ones classified CRITICAL that still require operator attention.
func (r *Reconciler) Resolve(ctx context.Context, discrepancies []Discrepancy, now time.Time) ([]Discrepancy, error) {
	var critical []Discrepancy

	for _, d := range discrepancies {
		switch d.Kind {
		case DiscrepancyOrphanBroker:
			if r.cfg.AutoResolveOrphans {
				if err := r.audit.Append(ctx, ports.AuditRecord{Kind: string(d.Kind), Message: d.Detail, Timestamp: now.Unix()}); err != nil {
					return nil, fmt.Errorf("audit orphan: %w", err)
				}
				log.Info().Str("broker_id", brokerIDString(d.BrokerID)).Msg("📥 orphan broker order adopted into local state")
			}
		case DiscrepancyMissingAtBroker:
			order, err := r.repo.FindByID(ctx, *d.OrderID)
			if err == nil {
				_ = order.Cancel(domain.CancelMissingAtBroker)
				_ = r.repo.Save(ctx, order)
			}
			_ = r.audit.Append(ctx, ports.AuditRecord{Kind: string(d.Kind), OrderID: d.OrderID, Message: d.Detail, Timestamp: now.Unix()})
		case DiscrepancyStatusDrift, DiscrepancyPositionDrift, DiscrepancyPriceDrift:
			_ = r.audit.Append(ctx, ports.AuditRecord{Kind: string(d.Kind), OrderID: d.OrderID, Message: d.Detail, Timestamp: now.Unix()})
		case DiscrepancyCritical:
			critical = append(critical, d)
			if err := r.handleCritical(ctx, d, now); err != nil {
				return nil, err
			}
		}
	}
	return critical, nil
}

func (r *Reconciler) handleCritical(ctx context.Context, d Discrepancy, now time.Time) error {
	_ = r.audit.Append(ctx, ports.AuditRecord{Kind: "CRITICAL_" + string(d.Kind), Message: d.Detail, Timestamp: now.Unix()})

	switch r.cfg.OnCriticalDiscrepancy {
	case PolicyLogAndContinue:
		log.Error().Str("detail", d.Detail).Msg("🔴 critical discrepancy, continuing per policy")
	case PolicyAlert:
		log.Error().Str("detail", d.Detail).Msg("🔴 critical discrepancy, alerting")
		if r.notifier != nil {
			if err := r.notifier.Notify(ctx, "critical reconciliation discrepancy: "+d.Detail); err != nil {
				log.Warn().Err(err).Msg("failed to deliver critical discrepancy alert")
			}
		}
	default: // PolicyHalt, and any unrecognized value
		r.halted = true
		log.Error().Str("detail", d.Detail).Msg("🛑 critical discrepancy, halting plan submission")
	}
	return nil
}

func brokerIDString(id *domain.BrokerId) string {
	if id == nil {
		return ""
	}
	return id.String()
}
