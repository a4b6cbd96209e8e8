package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/ports"
)

type fakeAudit struct {
	records []ports.AuditRecord
}

func (a *fakeAudit) Append(ctx context.Context, r ports.AuditRecord) error {
	a.records = append(a.records, r)
	return nil
}
func (a *fakeAudit) Recent(ctx context.Context, limit int) ([]ports.AuditRecord, error) {
	return a.records, nil
}

type fakeRepo struct {
	orders map[domain.OrderId]*domain.Order
}

func (r *fakeRepo) Save(ctx context.Context, order *domain.Order) error {
	r.orders[order.ID()] = order
	return nil
}
func (r *fakeRepo) FindByID(ctx context.Context, id domain.OrderId) (*domain.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o, nil
}
func (r *fakeRepo) FindByBrokerID(ctx context.Context, id domain.BrokerId) (*domain.Order, error) {
	return nil, domain.ErrNotFound
}
func (r *fakeRepo) FindOpen(ctx context.Context) ([]*domain.Order, error) { return nil, nil }
func (r *fakeRepo) Delete(ctx context.Context, id domain.OrderId) error   { return nil }

// Scenario E — Reconciliation orphan adoption.
func TestDiffClassifiesOrphanBroker(t *testing.T) {
	now := time.Now()
	snapshot := BrokerStateSnapshot{
		FetchedAt: now,
		Orders: []BrokerOrderView{
			{
				BrokerID:  domain.BrokerIdFromString("X"),
				Symbol:    mustSymbol(t, "MSFT"),
				Status:    domain.StatusFilled,
				Quantity:  domain.QuantityFromFloat(50),
				CreatedAt: now.Add(-30 * time.Minute),
			},
		},
	}
	cfg := DefaultConfig() // protection_window_secs=1800

	discrepancies := Diff(snapshot, nil, nil, cfg, now)

	if len(discrepancies) != 1 {
		t.Fatalf("expected 1 discrepancy, got %+v", discrepancies)
	}
	if discrepancies[0].Kind != DiscrepancyOrphanBroker {
		t.Fatalf("expected ORPHAN_BROKER, got %s", discrepancies[0].Kind)
	}
}

func TestDiffIgnoresRecentBrokerOnlyOrder(t *testing.T) {
	now := time.Now()
	snapshot := BrokerStateSnapshot{
		FetchedAt: now,
		Orders: []BrokerOrderView{
			{BrokerID: domain.BrokerIdFromString("Y"), Status: domain.StatusAccepted, CreatedAt: now.Add(-5 * time.Minute)},
		},
	}
	cfg := DefaultConfig()
	discrepancies := Diff(snapshot, nil, nil, cfg, now)
	if len(discrepancies) != 0 {
		t.Fatalf("expected no discrepancies for an order still inside the protection window, got %+v", discrepancies)
	}
}

func TestResolveAdoptsOrphan(t *testing.T) {
	audit := &fakeAudit{}
	repo := &fakeRepo{orders: map[domain.OrderId]*domain.Order{}}
	r := NewReconciler(DefaultConfig(), nil, repo, audit, nil)

	bid := domain.BrokerIdFromString("X")
	discrepancies := []Discrepancy{{Kind: DiscrepancyOrphanBroker, BrokerID: &bid, Detail: "broker order has no local record"}}

	critical, err := r.Resolve(context.Background(), discrepancies, time.Now())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(critical) != 0 {
		t.Fatalf("expected no critical discrepancies, got %+v", critical)
	}
	if len(audit.records) != 1 {
		t.Fatalf("expected an audit record for the adopted orphan, got %d", len(audit.records))
	}
}

func TestResolveHaltsOnCriticalByDefault(t *testing.T) {
	audit := &fakeAudit{}
	repo := &fakeRepo{orders: map[domain.OrderId]*domain.Order{}}
	r := NewReconciler(DefaultConfig(), nil, repo, audit, nil)

	critical, err := r.Resolve(context.Background(), []Discrepancy{{Kind: DiscrepancyCritical, Detail: "unrecoverable state"}}, time.Now())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(critical) != 1 {
		t.Fatalf("expected 1 critical discrepancy returned, got %d", len(critical))
	}
	if !r.IsHalted() {
		t.Fatal("expected reconciler to halt on a CRITICAL discrepancy under the default Halt policy")
	}
}

func mustSymbol(t *testing.T, s string) domain.Symbol {
	t.Helper()
	sym, err := domain.NewSymbol(s)
	if err != nil {
		t.Fatalf("NewSymbol(%q): %v", s, err)
	}
	return sym
}
