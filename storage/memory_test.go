package storage

import (
	"context"
	"testing"
	"time"

	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/ports"
)

var (
	_ ports.OrderRepository = (*MemoryOrderRepository)(nil)
	_ ports.RiskPolicyStore = (*MemoryPolicyStore)(nil)
	_ ports.AuditLog        = (*MemoryAuditLog)(nil)
	_ ports.OrderRepository = (*GormOrderRepository)(nil)
	_ ports.RiskPolicyStore = (*GormPolicyStore)(nil)
	_ ports.AuditLog        = (*PostgresAuditLog)(nil)
)

func newTestOrder(t *testing.T) *domain.Order {
	t.Helper()
	symbol, err := domain.NewSymbol("AAPL")
	if err != nil {
		t.Fatal(err)
	}
	limit := domain.MoneyFromFloat(150)
	order, err := domain.New(domain.Command{
		Symbol: symbol, Side: domain.SideBuy, OrderType: domain.OrderTypeLimit,
		TimeInForce: domain.TIFDay, Quantity: domain.QuantityFromFloat(10), LimitPrice: &limit,
	})
	if err != nil {
		t.Fatal(err)
	}
	return order
}

func TestMemoryOrderRepositorySaveAndFind(t *testing.T) {
	repo := NewMemoryOrderRepository()
	order := newTestOrder(t)
	ctx := context.Background()

	if err := repo.Save(ctx, order); err != nil {
		t.Fatal(err)
	}
	got, err := repo.FindByID(ctx, order.ID())
	if err != nil {
		t.Fatal(err)
	}
	if got.ID() != order.ID() {
		t.Fatal("expected to find the saved order by id")
	}

	if err := order.Accept(domain.BrokerIdFromString("b1")); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, order); err != nil {
		t.Fatal(err)
	}
	byBroker, err := repo.FindByBrokerID(ctx, domain.BrokerIdFromString("b1"))
	if err != nil {
		t.Fatal(err)
	}
	if byBroker.ID() != order.ID() {
		t.Fatal("expected to find the order by its broker id after accept")
	}
}

func TestMemoryOrderRepositoryFindOpenExcludesTerminal(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()

	open := newTestOrder(t)
	terminal := newTestOrder(t)
	if err := terminal.Reject(domain.RejectInsufficientFunds); err != nil {
		t.Fatal(err)
	}

	_ = repo.Save(ctx, open)
	_ = repo.Save(ctx, terminal)

	openOrders, err := repo.FindOpen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(openOrders) != 1 || openOrders[0].ID() != open.ID() {
		t.Fatalf("expected only the non-terminal order, got %d results", len(openOrders))
	}
}

func TestMemoryPolicyStoreActivateDeactivatesOthers(t *testing.T) {
	store := NewMemoryPolicyStore()
	ctx := context.Background()
	now := time.Now()

	a := domain.RiskPolicy{ID: "a", Name: "A", Active: true, Constraints: domain.DefaultConstraintsConfig(), CreatedAt: now, UpdatedAt: now}
	b := domain.RiskPolicy{ID: "b", Name: "B", Active: false, Constraints: domain.DefaultConstraintsConfig(), CreatedAt: now, UpdatedAt: now}
	_ = store.Create(ctx, a)
	_ = store.Create(ctx, b)

	if err := store.Activate(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	active, err := store.Active(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if active.ID != "b" {
		t.Fatalf("expected policy b to be active, got %s", active.ID)
	}
}

func TestMemoryAuditLogRecentRespectsLimit(t *testing.T) {
	log := NewMemoryAuditLog()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = log.Append(ctx, ports.AuditRecord{Kind: "TEST", Message: "entry", Timestamp: int64(i)})
	}
	recent, err := log.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[1].Timestamp != 4 {
		t.Fatalf("expected the most recent record last, got timestamp %d", recent[1].Timestamp)
	}
}
