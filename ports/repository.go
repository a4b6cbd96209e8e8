package ports

import (
	"context"

	"github.com/marketstructure/execengine/domain"
)

// OrderRepository is the persistence port for Order Aggregates. Concrete
// implementations (in-memory reference, gorm over sqlite or Postgres)
// all satisfy this same interface so BACKTEST/PAPER/LIVE can swap freely.
type OrderRepository interface {
	Save(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id domain.OrderId) (*domain.Order, error)
	FindByBrokerID(ctx context.Context, id domain.BrokerId) (*domain.Order, error)
	FindOpen(ctx context.Context) ([]*domain.Order, error)
	Delete(ctx context.Context, id domain.OrderId) error
}

// RiskPolicyStore is the persistence port for RiskPolicy entities. Exactly
// one policy is active at a time; Activate deactivates any previously active
// policy as part of the same operation.
type RiskPolicyStore interface {
	Create(ctx context.Context, policy domain.RiskPolicy) error
	Get(ctx context.Context, id string) (domain.RiskPolicy, error)
	Active(ctx context.Context) (domain.RiskPolicy, error)
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// AuditRecord is one entry in the reconciliation/risk audit trail.
type AuditRecord struct {
	Kind      string // e.g. "STATUS_DRIFT", "ORPHAN_BROKER", "CRITICAL_HALT"
	OrderID   *domain.OrderId
	Message   string
	Timestamp int64 // unix seconds, stamped by the caller (no time.Now() in pure logic)
}

// AuditLog is the append-only persistence port for discrepancy/halt records.
type AuditLog interface {
	Append(ctx context.Context, record AuditRecord) error
	Recent(ctx context.Context, limit int) ([]AuditRecord, error)
}
