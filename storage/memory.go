package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/ports"
)

// MemoryOrderRepository is an in-memory ports.OrderRepository, used in
// BACKTEST mode and in tests where a real database is unnecessary overhead.
type MemoryOrderRepository struct {
	mu       sync.RWMutex
	byID     map[domain.OrderId]*domain.Order
	byBroker map[domain.BrokerId]domain.OrderId
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		byID:     make(map[domain.OrderId]*domain.Order),
		byBroker: make(map[domain.BrokerId]domain.OrderId),
	}
}

func (m *MemoryOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[order.ID()] = order
	if bid, ok := order.BrokerOrderID(); ok {
		m.byBroker[bid] = order.ID()
	}
	return nil
}

func (m *MemoryOrderRepository) FindByID(ctx context.Context, id domain.OrderId) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return order, nil
}

func (m *MemoryOrderRepository) FindByBrokerID(ctx context.Context, id domain.BrokerId) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orderID, ok := m.byBroker[id]
	if !ok {
		return nil, fmt.Errorf("%w: broker_id=%s", domain.ErrNotFound, id)
	}
	return m.byID[orderID], nil
}

func (m *MemoryOrderRepository) FindOpen(ctx context.Context) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Order
	for _, order := range m.byID {
		if !order.Status().IsTerminal() {
			out = append(out, order)
		}
	}
	return out, nil
}

func (m *MemoryOrderRepository) Delete(ctx context.Context, id domain.OrderId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

// MemoryPolicyStore is an in-memory ports.RiskPolicyStore.
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]domain.RiskPolicy
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{policies: make(map[string]domain.RiskPolicy)}
}

func (m *MemoryPolicyStore) Create(ctx context.Context, policy domain.RiskPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[policy.ID] = policy
	return nil
}

func (m *MemoryPolicyStore) Get(ctx context.Context, id string) (domain.RiskPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return domain.RiskPolicy{}, fmt.Errorf("%w: %s", domain.ErrPolicyNotFound, id)
	}
	return p, nil
}

func (m *MemoryPolicyStore) Active(ctx context.Context) (domain.RiskPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.policies {
		if p.Active {
			return p, nil
		}
	}
	return domain.RiskPolicy{}, domain.ErrPolicyNotFound
}

func (m *MemoryPolicyStore) Activate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrPolicyNotFound, id)
	}
	for k, p := range m.policies {
		p.Active = k == id
		m.policies[k] = p
	}
	return nil
}

func (m *MemoryPolicyStore) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrPolicyNotFound, id)
	}
	p.Active = false
	m.policies[id] = p
	return nil
}

func (m *MemoryPolicyStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.policies, id)
	return nil
}

// MemoryAuditLog is an in-memory ports.AuditLog.
type MemoryAuditLog struct {
	mu      sync.RWMutex
	records []ports.AuditRecord
}

func NewMemoryAuditLog() *MemoryAuditLog { return &MemoryAuditLog{} }

func (m *MemoryAuditLog) Append(ctx context.Context, record ports.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *MemoryAuditLog) Recent(ctx context.Context, limit int) ([]ports.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	start := len(m.records) - limit
	out := make([]ports.AuditRecord, limit)
	copy(out, m.records[start:])
	return out, nil
}
