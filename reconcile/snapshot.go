package reconcile

import (
	"time"

	"github.com/marketstructure/execengine/domain"
)

// BrokerOrderView is one order as reported by the broker, independent of
// whether a matching local Order Aggregate exists.
type BrokerOrderView struct {
	BrokerID    domain.BrokerId
	Symbol      domain.Symbol
	Status      domain.OrderStatus
	Quantity    domain.Quantity
	CreatedAt   time.Time
}

// BrokerPositionView is one position as reported by the broker.
type BrokerPositionView struct {
	InstrumentID domain.InstrumentId
	Quantity     domain.Quantity
	AvgPrice     domain.Money
}

// BrokerStateSnapshot is the broker's authoritative view pulled atomically
// at FetchedAt.
type BrokerStateSnapshot struct {
	FetchedAt   time.Time
	Orders      []BrokerOrderView
	Positions   []BrokerPositionView
	Equity      domain.Money
	Cash        domain.Money
	BuyingPower domain.Money
}

// LocalOrderView is the minimal local-side projection the diff compares against.
type LocalOrderView struct {
	OrderID      domain.OrderId
	BrokerID     *domain.BrokerId
	Status       domain.OrderStatus
}

// LocalPositionView is the minimal local-side position projection.
type LocalPositionView struct {
	InstrumentID domain.InstrumentId
	Quantity     domain.Quantity
	AvgPrice     domain.Money
}
