// Package ports defines the interfaces the execution core consumes but never
// implements directly: the broker order-management surface and the price
// feed. Concrete adapters live in the sibling broker/ and feed/ packages.
package ports

import (
	"context"
	"time"

	"github.com/marketstructure/execengine/domain"
)

// SubmitOrderRequest is the wire-agnostic broker order request the Gateway builds
// from an Order Aggregate.
type SubmitOrderRequest struct {
	ClientOrderID domain.OrderId
	Symbol        domain.Symbol
	Side          domain.Side
	OrderType     domain.OrderType
	TimeInForce   domain.TimeInForce
	Quantity      domain.Quantity
	LimitPrice    *domain.Money
	StopPrice     *domain.Money
}

// CancelOrderRequest identifies the order to cancel, preferring BrokerID.
type CancelOrderRequest struct {
	BrokerID      *domain.BrokerId
	ClientOrderID domain.OrderId
}

// OrderAck is the broker's acknowledgment of an order action.
type OrderAck struct {
	BrokerID  domain.BrokerId
	Status    domain.OrderStatus
	FilledQty domain.Quantity
	AvgPrice  domain.Money
	Timestamp time.Time
}

// BrokerPort is the capability set the Gateway and Reconciler consume.
// Every method may block on network I/O and must honor ctx cancellation;
// it returns domain.ErrConnectionError for retryable transport failures,
// domain.ErrInsufficientFunds / domain.ErrRateLimited / domain.ErrOrderNotFound
// / domain.ErrUnknown for broker-classified outcomes.
type BrokerPort interface {
	SubmitOrder(ctx context.Context, req SubmitOrderRequest) (OrderAck, error)
	CancelOrder(ctx context.Context, req CancelOrderRequest) error
	GetOrder(ctx context.Context, brokerID domain.BrokerId) (OrderAck, error)
	GetOpenOrders(ctx context.Context) ([]OrderAck, error)
	GetBuyingPower(ctx context.Context) (domain.Money, error)
	GetPosition(ctx context.Context, instrumentID domain.InstrumentId) (domain.Quantity, bool, error)
}

// RetryPolicy is the full-jitter exponential backoff configuration carried in
// the broker adapter's config. No adapter in this module applies it.
type RetryPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	MaxAttempts    int
}

// DefaultRetryPolicy matches the (500ms, 60s, 2.0, 10) defaults from §4.7.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     60 * time.Second,
		Multiplier:     2.0,
		MaxAttempts:    10,
	}
}
