package ports

import (
	"context"
	"time"

	"github.com/marketstructure/execengine/domain"
)

// Quote is a single top-of-book snapshot for an instrument.
type Quote struct {
	Symbol    domain.Symbol
	Bid       domain.Money
	Ask       domain.Money
	BidSize   domain.Quantity
	AskSize   domain.Quantity
	Timestamp time.Time
}

// Mid is the midpoint of bid/ask.
func (q Quote) Mid() domain.Money {
	return q.Bid.Add(q.Ask).MulScalar(halfDecimal)
}

// Spread is ask - bid.
func (q Quote) Spread() domain.Money {
	return q.Ask.Sub(q.Bid)
}

// SpreadBps is the spread expressed in basis points of the mid price.
func (q Quote) SpreadBps() float64 {
	mid := q.Mid()
	if mid.IsZero() {
		return 0
	}
	spread := q.Spread().Decimal()
	bps := spread.Div(mid.Decimal()).Mul(bpsScale)
	f, _ := bps.Float64()
	return f
}

// PriceFeedPort is the capability set for market data consumers: the Stops
// Enforcer's price-monitor and the Risk Constraint Engine's reference marks.
type PriceFeedPort interface {
	GetQuote(ctx context.Context, symbol domain.Symbol) (Quote, error)
	Subscribe(ctx context.Context, symbol domain.Symbol) error
	Unsubscribe(ctx context.Context, symbol domain.Symbol) error
	GetLastPrice(ctx context.Context, instrumentID domain.InstrumentId) (domain.Money, error)
}
