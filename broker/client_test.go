package broker

import (
	"context"
	"testing"

	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/ports"
)

func TestSubmitOrderDryRunSkipsNetwork(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused.invalid", DryRun: true})

	symbol, err := domain.NewSymbol("AAPL")
	if err != nil {
		t.Fatal(err)
	}
	ack, err := client.SubmitOrder(context.Background(), ports.SubmitOrderRequest{
		ClientOrderID: domain.NewOrderId(),
		Symbol:        symbol,
		Side:          domain.SideBuy,
		OrderType:     domain.OrderTypeMarket,
		TimeInForce:   domain.TIFDay,
		Quantity:      domain.QuantityFromFloat(10),
	})
	if err != nil {
		t.Fatalf("dry run submit should never hit the network: %v", err)
	}
	if ack.Status != domain.StatusAccepted {
		t.Fatalf("expected dry-run ack to be Accepted, got %s", ack.Status)
	}
}

func TestCancelOrderDryRunSkipsNetwork(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused.invalid", DryRun: true})
	err := client.CancelOrder(context.Background(), ports.CancelOrderRequest{ClientOrderID: domain.NewOrderId()})
	if err != nil {
		t.Fatalf("dry run cancel should never hit the network: %v", err)
	}
}

func TestMapStatusKnownValues(t *testing.T) {
	cases := map[string]domain.OrderStatus{
		"accepted":          domain.StatusAccepted,
		"partially_filled":  domain.StatusPartiallyFilled,
		"filled":            domain.StatusFilled,
		"cancelled":         domain.StatusCanceled,
		"rejected":          domain.StatusRejected,
	}
	for raw, want := range cases {
		if got := mapStatus(raw); got != want {
			t.Errorf("mapStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}
