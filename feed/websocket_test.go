package feed

import (
	"context"
	"testing"

	"github.com/marketstructure/execengine/domain"
)

func TestGetQuoteReturnsErrorBeforeAnyTick(t *testing.T) {
	f := NewFeed("wss://unused.invalid")
	symbol, _ := domain.NewSymbol("AAPL")

	_, err := f.GetQuote(context.Background(), symbol)
	if err == nil {
		t.Fatal("expected an error for a symbol with no cached quote yet")
	}
}

func TestProcessMessageCachesQuote(t *testing.T) {
	f := NewFeed("wss://unused.invalid")
	f.processMessage([]byte(`{"symbol":"AAPL","bid":"189.50","ask":"189.55","bid_size":"100","ask_size":"200"}`))

	symbol, _ := domain.NewSymbol("AAPL")
	quote, err := f.GetQuote(context.Background(), symbol)
	if err != nil {
		t.Fatalf("expected a cached quote after processing a tick: %v", err)
	}
	if quote.Mid().String() != "189.5250" {
		t.Fatalf("expected mid 189.5250, got %s", quote.Mid())
	}
}

func TestProcessMessageBatch(t *testing.T) {
	f := NewFeed("wss://unused.invalid")
	f.processMessage([]byte(`[{"symbol":"AAPL","bid":"100","ask":"101","bid_size":"1","ask_size":"1"},{"symbol":"MSFT","bid":"200","ask":"201","bid_size":"1","ask_size":"1"}]`))

	for _, sym := range []string{"AAPL", "MSFT"} {
		symbol, _ := domain.NewSymbol(sym)
		if _, err := f.GetQuote(context.Background(), symbol); err != nil {
			t.Fatalf("expected %s to be cached from the batch message: %v", sym, err)
		}
	}
}

func TestSubscribeQueuesWithoutConnection(t *testing.T) {
	f := NewFeed("wss://unused.invalid")
	symbol, _ := domain.NewSymbol("AAPL")
	if err := f.Subscribe(context.Background(), symbol); err != nil {
		t.Fatalf("subscribe before connect should queue, not fail: %v", err)
	}
}
