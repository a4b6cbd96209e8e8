package stops

import (
	"context"
	"testing"
	"time"

	"github.com/marketstructure/execengine/domain"
)

func mustSymbol(t *testing.T, s string) domain.Symbol {
	t.Helper()
	sym, err := domain.NewSymbol(s)
	if err != nil {
		t.Fatal(err)
	}
	return sym
}

func TestValidateBracketLevelsAcceptsValidLongBracket(t *testing.T) {
	err := ValidateBracketLevels(domain.DirectionLong,
		domain.MoneyFromFloat(100), domain.MoneyFromFloat(95), domain.MoneyFromFloat(110), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
}

func TestValidateBracketLevelsRejectsInvertedLongOrder(t *testing.T) {
	err := ValidateBracketLevels(domain.DirectionLong,
		domain.MoneyFromFloat(100), domain.MoneyFromFloat(110), domain.MoneyFromFloat(95), DefaultConfig())
	if err == nil {
		t.Fatal("expected error for stop > entry on a long bracket")
	}
}

func TestValidateBracketLevelsRejectsStopDistanceOutsideRange(t *testing.T) {
	cfg := DefaultConfig()
	err := ValidateBracketLevels(domain.DirectionLong,
		domain.MoneyFromFloat(100), domain.MoneyFromFloat(99.99), domain.MoneyFromFloat(110), cfg)
	if err == nil {
		t.Fatal("expected error: stop distance below MinStopPct")
	}
}

func TestCheckTriggerLongStopLoss(t *testing.T) {
	levels := domain.StopLevels{
		StopLoss: domain.MoneyFromFloat(95), TakeProfit: domain.MoneyFromFloat(110),
		EntryPrice: domain.MoneyFromFloat(100), Direction: domain.DirectionLong,
	}
	if got := CheckTrigger(levels, domain.MoneyFromFloat(94)); got != TriggerStopLoss {
		t.Fatalf("expected TriggerStopLoss, got %s", got)
	}
}

func TestCheckTriggerShortTakeProfit(t *testing.T) {
	levels := domain.StopLevels{
		StopLoss: domain.MoneyFromFloat(105), TakeProfit: domain.MoneyFromFloat(90),
		EntryPrice: domain.MoneyFromFloat(100), Direction: domain.DirectionShort,
	}
	if got := CheckTrigger(levels, domain.MoneyFromFloat(89)); got != TriggerTakeProfit {
		t.Fatalf("expected TriggerTakeProfit, got %s", got)
	}
}

func TestCheckTriggerNoneWithinRange(t *testing.T) {
	levels := domain.StopLevels{
		StopLoss: domain.MoneyFromFloat(95), TakeProfit: domain.MoneyFromFloat(110),
		EntryPrice: domain.MoneyFromFloat(100), Direction: domain.DirectionLong,
	}
	if got := CheckTrigger(levels, domain.MoneyFromFloat(101)); got != TriggerNone {
		t.Fatalf("expected TriggerNone, got %s", got)
	}
}

func TestSupportsBracketOrdersFalseForOptions(t *testing.T) {
	opt := mustSymbol(t, "AAPL240119C00150000")
	if SupportsBracketOrders(opt) {
		t.Fatal("expected options to not support bracket orders")
	}
}

func TestRegisterBracketEligibleSkipsMonitoring(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEnforcer(cfg, nil, nil)
	pos, err := domain.NewMonitoredPosition("p1", domain.InstrumentId("AAPL"), domain.StopLevels{
		StopLoss: domain.MoneyFromFloat(95), TakeProfit: domain.MoneyFromFloat(110),
		EntryPrice: domain.MoneyFromFloat(100), Direction: domain.DirectionLong,
	})
	if err != nil {
		t.Fatal(err)
	}
	monitoring, err := e.Register(mustSymbol(t, "AAPL"), pos)
	if err != nil {
		t.Fatal(err)
	}
	if monitoring {
		t.Fatal("expected bracket-eligible equity to skip price monitoring")
	}
	if e.MonitoredCount() != 0 {
		t.Fatal("expected no monitored positions")
	}
}

func TestRegisterOptionUsesPriceMonitoring(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEnforcer(cfg, nil, nil)
	pos, err := domain.NewMonitoredPosition("p1", domain.InstrumentId("AAPL240119C00150000"), domain.StopLevels{
		StopLoss: domain.MoneyFromFloat(5), TakeProfit: domain.MoneyFromFloat(10),
		EntryPrice: domain.MoneyFromFloat(7), Direction: domain.DirectionLong,
	})
	if err != nil {
		t.Fatal(err)
	}
	monitoring, err := e.Register(mustSymbol(t, "AAPL240119C00150000"), pos)
	if err != nil {
		t.Fatal(err)
	}
	if !monitoring {
		t.Fatal("expected option position to require price monitoring")
	}
	if e.MonitoredCount() != 1 {
		t.Fatalf("expected 1 monitored position, got %d", e.MonitoredCount())
	}
}

func TestOnQuoteFiresAndDeregisters(t *testing.T) {
	firedCh := make(chan TriggerKind, 1)
	e := NewEnforcer(DefaultConfig(), nil, func(ctx context.Context, pos *domain.MonitoredPosition, trigger TriggerKind, price domain.Money) {
		firedCh <- trigger
	})
	pos, err := domain.NewMonitoredPosition("p1", domain.InstrumentId("AAPL240119C00150000"), domain.StopLevels{
		StopLoss: domain.MoneyFromFloat(5), TakeProfit: domain.MoneyFromFloat(10),
		EntryPrice: domain.MoneyFromFloat(7), Direction: domain.DirectionLong,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Register(mustSymbol(t, "AAPL240119C00150000"), pos); err != nil {
		t.Fatal(err)
	}

	e.OnQuote(context.Background(), domain.InstrumentId("AAPL240119C00150000"), domain.MoneyFromFloat(4))

	select {
	case trigger := <-firedCh:
		if trigger != TriggerStopLoss {
			t.Fatalf("expected TriggerStopLoss, got %s", trigger)
		}
	case <-time.After(time.Second):
		t.Fatal("onTrigger callback was never invoked")
	}
	if e.MonitoredCount() != 0 {
		t.Fatal("expected position to be deregistered after firing")
	}
}
