package safety

import (
	"context"
	"testing"
	"time"

	"github.com/marketstructure/execengine/domain"
)

func testConfig() Config {
	return Config{
		Enabled:                 true,
		GracePeriodSeconds:      5,
		HeartbeatIntervalMs:     1000,
		HeartbeatTimeoutSeconds: 5,
		GtcPolicy:               GtcInclude,
	}
}

func TestCheckDoesNothingBeforeTimeout(t *testing.T) {
	start := time.Now()
	mc := NewMassCanceller(testConfig(), func(ctx context.Context, id domain.OrderId, reason domain.CancelReason) error {
		t.Fatal("cancel should not be called before timeout")
		return nil
	}, func(ctx context.Context) []OpenOrder { return nil })
	mc.Heartbeat(start)

	if err := mc.Check(context.Background(), start.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}
	if mc.IsTripped() {
		t.Fatal("expected not tripped before timeout")
	}
}

func TestCheckCancelsAllAfterTimeout(t *testing.T) {
	start := time.Now()
	var cancelled []domain.OrderId
	mc := NewMassCanceller(testConfig(), func(ctx context.Context, id domain.OrderId, reason domain.CancelReason) error {
		cancelled = append(cancelled, id)
		return nil
	}, func(ctx context.Context) []OpenOrder {
		return []OpenOrder{
			{OrderID: domain.OrderIdFromString("o1"), TimeInForce: domain.TIFDay},
			{OrderID: domain.OrderIdFromString("o2"), TimeInForce: domain.TIFGtc},
		}
	})
	mc.Heartbeat(start)

	if err := mc.Check(context.Background(), start.Add(11*time.Second)); err != nil {
		t.Fatal(err)
	}
	if !mc.IsTripped() {
		t.Fatal("expected tripped after timeout")
	}
	if len(cancelled) != 2 {
		t.Fatalf("expected both orders cancelled under GtcInclude, got %d", len(cancelled))
	}
}

func TestCheckExcludesGtcWhenPolicyExcludes(t *testing.T) {
	start := time.Now()
	cfg := testConfig()
	cfg.GtcPolicy = GtcExclude
	var cancelled []domain.OrderId
	mc := NewMassCanceller(cfg, func(ctx context.Context, id domain.OrderId, reason domain.CancelReason) error {
		cancelled = append(cancelled, id)
		return nil
	}, func(ctx context.Context) []OpenOrder {
		return []OpenOrder{
			{OrderID: domain.OrderIdFromString("o1"), TimeInForce: domain.TIFDay},
			{OrderID: domain.OrderIdFromString("o2"), TimeInForce: domain.TIFGtc},
		}
	})
	mc.Heartbeat(start)

	if err := mc.Check(context.Background(), start.Add(11*time.Second)); err != nil {
		t.Fatal(err)
	}
	if len(cancelled) != 1 || cancelled[0].String() != "o1" {
		t.Fatalf("expected only the non-GTC order cancelled, got %v", cancelled)
	}
}

func TestCheckDoesNotRetripWhileAlreadyTripped(t *testing.T) {
	start := time.Now()
	calls := 0
	mc := NewMassCanceller(testConfig(), func(ctx context.Context, id domain.OrderId, reason domain.CancelReason) error {
		calls++
		return nil
	}, func(ctx context.Context) []OpenOrder {
		return []OpenOrder{{OrderID: domain.OrderIdFromString("o1"), TimeInForce: domain.TIFDay}}
	})
	mc.Heartbeat(start)

	_ = mc.Check(context.Background(), start.Add(11*time.Second))
	_ = mc.Check(context.Background(), start.Add(12*time.Second))

	if calls != 1 {
		t.Fatalf("expected cancelAll to run exactly once, got %d calls", calls)
	}
}

func TestHeartbeatResetsTrippedState(t *testing.T) {
	start := time.Now()
	mc := NewMassCanceller(testConfig(), func(ctx context.Context, id domain.OrderId, reason domain.CancelReason) error {
		return nil
	}, func(ctx context.Context) []OpenOrder {
		return []OpenOrder{{OrderID: domain.OrderIdFromString("o1"), TimeInForce: domain.TIFDay}}
	})
	mc.Heartbeat(start)
	_ = mc.Check(context.Background(), start.Add(11*time.Second))
	if !mc.IsTripped() {
		t.Fatal("expected tripped")
	}

	mc.Heartbeat(start.Add(20 * time.Second))
	if mc.IsTripped() {
		t.Fatal("expected heartbeat to clear tripped state")
	}
}
