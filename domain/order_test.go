package domain

import (
	"testing"
	"time"
)

func newTestOrder(t *testing.T, qty float64) *Order {
	t.Helper()
	sym, err := NewSymbol("AAPL")
	if err != nil {
		t.Fatalf("NewSymbol: %v", err)
	}
	limit := MoneyFromFloat(190.0)
	o, err := New(Command{
		Symbol:      sym,
		Side:        SideBuy,
		OrderType:   OrderTypeLimit,
		TimeInForce: TIFDay,
		Quantity:    QuantityFromFloat(qty),
		LimitPrice:  &limit,
		Purpose:     PurposeEntry,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

// Scenario A-ish: full lifecycle new -> accepted -> partially filled -> filled.
func TestOrderFullLifecycle(t *testing.T) {
	o := newTestOrder(t, 100)

	if o.Status() != StatusNew {
		t.Fatalf("expected NEW, got %s", o.Status())
	}

	broker := BrokerIdFromString("b-1")
	if err := o.Accept(broker); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if o.Status() != StatusAccepted {
		t.Fatalf("expected ACCEPTED, got %s", o.Status())
	}

	// Idempotent accept with same broker id.
	if err := o.Accept(broker); err != nil {
		t.Fatalf("idempotent Accept should not error: %v", err)
	}

	// Conflicting broker id should fail.
	if err := o.Accept(BrokerIdFromString("b-2")); err == nil {
		t.Fatal("expected AcceptConflictError")
	}

	if err := o.ApplyFill(QuantityFromFloat(40), MoneyFromFloat(189.5), time.Now()); err != nil {
		t.Fatalf("ApplyFill partial: %v", err)
	}
	if o.Status() != StatusPartiallyFilled {
		t.Fatalf("expected PARTIALLY_FILLED, got %s", o.Status())
	}
	if o.CumQty().String() != "40" {
		t.Fatalf("cum_qty = %s, want 40", o.CumQty())
	}
	if o.LeavesQty().String() != "60" {
		t.Fatalf("leaves_qty = %s, want 60", o.LeavesQty())
	}

	if err := o.ApplyFill(QuantityFromFloat(60), MoneyFromFloat(190.5), time.Now()); err != nil {
		t.Fatalf("ApplyFill final: %v", err)
	}
	if o.Status() != StatusFilled {
		t.Fatalf("expected FILLED, got %s", o.Status())
	}
	if !o.LeavesQty().IsZero() {
		t.Fatalf("expected zero leaves_qty, got %s", o.LeavesQty())
	}

	// VWAP: (189.5*40 + 190.5*60) / 100 = (7580 + 11430) / 100 = 190.10
	want := "190.1000"
	if got := o.AvgPx().String(); got != want {
		t.Fatalf("avg_px = %s, want %s", got, want)
	}

	// FIX invariant: order_qty == cum_qty + leaves_qty
	if !o.OrderQty().Equal(o.CumQty().Add(o.LeavesQty())) {
		t.Fatal("FIX invariant violated")
	}

	// Terminal: further fills must fail.
	if err := o.ApplyFill(QuantityFromFloat(1), MoneyFromFloat(190), time.Now()); err == nil {
		t.Fatal("expected error filling a terminal order")
	}
}

func TestOrderFillExceedsRemaining(t *testing.T) {
	o := newTestOrder(t, 10)
	if err := o.Accept(BrokerIdFromString("b-1")); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	err := o.ApplyFill(QuantityFromFloat(11), MoneyFromFloat(190), time.Now())
	if err == nil {
		t.Fatal("expected FillExceedsRemainingError")
	}
	if _, ok := err.(*FillExceedsRemainingError); !ok {
		t.Fatalf("expected *FillExceedsRemainingError, got %T", err)
	}
}

func TestOrderRejectFromNew(t *testing.T) {
	o := newTestOrder(t, 10)
	if err := o.Reject(RejectInsufficientFunds); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if o.Status() != StatusRejected {
		t.Fatalf("expected REJECTED, got %s", o.Status())
	}
	reason, ok := o.RejectReason()
	if !ok || reason.Code != "INSUFFICIENT_FUNDS" {
		t.Fatalf("unexpected reject reason: %+v", reason)
	}
	// Idempotent: rejecting again is a no-op, not an error.
	if err := o.Reject(RejectInsufficientFunds); err != nil {
		t.Fatalf("idempotent Reject should not error: %v", err)
	}
}

func TestOrderCancelIdempotentOnTerminal(t *testing.T) {
	o := newTestOrder(t, 10)
	if err := o.Reject(RejectInsufficientFunds); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	// Cancel on an already-terminal (rejected) order is a no-op per the
	// round-trip law, not an error.
	if err := o.Cancel(CancelUserRequested); err != nil {
		t.Fatalf("Cancel on terminal order should be a no-op: %v", err)
	}
	if o.Status() != StatusRejected {
		t.Fatalf("status should remain REJECTED, got %s", o.Status())
	}
}

func TestOrderCancelFromPartiallyFilled(t *testing.T) {
	o := newTestOrder(t, 10)
	if err := o.Accept(BrokerIdFromString("b-1")); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := o.ApplyFill(QuantityFromFloat(4), MoneyFromFloat(190), time.Now()); err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	if err := o.Cancel(CancelUserRequested); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if o.Status() != StatusCanceled {
		t.Fatalf("expected CANCELED, got %s", o.Status())
	}
	// Remaining leaves_qty is preserved for the books; cum_qty unaffected.
	if o.CumQty().String() != "4" {
		t.Fatalf("cum_qty should remain 4 after cancel, got %s", o.CumQty())
	}
}

func TestOrderPendingCancelStillFillable(t *testing.T) {
	o := newTestOrder(t, 10)
	if err := o.Accept(BrokerIdFromString("b-1")); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := o.RequestCancel(); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	if o.Status() != StatusPendingCancel {
		t.Fatalf("expected PENDING_CANCEL, got %s", o.Status())
	}
	// A race fill can still land while a cancel is in flight.
	if err := o.ApplyFill(QuantityFromFloat(10), MoneyFromFloat(190), time.Now()); err != nil {
		t.Fatalf("ApplyFill during pending cancel: %v", err)
	}
	if o.Status() != StatusFilled {
		t.Fatalf("expected FILLED, got %s", o.Status())
	}
}

func TestOrderInvalidTransitionRejected(t *testing.T) {
	o := newTestOrder(t, 10)
	if err := o.Reject(RejectInsufficientFunds); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if err := o.Accept(BrokerIdFromString("b-1")); err == nil {
		t.Fatal("expected error accepting a terminal (rejected) order")
	}
}

func TestOrderExpire(t *testing.T) {
	o := newTestOrder(t, 10)
	if err := o.Accept(BrokerIdFromString("b-1")); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := o.Expire(); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if o.Status() != StatusExpired {
		t.Fatalf("expected EXPIRED, got %s", o.Status())
	}
}

func TestOrderPurposeUrgency(t *testing.T) {
	if PurposeStopLoss.UrgencyLevel() <= PurposeEntry.UrgencyLevel() {
		t.Fatal("stop loss must be more urgent than entry")
	}
	if PurposeTakeProfit.UrgencyLevel() <= PurposeScaleIn.UrgencyLevel() {
		t.Fatal("take profit must be more urgent than scale-in")
	}
}

func TestAggregateLegStatus(t *testing.T) {
	legs := []OrderLine{
		{FilledQty: QuantityFromFloat(10), Status: StatusFilled},
		{FilledQty: QuantityFromFloat(5), Status: StatusPartiallyFilled},
	}
	if got := AggregateLegStatus(legs); got != StatusPartiallyFilled {
		t.Fatalf("expected PARTIALLY_FILLED, got %s", got)
	}

	allFilled := []OrderLine{
		{FilledQty: QuantityFromFloat(10), Status: StatusFilled},
		{FilledQty: QuantityFromFloat(5), Status: StatusFilled},
	}
	if got := AggregateLegStatus(allFilled); got != StatusFilled {
		t.Fatalf("expected FILLED, got %s", got)
	}

	if got := AggregateLegStatus(nil); got != StatusNew {
		t.Fatalf("expected NEW for empty legs, got %s", got)
	}
}
