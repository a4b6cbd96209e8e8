package risk

import (
	"testing"

	"github.com/marketstructure/execengine/domain"
)

func makeContext(equity float64) domain.RiskContext {
	return domain.RiskContext{
		Equity:      domain.MoneyFromFloat(equity),
		BuyingPower: domain.MoneyFromFloat(equity),
		Positions:   map[domain.InstrumentId]domain.PositionSnapshot{},
	}
}

// Scenario C — Risk rejection.
func TestValidateRejectsOversizedNotional(t *testing.T) {
	aapl := domain.InstrumentIdFromString("AAPL")
	price := domain.MoneyFromFloat(150)
	plan := domain.DecisionPlan{
		PlanID:  domain.NewPlanId(),
		CycleID: domain.NewCycleId(),
		Decisions: []domain.Decision{
			{
				DecisionID:   domain.NewDecisionId(),
				InstrumentID: aapl,
				Action:       domain.ActionBuy,
				Direction:    domain.DirectionLong,
				Size:         domain.Size{Quantity: domain.QuantityFromFloat(1_000_000), Unit: domain.UnitShares},
				LimitPrice:   &price,
			},
		},
	}
	ctx := makeContext(10_000)
	limits := domain.DefaultConstraintsConfig()

	result := Validate(plan, ctx, nil, limits)

	if result.Passed {
		t.Fatal("expected ok=false for a 150M notional decision against a $10,000 account")
	}
	found := false
	for _, v := range result.Violations {
		if v.Code == "PER_INSTRUMENT_NOTIONAL_EXCEEDED" && v.Severity == domain.SeverityError {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected PER_INSTRUMENT_NOTIONAL_EXCEEDED error violation, got %+v", result.Violations)
	}
}

func TestValidatePassesWithinLimits(t *testing.T) {
	aapl := domain.InstrumentIdFromString("AAPL")
	price := domain.MoneyFromFloat(150)
	plan := domain.DecisionPlan{
		Decisions: []domain.Decision{
			{
				InstrumentID: aapl,
				Action:       domain.ActionBuy,
				Direction:    domain.DirectionLong,
				Size:         domain.Size{Quantity: domain.QuantityFromFloat(10), Unit: domain.UnitShares},
				LimitPrice:   &price,
			},
		},
	}
	ctx := makeContext(100_000)
	limits := domain.DefaultConstraintsConfig()

	result := Validate(plan, ctx, nil, limits)
	if !result.Passed {
		t.Fatalf("expected ok=true, got violations: %+v", result.Violations)
	}
}

func TestValidateDeterministicCheckOrder(t *testing.T) {
	aapl := domain.InstrumentIdFromString("AAPL")
	price := domain.MoneyFromFloat(150)
	plan := domain.DecisionPlan{
		Decisions: []domain.Decision{
			{InstrumentID: aapl, Action: domain.ActionBuy, Direction: domain.DirectionLong,
				Size: domain.Size{Quantity: domain.QuantityFromFloat(1_000_000), Unit: domain.UnitShares}, LimitPrice: &price},
			{InstrumentID: aapl, Action: domain.ActionSell, Direction: domain.DirectionShort,
				Size: domain.Size{Quantity: domain.QuantityFromFloat(1_000_000), Unit: domain.UnitShares}, LimitPrice: &price},
		},
	}
	ctx := makeContext(10_000)
	limits := domain.DefaultConstraintsConfig()

	r1 := Validate(plan, ctx, nil, limits)
	r2 := Validate(plan, ctx, nil, limits)

	if len(r1.Violations) != len(r2.Violations) {
		t.Fatalf("expected stable violation count across identical runs, got %d vs %d", len(r1.Violations), len(r2.Violations))
	}
	for i := range r1.Violations {
		if r1.Violations[i].Code != r2.Violations[i].Code {
			t.Fatalf("violation order not stable at index %d: %s vs %s", i, r1.Violations[i].Code, r2.Violations[i].Code)
		}
	}
}

func TestValidateDetectsConflictingBuySell(t *testing.T) {
	aapl := domain.InstrumentIdFromString("AAPL")
	price := domain.MoneyFromFloat(10)
	plan := domain.DecisionPlan{
		Decisions: []domain.Decision{
			{InstrumentID: aapl, Action: domain.ActionBuy, Direction: domain.DirectionLong,
				Size: domain.Size{Quantity: domain.QuantityFromFloat(1), Unit: domain.UnitShares}, LimitPrice: &price},
			{InstrumentID: aapl, Action: domain.ActionSell, Direction: domain.DirectionLong,
				Size: domain.Size{Quantity: domain.QuantityFromFloat(1), Unit: domain.UnitShares}, LimitPrice: &price},
		},
	}
	ctx := makeContext(1_000_000)
	result := Validate(plan, ctx, nil, domain.DefaultConstraintsConfig())

	found := false
	for _, v := range result.Violations {
		if v.Code == "CONFLICTING_BUY_SELL" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected CONFLICTING_BUY_SELL violation, got %+v", result.Violations)
	}
}

func TestValidateWarningsDoNotFailPlan(t *testing.T) {
	aapl := domain.InstrumentIdFromString("AAPL")
	price := domain.MoneyFromFloat(10)
	median := domain.QuantityFromFloat(1)
	plan := domain.DecisionPlan{
		Decisions: []domain.Decision{
			{InstrumentID: aapl, Action: domain.ActionBuy, Direction: domain.DirectionLong,
				Size: domain.Size{Quantity: domain.QuantityFromFloat(10), Unit: domain.UnitShares}, LimitPrice: &price},
		},
	}
	ctx := makeContext(1_000_000)
	ctx.RecentSizeMedian = &median

	result := Validate(plan, ctx, nil, domain.DefaultConstraintsConfig())
	if !result.Passed {
		t.Fatalf("a Warning-only result must still pass, got %+v", result.Violations)
	}
	hasWarning := false
	for _, v := range result.Violations {
		if v.Code == "SIZING_OUTLIER" {
			hasWarning = true
		}
	}
	if !hasWarning {
		t.Fatal("expected a SIZING_OUTLIER warning for 10x the recent median")
	}
}
