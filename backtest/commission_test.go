package backtest

import (
	"testing"

	"github.com/marketstructure/execengine/domain"
)

func TestComputeEquitySellIncludesSecFee(t *testing.T) {
	model := DefaultCommissionModel()
	qty := domain.QuantityFromFloat(100)
	notional := domain.MoneyFromFloat(15000)

	breakdown := model.Compute(ClassEquity, domain.SideSell, qty, notional)

	if breakdown.SecFee.IsZero() {
		t.Fatal("expected a nonzero SEC fee on an equity sell")
	}
	if !breakdown.OptionsOrf.IsZero() {
		t.Fatal("expected no options ORF on an equity trade")
	}
	if !breakdown.Total.Equal(breakdown.Base.Add(breakdown.SecFee).Add(breakdown.FinraTaf).Add(breakdown.OptionsOrf)) {
		t.Fatal("total must equal the sum of its components when above the minimum")
	}
}

func TestComputeEquityBuyHasNoSecFee(t *testing.T) {
	model := DefaultCommissionModel()
	breakdown := model.Compute(ClassEquity, domain.SideBuy, domain.QuantityFromFloat(100), domain.MoneyFromFloat(15000))
	if !breakdown.SecFee.IsZero() {
		t.Fatal("SEC fee only applies to sells")
	}
}

func TestComputeOptionsIncludesOrfBothSides(t *testing.T) {
	model := DefaultCommissionModel()
	qty := domain.QuantityFromFloat(10)
	notional := domain.MoneyFromFloat(2000)

	buy := model.Compute(ClassOption, domain.SideBuy, qty, notional)
	sell := model.Compute(ClassOption, domain.SideSell, qty, notional)

	if buy.OptionsOrf.IsZero() || sell.OptionsOrf.IsZero() {
		t.Fatal("options ORF applies on both sides of the trade")
	}
	if !buy.SecFee.IsZero() {
		t.Fatal("SEC fee does not apply to options")
	}
}

func TestComputeFinraTafCapsAtMax(t *testing.T) {
	model := DefaultCommissionModel()
	// a huge share count should hit the $9.79 FINRA TAF cap.
	breakdown := model.Compute(ClassEquity, domain.SideBuy, domain.QuantityFromFloat(1000000), domain.MoneyFromFloat(10000000))
	if breakdown.FinraTaf.String() != "9.7900" {
		t.Fatalf("expected FINRA TAF capped at 9.79, got %s", breakdown.FinraTaf)
	}
}

func TestComputeFloorsAtMinCommission(t *testing.T) {
	model := CommissionModel{MinCommission: domain.MoneyFromFloat(1.00)}
	breakdown := model.Compute(ClassEquity, domain.SideBuy, domain.QuantityFromFloat(1), domain.MoneyFromFloat(10))
	if breakdown.Total.String() != "1.0000" {
		t.Fatalf("expected total floored at the $1.00 minimum, got %s", breakdown.Total)
	}
}

func TestClassifyInstrument(t *testing.T) {
	equity, err := domain.NewSymbol("AAPL")
	if err != nil {
		t.Fatal(err)
	}
	option, err := domain.NewSymbol("AAPL240119C00150000")
	if err != nil {
		t.Fatal(err)
	}
	if ClassifyInstrument(equity) != ClassEquity {
		t.Fatal("expected AAPL classified as equity")
	}
	if ClassifyInstrument(option) != ClassOption {
		t.Fatal("expected OCC symbol classified as option")
	}
}
