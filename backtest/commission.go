package backtest

import (
	"github.com/shopspring/decimal"

	"github.com/marketstructure/execengine/domain"
)

var (
	secFeeRate       = decimal.NewFromFloat(0.0000278)
	finraTafPerShare = decimal.NewFromFloat(0.000195)
	finraTafPerContract = decimal.NewFromFloat(0.00329)
	finraTafCap      = decimal.NewFromFloat(9.79)
	optionsOrfPerContract = decimal.NewFromFloat(0.0026)
)

// InstrumentClass distinguishes equities from options for fee purposes.
type InstrumentClass string

const (
	ClassEquity  InstrumentClass = "EQUITY"
	ClassOption  InstrumentClass = "OPTION"
)

// ClassifyInstrument derives InstrumentClass from a Symbol's OCC shape.
func ClassifyInstrument(symbol domain.Symbol) InstrumentClass {
	if symbol.IsOption() {
		return ClassOption
	}
	return ClassEquity
}

// CommissionModel computes per-unit base plus US regulatory fees.
type CommissionModel struct {
	PerUnitBase       decimal.Decimal
	MinCommission     domain.Money
}

// CommissionBreakdown itemizes every fee component of one fill.
type CommissionBreakdown struct {
	Base       domain.Money
	SecFee     domain.Money
	FinraTaf   domain.Money
	OptionsOrf domain.Money
	Total      domain.Money
}

// Compute returns the full fee breakdown for one fill. side is needed
// because the SEC fee applies only to sells; class picks the
// equities-vs-options TAF/ORF schedule.
func (m CommissionModel) Compute(class InstrumentClass, side domain.Side, quantity domain.Quantity, notional domain.Money) CommissionBreakdown {
	base := domain.NewMoney(m.PerUnitBase.Mul(quantity.Decimal()))

	var secFee domain.Money
	if class == ClassEquity && side == domain.SideSell {
		secFee = domain.NewMoney(notional.Decimal().Mul(secFeeRate))
	} else {
		secFee = domain.ZeroMoney
	}

	var taf domain.Money
	switch class {
	case ClassEquity:
		taf = domain.NewMoney(finraTafPerShare.Mul(quantity.Decimal()))
	case ClassOption:
		taf = domain.NewMoney(finraTafPerContract.Mul(quantity.Decimal()))
	}
	if taf.GreaterThan(domain.NewMoney(finraTafCap)) {
		taf = domain.NewMoney(finraTafCap)
	}

	var orf domain.Money
	if class == ClassOption {
		orf = domain.NewMoney(optionsOrfPerContract.Mul(quantity.Decimal()))
	} else {
		orf = domain.ZeroMoney
	}

	total := base.Add(secFee).Add(taf).Add(orf)
	if total.LessThan(m.MinCommission) {
		total = m.MinCommission
	}

	return CommissionBreakdown{Base: base, SecFee: secFee, FinraTaf: taf, OptionsOrf: orf, Total: total}
}

// DefaultCommissionModel matches a typical retail-broker flat-ish schedule:
// zero per-unit base, zero minimum (fees alone apply).
func DefaultCommissionModel() CommissionModel {
	return CommissionModel{PerUnitBase: decimal.Zero, MinCommission: domain.ZeroMoney}
}
