package domain

import "github.com/shopspring/decimal"

// PerInstrumentConstraints bounds a single Decision's size.
type PerInstrumentConstraints struct {
	MaxNotional  Money           // default $50,000
	MaxUnits     Quantity        // default 1,000
	MaxEquityPct decimal.Decimal // default 0.10
}

// PortfolioConstraints bounds aggregate exposure across the whole book.
type PortfolioConstraints struct {
	MaxGrossNotional Money           // default $500,000
	MaxNetNotional   Money           // default $200,000
	MaxLeverage      decimal.Decimal // default 2.0
}

// OptionsConstraints bounds Greeks exposure for options positions.
type OptionsConstraints struct {
	MaxDeltaPerUnderlying  decimal.Decimal // default 100
	MaxPortfolioDelta      decimal.Decimal // default 500
	MaxPortfolioGamma      decimal.Decimal // default 50
	MaxPortfolioVega       decimal.Decimal // default 1,000
	MaxPortfolioTheta      decimal.Decimal // default -500 (floor, theta is typically negative)
	MaxContractsPerUnderlying Quantity     // default 100
}

// BuyingPowerConstraints bounds margin usage.
type BuyingPowerConstraints struct {
	MinBuyingPowerRatio decimal.Decimal // default 0.20
	MarginBuffer        decimal.Decimal // default 0.10
}

// RiskLimitsConstraints bounds per-trade risk and sizing sanity.
type RiskLimitsConstraints struct {
	MaxPerTradeRiskPct     decimal.Decimal // default 0.02 (2%)
	MinRiskRewardRatio     decimal.Decimal // default 1.5
	SizingSanityThreshold  decimal.Decimal // default 3.0
}

// PdtConstraints enforces FINRA Rule 4210 pattern-day-trader limits.
type PdtConstraints struct {
	Enabled          bool
	EquityThreshold  Money // default $25,000
	MaxDayTrades     int   // default 3
	RollingWindowDays int  // default 5
}

// ConstraintsConfig bundles every numeric limit the Risk Constraint Engine
// validates a DecisionPlan against. Values mirror the exact defaults from
// the original implementation's config layer (see DESIGN.md).
type ConstraintsConfig struct {
	PerInstrument PerInstrumentConstraints
	Portfolio     PortfolioConstraints
	Options       OptionsConstraints
	BuyingPower   BuyingPowerConstraints
	RiskLimits    RiskLimitsConstraints
	Pdt           PdtConstraints
}

// DefaultConstraintsConfig returns the stock configuration used when no
// RiskPolicy overrides it, matching the original config defaults exactly.
func DefaultConstraintsConfig() ConstraintsConfig {
	return ConstraintsConfig{
		PerInstrument: PerInstrumentConstraints{
			MaxNotional:  MoneyFromFloat(50_000),
			MaxUnits:     QuantityFromFloat(1_000),
			MaxEquityPct: decimal.NewFromFloat(0.10),
		},
		Portfolio: PortfolioConstraints{
			MaxGrossNotional: MoneyFromFloat(500_000),
			MaxNetNotional:   MoneyFromFloat(200_000),
			MaxLeverage:      decimal.NewFromFloat(2.0),
		},
		Options: OptionsConstraints{
			MaxDeltaPerUnderlying:     decimal.NewFromFloat(100),
			MaxPortfolioDelta:         decimal.NewFromFloat(500),
			MaxPortfolioGamma:         decimal.NewFromFloat(50),
			MaxPortfolioVega:          decimal.NewFromFloat(1_000),
			MaxPortfolioTheta:         decimal.NewFromFloat(-500),
			MaxContractsPerUnderlying: QuantityFromFloat(100),
		},
		BuyingPower: BuyingPowerConstraints{
			MinBuyingPowerRatio: decimal.NewFromFloat(0.20),
			MarginBuffer:        decimal.NewFromFloat(0.10),
		},
		RiskLimits: RiskLimitsConstraints{
			MaxPerTradeRiskPct:    decimal.NewFromFloat(0.02),
			MinRiskRewardRatio:    decimal.NewFromFloat(1.5),
			SizingSanityThreshold: decimal.NewFromFloat(3.0),
		},
		Pdt: PdtConstraints{
			Enabled:           true,
			EquityThreshold:   MoneyFromFloat(25_000),
			MaxDayTrades:      3,
			RollingWindowDays: 5,
		},
	}
}
