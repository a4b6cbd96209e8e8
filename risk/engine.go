// Package risk implements the Risk Constraint Engine: a pure, deterministic
// function from (DecisionPlan, RiskContext) to ConstraintResult. It performs
// no I/O and holds no mutable state — callers own context assembly and
// logging of the result.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/marketstructure/execengine/domain"
)

// ReferenceMarks supplies a fallback mark price per instrument for Decisions
// that omit a limit price, per spec.md's "limit_price if given else a
// reference mark" rule.
type ReferenceMarks map[domain.InstrumentId]domain.Money

// Validate runs all seven checks against plan in a fixed order and returns
// every violation found; it never short-circuits on the first Error.
func Validate(plan domain.DecisionPlan, ctx domain.RiskContext, marks ReferenceMarks, limits domain.ConstraintsConfig) domain.ConstraintResult {
	result := domain.ConstraintResult{}

	result.Violations = append(result.Violations, checkPerInstrumentSize(plan, ctx, marks, limits.PerInstrument)...)
	result.Violations = append(result.Violations, checkPortfolioExposure(plan, ctx, marks, limits.Portfolio)...)
	result.Violations = append(result.Violations, checkOptionsGreeks(plan, ctx, limits.Options)...)
	result.Violations = append(result.Violations, checkBuyingPower(plan, ctx, marks, limits.BuyingPower)...)
	result.Violations = append(result.Violations, checkPdt(plan, ctx, limits.Pdt)...)
	result.Violations = append(result.Violations, checkConflicts(plan, ctx)...)
	result.Violations = append(result.Violations, checkSizingSanity(plan, ctx, limits.RiskLimits)...)

	result.Recompute()
	return result
}

func priceHint(d domain.Decision, marks ReferenceMarks) (domain.Money, bool) {
	if d.LimitPrice != nil {
		return *d.LimitPrice, true
	}
	m, ok := marks[d.InstrumentID]
	return m, ok
}

func decisionQuantity(d domain.Decision) domain.Quantity {
	return d.Size.Quantity
}

// 1. Per-instrument size.
func checkPerInstrumentSize(plan domain.DecisionPlan, ctx domain.RiskContext, marks ReferenceMarks, lim domain.PerInstrumentConstraints) []domain.ConstraintViolation {
	var out []domain.ConstraintViolation
	for _, d := range plan.Decisions {
		if d.Action != domain.ActionBuy && d.Action != domain.ActionSell {
			continue
		}
		price, ok := priceHint(d, marks)
		if !ok {
			continue
		}
		qty := decisionQuantity(d)
		notional := price.MulScalar(qty.Decimal())

		iid := d.InstrumentID
		if notional.GreaterThan(lim.MaxNotional) {
			out = append(out, domain.ConstraintViolation{
				Code: "PER_INSTRUMENT_NOTIONAL_EXCEEDED", Severity: domain.SeverityError,
				Message:      "decision notional exceeds per-instrument max_notional",
				InstrumentID: &iid, FieldPath: "notional",
				Observed: notional.String(), Limit: lim.MaxNotional.String(),
			})
		}
		if qty.GreaterThan(lim.MaxUnits) {
			out = append(out, domain.ConstraintViolation{
				Code: "MAX_UNITS_EXCEEDED", Severity: domain.SeverityError,
				Message:      "decision quantity exceeds per-instrument max_units",
				InstrumentID: &iid, FieldPath: "size.quantity",
				Observed: qty.String(), Limit: lim.MaxUnits.String(),
			})
		}
		if !ctx.Equity.IsZero() {
			pct := notional.Decimal().Div(ctx.Equity.Decimal())
			if pct.GreaterThan(lim.MaxEquityPct) {
				out = append(out, domain.ConstraintViolation{
					Code: "MAX_EQUITY_PCT_EXCEEDED", Severity: domain.SeverityError,
					Message:      "decision notional as pct of equity exceeds max_equity_pct",
					InstrumentID: &iid, FieldPath: "notional_pct_equity",
					Observed: pct.String(), Limit: lim.MaxEquityPct.String(),
				})
			}
		}
	}
	return out
}

// 2. Portfolio exposure.
func checkPortfolioExposure(plan domain.DecisionPlan, ctx domain.RiskContext, marks ReferenceMarks, lim domain.PortfolioConstraints) []domain.ConstraintViolation {
	var out []domain.ConstraintViolation

	gross := ctx.Exposure.Gross
	net := ctx.Exposure.Net
	for _, d := range plan.Decisions {
		price, ok := priceHint(d, marks)
		if !ok {
			continue
		}
		notional := price.MulScalar(decisionQuantity(d).Decimal())
		gross = gross.Add(notional)
		switch d.Direction {
		case domain.DirectionLong:
			net = net.Add(notional)
		case domain.DirectionShort:
			net = net.Sub(notional)
		}
	}

	if gross.GreaterThan(lim.MaxGrossNotional) {
		out = append(out, domain.ConstraintViolation{
			Code: "MAX_GROSS_NOTIONAL_EXCEEDED", Severity: domain.SeverityError,
			Message: "post-plan gross notional exceeds max_gross_notional",
			Observed: gross.String(), Limit: lim.MaxGrossNotional.String(),
		})
	}
	netAbs := net
	if netAbs.IsNegative() {
		netAbs = netAbs.Neg()
	}
	if netAbs.GreaterThan(lim.MaxNetNotional) {
		out = append(out, domain.ConstraintViolation{
			Code: "MAX_NET_NOTIONAL_EXCEEDED", Severity: domain.SeverityError,
			Message: "post-plan net notional exceeds max_net_notional",
			Observed: netAbs.String(), Limit: lim.MaxNetNotional.String(),
		})
	}
	if !ctx.Equity.IsZero() {
		leverage := gross.Decimal().Div(ctx.Equity.Decimal())
		if leverage.GreaterThan(lim.MaxLeverage) {
			out = append(out, domain.ConstraintViolation{
				Code: "MAX_LEVERAGE_EXCEEDED", Severity: domain.SeverityError,
				Message: "post-plan leverage exceeds max_leverage",
				Observed: leverage.String(), Limit: lim.MaxLeverage.String(),
			})
		}
	}
	return out
}

// 3. Options Greeks. Only evaluated if the plan touches any option instrument
// (detected via ctx.Positions' Greeks presence, since Decision itself carries
// no option/equity tag beyond InstrumentID).
func checkOptionsGreeks(plan domain.DecisionPlan, ctx domain.RiskContext, lim domain.OptionsConstraints) []domain.ConstraintViolation {
	touchesOptions := false
	for _, d := range plan.Decisions {
		if pos, ok := ctx.Positions[d.InstrumentID]; ok && pos.Greeks != nil {
			touchesOptions = true
			break
		}
	}
	if !touchesOptions {
		return nil
	}

	var out []domain.ConstraintViolation
	portfolio := ctx.Greeks

	absGt := func(v, limit decimal.Decimal) bool {
		abs := v
		if abs.IsNegative() {
			abs = abs.Neg()
		}
		return abs.GreaterThan(limit)
	}

	if absGt(portfolio.Delta, lim.MaxPortfolioDelta) {
		out = append(out, domain.ConstraintViolation{
			Code: "MAX_PORTFOLIO_DELTA_EXCEEDED", Severity: domain.SeverityError,
			Message: "portfolio delta exceeds limit", Observed: portfolio.Delta.String(), Limit: lim.MaxPortfolioDelta.String(),
		})
	}
	if absGt(portfolio.Gamma, lim.MaxPortfolioGamma) {
		out = append(out, domain.ConstraintViolation{
			Code: "MAX_PORTFOLIO_GAMMA_EXCEEDED", Severity: domain.SeverityError,
			Message: "portfolio gamma exceeds limit", Observed: portfolio.Gamma.String(), Limit: lim.MaxPortfolioGamma.String(),
		})
	}
	if absGt(portfolio.Vega, lim.MaxPortfolioVega) {
		out = append(out, domain.ConstraintViolation{
			Code: "MAX_PORTFOLIO_VEGA_EXCEEDED", Severity: domain.SeverityError,
			Message: "portfolio vega exceeds limit", Observed: portfolio.Vega.String(), Limit: lim.MaxPortfolioVega.String(),
		})
	}
	if portfolio.Theta.LessThan(lim.MaxPortfolioTheta) {
		out = append(out, domain.ConstraintViolation{
			Code: "MAX_PORTFOLIO_THETA_BREACHED", Severity: domain.SeverityError,
			Message: "portfolio theta below floor", Observed: portfolio.Theta.String(), Limit: lim.MaxPortfolioTheta.String(),
		})
	}

	perUnderlyingDelta := map[domain.InstrumentId]decimal.Decimal{}
	contractsPerUnderlying := map[domain.InstrumentId]decimal.Decimal{}
	for iid, pos := range ctx.Positions {
		if pos.Greeks == nil {
			continue
		}
		perUnderlyingDelta[iid] = perUnderlyingDelta[iid].Add(pos.Greeks.Delta)
		contractsPerUnderlying[iid] = contractsPerUnderlying[iid].Add(pos.Quantity.Decimal())
	}
	for iid, delta := range perUnderlyingDelta {
		id := iid
		if absGt(delta, lim.MaxDeltaPerUnderlying) {
			out = append(out, domain.ConstraintViolation{
				Code: "MAX_DELTA_PER_UNDERLYING_EXCEEDED", Severity: domain.SeverityError,
				Message: "per-underlying delta exceeds limit", InstrumentID: &id,
				Observed: delta.String(), Limit: lim.MaxDeltaPerUnderlying.String(),
			})
		}
	}
	for iid, contracts := range contractsPerUnderlying {
		id := iid
		if contracts.GreaterThan(lim.MaxContractsPerUnderlying.Decimal()) {
			out = append(out, domain.ConstraintViolation{
				Code: "MAX_CONTRACTS_PER_UNDERLYING_EXCEEDED", Severity: domain.SeverityError,
				Message: "contracts per underlying exceeds limit", InstrumentID: &id,
				Observed: contracts.String(), Limit: lim.MaxContractsPerUnderlying.String(),
			})
		}
	}
	return out
}

// 4. Buying power. Simplified 50% Reg-T margin for equities.
func checkBuyingPower(plan domain.DecisionPlan, ctx domain.RiskContext, marks ReferenceMarks, lim domain.BuyingPowerConstraints) []domain.ConstraintViolation {
	var out []domain.ConstraintViolation

	incrementalGross := decimal.Zero
	for _, d := range plan.Decisions {
		price, ok := priceHint(d, marks)
		if !ok {
			continue
		}
		incrementalGross = incrementalGross.Add(price.MulScalar(decisionQuantity(d).Decimal()).Decimal())
	}

	half := decimal.NewFromFloat(0.5)
	required := incrementalGross.Mul(half)

	if domain.NewMoney(required).GreaterThan(ctx.BuyingPower) {
		out = append(out, domain.ConstraintViolation{
			Code: "INSUFFICIENT_BUYING_POWER", Severity: domain.SeverityError,
			Message: "required margin exceeds available buying power",
			Observed: required.String(), Limit: ctx.BuyingPower.String(),
		})
		return out
	}

	remaining := ctx.BuyingPower.Sub(domain.NewMoney(required))
	buffered := remaining.MulScalar(decimal.NewFromInt(1).Sub(lim.MarginBuffer))
	if !ctx.Equity.IsZero() {
		ratio := buffered.Decimal().Div(ctx.Equity.Decimal())
		if ratio.LessThan(lim.MinBuyingPowerRatio) {
			out = append(out, domain.ConstraintViolation{
				Code: "MIN_BUYING_POWER_RATIO_BREACHED", Severity: domain.SeverityError,
				Message: "buying_power/equity ratio below min_buying_power_ratio after margin buffer",
				Observed: ratio.String(), Limit: lim.MinBuyingPowerRatio.String(),
			})
		}
	}
	return out
}

// 5. PDT. Only enforced when equity is below the threshold.
func checkPdt(plan domain.DecisionPlan, ctx domain.RiskContext, lim domain.PdtConstraints) []domain.ConstraintViolation {
	if !lim.Enabled || ctx.Equity.GreaterThanOrEqual(lim.EquityThreshold) {
		return nil
	}

	dayTradeOpens := 0
	for _, d := range plan.Decisions {
		if d.Action == domain.ActionBuy || d.Action == domain.ActionSell {
			dayTradeOpens++
		}
	}
	used := ctx.PdtStatus.DayTradesUsed
	if used+dayTradeOpens > lim.MaxDayTrades {
		return []domain.ConstraintViolation{{
			Code: "PDT_LIMIT_EXCEEDED", Severity: domain.SeverityError,
			Message:  fmt.Sprintf("day trade count would exceed max_day_trades within rolling %d-day window", lim.RollingWindowDays),
			Observed: fmt.Sprintf("%d", used+dayTradeOpens),
			Limit:    fmt.Sprintf("%d", lim.MaxDayTrades),
		}}
	}
	return nil
}

// 6. Conflicts within a single plan.
func checkConflicts(plan domain.DecisionPlan, ctx domain.RiskContext) []domain.ConstraintViolation {
	var out []domain.ConstraintViolation

	byInstrument := map[domain.InstrumentId][]domain.Decision{}
	for _, d := range plan.Decisions {
		byInstrument[d.InstrumentID] = append(byInstrument[d.InstrumentID], d)
	}

	for iid, decisions := range byInstrument {
		id := iid
		hasBuy, hasSell := false, false
		hasLong, hasShort := false, false
		for _, d := range decisions {
			switch d.Action {
			case domain.ActionBuy:
				hasBuy = true
			case domain.ActionSell:
				hasSell = true
			}
			switch d.Direction {
			case domain.DirectionLong:
				hasLong = true
			case domain.DirectionShort:
				hasShort = true
			}
			if (d.Action == domain.ActionSell || d.Action == domain.ActionClose) {
				if _, hasPosition := ctx.Positions[iid]; !hasPosition {
					out = append(out, domain.ConstraintViolation{
						Code: "POSITION_MISMATCH", Severity: domain.SeverityWarning,
						Message: "sell/close decision with no existing position", InstrumentID: &id,
					})
				}
			}
		}
		if hasBuy && hasSell {
			out = append(out, domain.ConstraintViolation{
				Code: "CONFLICTING_BUY_SELL", Severity: domain.SeverityError,
				Message: "plan contains both BUY and SELL for the same instrument", InstrumentID: &id,
			})
		}
		if hasLong && hasShort {
			out = append(out, domain.ConstraintViolation{
				Code: "CONFLICTING_DIRECTION", Severity: domain.SeverityError,
				Message: "plan contains opposing Long/Short directions for the same instrument", InstrumentID: &id,
			})
		}
	}
	return out
}

// 7. Sizing sanity.
func checkSizingSanity(plan domain.DecisionPlan, ctx domain.RiskContext, lim domain.RiskLimitsConstraints) []domain.ConstraintViolation {
	if ctx.RecentSizeMedian == nil {
		return nil
	}
	median := *ctx.RecentSizeMedian
	if median.IsZero() {
		return nil
	}

	var out []domain.ConstraintViolation
	for _, d := range plan.Decisions {
		id := d.InstrumentID
		qty := decisionQuantity(d)
		threshold := median.Decimal().Mul(lim.SizingSanityThreshold)
		if qty.Decimal().GreaterThan(threshold) {
			out = append(out, domain.ConstraintViolation{
				Code: "SIZING_OUTLIER", Severity: domain.SeverityWarning,
				Message:      "decision size exceeds sanity_threshold_multiplier times recent median",
				InstrumentID: &id, Observed: qty.String(), Limit: threshold.String(),
			})
		}
	}
	return out
}
