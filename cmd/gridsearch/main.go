// Command gridsearch drives the Backtest Fill Engine's parallel grid search
// over a parameter file and a candle series, printing the best result by
// Sharpe ratio. It is a one-shot batch tool, not a long-running service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/marketstructure/execengine/backtest"
	"github.com/marketstructure/execengine/domain"
	"github.com/marketstructure/execengine/stops"
)

// candleRow is the JSON wire shape for one OHLC bar in the input file.
type candleRow struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// scenarioFile is the JSON input describing one instrument's entry and its
// candle series to replay through the fill engine for every parameter set.
type scenarioFile struct {
	Symbol  string      `json:"symbol"`
	Side    string      `json:"side"`
	Entry   float64     `json:"entry"`
	Candles []candleRow `json:"candles"`
}

// gridFile is the JSON input describing the parameter grid to expand.
type gridFile struct {
	Names  []string    `json:"names"`
	Values [][]float64 `json:"values"`
}

func main() {
	scenarioPath := flag.String("scenario", "", "path to a scenario JSON file (symbol, side, entry, candles)")
	gridPath := flag.String("grid", "", "path to a parameter grid JSON file (names, values)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *scenarioPath == "" || *gridPath == "" {
		log.Fatal().Msg("both -scenario and -grid are required")
	}

	scenario, err := loadScenario(*scenarioPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load scenario")
	}
	grid, err := loadGrid(*gridPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load grid")
	}

	sets := grid.Expand()
	log.Info().Int("combinations", len(sets)).Int("candles", len(scenario.Candles)).Msg("🔍 starting grid search")

	cfg := backtest.DefaultGridSearchConfig()
	results := backtest.RunGridSearch(context.Background(), grid, cfg, func(ctx context.Context, jobID int, params backtest.ParameterSet) (backtest.JobMetrics, error) {
		return runJob(scenario, params)
	})

	backtest.SortByJobID(results)
	for _, r := range results {
		if r.Err != nil {
			log.Warn().Int("job_id", r.JobID).Err(r.Err).Msg("job failed")
			continue
		}
		log.Info().Int("job_id", r.JobID).Interface("params", r.Params).Float64("sharpe", r.Metrics.SharpeRatio).Float64("return", r.Metrics.TotalReturn).Msg("job complete")
	}

	best, ok := backtest.BestBySharpe(results)
	if !ok {
		log.Fatal().Msg("no successful jobs")
	}
	fmt.Printf("best job_id=%d sharpe=%.4f return=%.4f params=%v\n", best.JobID, best.Metrics.SharpeRatio, best.Metrics.TotalReturn, best.Params)
}

func loadScenario(path string) (scenarioFile, error) {
	var s scenarioFile
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	return s, json.Unmarshal(data, &s)
}

func loadGrid(path string) (backtest.ParameterGrid, error) {
	var raw gridFile
	data, err := os.ReadFile(path)
	if err != nil {
		return backtest.ParameterGrid{}, err
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return backtest.ParameterGrid{}, err
	}
	return backtest.ParameterGrid{Names: raw.Names, Values: raw.Values}, nil
}

// runJob replays scenario.Candles through SimulateFill using the job's
// stop_pct/target_pct/slippage_bps parameters, treating every bar as an
// independent trade re-entered at the prior close once a position closes.
func runJob(scenario scenarioFile, params backtest.ParameterSet) (backtest.JobMetrics, error) {
	side := domain.SideBuy
	if scenario.Side == "sell" {
		side = domain.SideSell
	}
	symbol, err := domain.NewSymbol(scenario.Symbol)
	if err != nil {
		return backtest.JobMetrics{}, fmt.Errorf("invalid symbol: %w", err)
	}

	stopPct := decimal.NewFromFloat(params["stop_pct"])
	targetPct := decimal.NewFromFloat(params["target_pct"])
	slippageBps := decimal.NewFromFloat(params["slippage_bps"])

	slippage := backtest.FixedBps{EntryBps: slippageBps, ExitBps: slippageBps}
	commission := backtest.CommissionModel{PerUnitBase: decimal.NewFromFloat(0.005), MinCommission: domain.MoneyFromFloat(1)}
	class := backtest.ClassifyInstrument(symbol)

	entry := domain.MoneyFromFloat(scenario.Entry)
	direction := domain.DirectionLong
	if side == domain.SideSell {
		direction = domain.DirectionShort
	}

	var returns []float64
	tradeCount := 0
	for _, c := range scenario.Candles {
		stopLoss, takeProfit := bracketPrices(entry, stopPct, targetPct, direction)
		levels := domain.StopLevels{StopLoss: stopLoss, TakeProfit: takeProfit, EntryPrice: entry, Direction: direction, Denomination: domain.DenominationUnderlyingPrice}

		candle := stops.Candle{
			Open: domain.MoneyFromFloat(c.Open), High: domain.MoneyFromFloat(c.High),
			Low: domain.MoneyFromFloat(c.Low), Close: domain.MoneyFromFloat(c.Close),
		}
		result := backtest.SimulateFill(levels, candle, domain.QuantityFromFloat(100), class, side, slippage, commission,
			stops.StopFirst, backtest.PartialFillConfig{}, decimal.Zero)

		if result.Filled {
			tradeCount++
			pnl := result.FillPrice.Decimal().Sub(entry.Decimal())
			if direction == domain.DirectionShort {
				pnl = pnl.Neg()
			}
			ret, _ := pnl.Div(entry.Decimal()).Float64()
			returns = append(returns, ret)
			entry = domain.NewMoney(candle.Close.Decimal())
		}
	}

	total := 0.0
	for _, r := range returns {
		total += r
	}
	return backtest.JobMetrics{
		TotalReturn: total,
		SharpeRatio: backtest.SharpeRatio(returns, 0, 252),
		TradeCount:  tradeCount,
	}, nil
}

func bracketPrices(entry domain.Money, stopPct, targetPct decimal.Decimal, direction domain.Direction) (domain.Money, domain.Money) {
	if direction == domain.DirectionShort {
		return domain.NewMoney(entry.Decimal().Mul(decimal.NewFromInt(1).Add(stopPct))),
			domain.NewMoney(entry.Decimal().Mul(decimal.NewFromInt(1).Sub(targetPct)))
	}
	return domain.NewMoney(entry.Decimal().Mul(decimal.NewFromInt(1).Sub(stopPct))),
		domain.NewMoney(entry.Decimal().Mul(decimal.NewFromInt(1).Add(targetPct)))
}
