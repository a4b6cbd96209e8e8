package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ParameterSet is one point in a grid search, keyed by parameter name.
type ParameterSet map[string]float64

// ParameterGrid expands named ranges into the cartesian product of every
// combination, one ParameterSet per combination.
type ParameterGrid struct {
	Names  []string
	Values [][]float64
}

// Expand returns the cartesian product of Values, ordered with the first
// name varying slowest, matching the deterministic job_id assignment below.
func (g ParameterGrid) Expand() []ParameterSet {
	if len(g.Names) == 0 {
		return nil
	}
	total := 1
	for _, vs := range g.Values {
		total *= len(vs)
	}
	sets := make([]ParameterSet, 0, total)
	indices := make([]int, len(g.Names))
	for {
		set := make(ParameterSet, len(g.Names))
		for i, name := range g.Names {
			set[name] = g.Values[i][indices[i]]
		}
		sets = append(sets, set)

		pos := len(indices) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(g.Values[pos]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return sets
}

// BacktestRunner executes a single parameter set and returns its result
// metrics. Implementations must be safe to call concurrently — each call
// must not mutate shared state, per the independent-job requirement.
type BacktestRunner func(ctx context.Context, jobID int, params ParameterSet) (JobMetrics, error)

// JobMetrics summarizes one completed backtest run.
type JobMetrics struct {
	TotalReturn   float64
	SharpeRatio   float64
	MaxDrawdown   float64
	TradeCount    int
}

// JobResult pairs one grid point with its outcome; Err is set on failure and
// does not fail the overall batch.
type JobResult struct {
	JobID  int
	Params ParameterSet
	Metrics JobMetrics
	Err    error
}

// GridSearchConfig controls the parallel/sequential threshold and worker cap.
type GridSearchConfig struct {
	MinParallelJobs int
	MaxWorkers      int
}

func DefaultGridSearchConfig() GridSearchConfig {
	return GridSearchConfig{MinParallelJobs: 4, MaxWorkers: 8}
}

// RunGridSearch executes run against every point in the grid. Below
// cfg.MinParallelJobs the jobs run sequentially on the calling goroutine;
// at or above it, an errgroup bounded by cfg.MaxWorkers fans them out. One
// job's failure is recorded in its JobResult and never aborts the batch.
func RunGridSearch(ctx context.Context, grid ParameterGrid, cfg GridSearchConfig, run BacktestRunner) []JobResult {
	sets := grid.Expand()
	results := make([]JobResult, len(sets))

	if len(sets) < cfg.MinParallelJobs {
		for i, params := range sets {
			results[i] = runJob(ctx, i, params, run)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MaxWorkers > 0 {
		g.SetLimit(cfg.MaxWorkers)
	}
	for i, params := range sets {
		i, params := i, params
		g.Go(func() error {
			results[i] = runJob(gctx, i, params, run)
			return nil // a single job's error is carried in JobResult, not propagated
		})
	}
	_ = g.Wait()
	return results
}

func runJob(ctx context.Context, jobID int, params ParameterSet, run BacktestRunner) JobResult {
	metrics, err := run(ctx, jobID, params)
	if err != nil {
		return JobResult{JobID: jobID, Params: params, Err: fmt.Errorf("job %d: %w", jobID, err)}
	}
	return JobResult{JobID: jobID, Params: params, Metrics: metrics}
}

// BestBySharpe selects the highest Sharpe ratio among successful results,
// breaking ties deterministically by the lowest job_id.
func BestBySharpe(results []JobResult) (JobResult, bool) {
	var best JobResult
	found := false
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if !found {
			best, found = r, true
			continue
		}
		if r.Metrics.SharpeRatio > best.Metrics.SharpeRatio {
			best = r
		} else if r.Metrics.SharpeRatio == best.Metrics.SharpeRatio && r.JobID < best.JobID {
			best = r
		}
	}
	return best, found
}

// SortByJobID restores deterministic ordering after concurrent execution.
func SortByJobID(results []JobResult) {
	sort.Slice(results, func(i, j int) bool { return results[i].JobID < results[j].JobID })
}

// SharpeRatio computes the annualized Sharpe ratio for a series of periodic
// returns against a per-period risk-free rate, using periodsPerYear to
// annualize (e.g. 252 for daily bars).
func SharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear float64) float64 {
	n := len(returns)
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r - riskFreeRate
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range returns {
		diff := (r - riskFreeRate) - mean
		variance += diff * diff
	}
	if n > 1 {
		variance /= float64(n - 1)
	}
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}
	return (mean / stddev) * math.Sqrt(periodsPerYear)
}
