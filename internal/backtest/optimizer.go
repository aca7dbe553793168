package backtest

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"coindeck/internal/domain"
)

// Objective names the metric a grid search ranks by.
type Objective string

const (
	ObjectiveSharpe    Objective = "sharpe"
	ObjectiveSortino   Objective = "sortino"
	ObjectiveCalmar    Objective = "calmar"
	ObjectiveNetProfit Objective = "netProfit"
)

// DefaultObjective is used when no objective is given: the Sharpe ratio, a
// risk-adjusted return rather than raw profit.
const DefaultObjective = ObjectiveSharpe

// Optimize exhaustively evaluates the Cartesian grid spanned by ranges,
// running one simulation per combination on a worker pool bounded by
// e.Workers (or the CPU count). Results come back ordered best-first by
// objective, with ties broken by lower max drawdown and then by earlier
// combination order. A failing combination is recorded with its error and
// ranked after every successful one; it never aborts the rest of the grid.
//
// Cancelling ctx stops scheduling new combinations; in-flight ones finish
// and the completed results are returned alongside ctx.Err().
func (e *Engine) Optimize(
	ctx context.Context,
	strat domain.Strategy,
	options domain.BacktestOptions,
	ranges []domain.ParameterRange,
	objective Objective,
	candles []domain.Candle,
) ([]domain.OptimizationResult, error) {
	if objective == "" {
		objective = DefaultObjective
	}
	if !knownObjective(objective) {
		return nil, fmt.Errorf("unknown objective %q: %w", objective, domain.ErrInvalidParameter)
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no parameter ranges given: %w", domain.ErrInvalidParameter)
	}

	values := make([][]float64, len(ranges))
	for i, r := range ranges {
		vs, err := expandRange(r)
		if err != nil {
			return nil, err
		}
		values[i] = vs
	}

	combos := cartesian(ranges, values)

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(combos) {
		workers = len(combos)
	}

	results := make([]domain.OptimizationResult, len(combos))
	scheduled := make([]bool, len(combos))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				params := combos[i]
				res, err := e.Simulate(strat.WithParams(params), options, candles)
				if err != nil {
					results[i] = domain.OptimizationResult{Parameters: params, Error: err.Error()}
					continue
				}
				results[i] = domain.OptimizationResult{Parameters: params, Result: res}
			}
		}()
	}

dispatch:
	for i := range combos {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
			scheduled[i] = true
		}
	}
	close(jobs)
	wg.Wait()

	ranked := rankResults(results, scheduled, objective)

	if e.log != nil {
		e.log.Debug("grid search finished",
			"combinations", len(combos),
			"completed", len(ranked),
			"objective", string(objective))
	}
	return ranked, ctx.Err()
}

// knownObjective reports whether the objective name is supported.
func knownObjective(o Objective) bool {
	switch o {
	case ObjectiveSharpe, ObjectiveSortino, ObjectiveCalmar, ObjectiveNetProfit:
		return true
	}
	return false
}

// objectiveValue extracts the ranking metric from a result.
func objectiveValue(res *domain.BacktestResult, o Objective) float64 {
	switch o {
	case ObjectiveSortino:
		return res.AdvancedMetrics.SortinoRatio
	case ObjectiveCalmar:
		return res.AdvancedMetrics.CalmarRatio
	case ObjectiveNetProfit:
		return res.Metrics.NetProfit
	default:
		return res.AdvancedMetrics.SharpeRatio
	}
}

// expandRange produces the inclusive arithmetic sequence described by a
// ParameterRange, validating it first.
func expandRange(r domain.ParameterRange) ([]float64, error) {
	switch {
	case r.Name == "":
		return nil, fmt.Errorf("parameter range with empty name: %w", domain.ErrInvalidParameter)
	case r.Step <= 0:
		return nil, fmt.Errorf("range %q step %v must be > 0: %w", r.Name, r.Step, domain.ErrInvalidParameter)
	case r.Min > r.Max:
		return nil, fmt.Errorf("range %q min %v exceeds max %v: %w", r.Name, r.Min, r.Max, domain.ErrInvalidParameter)
	}

	// Element count computed up front so float accumulation can't drop the
	// inclusive upper bound.
	count := int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
	values := make([]float64, count)
	for i := range values {
		values[i] = r.Min + r.Step*float64(i)
	}
	return values, nil
}

// cartesian enumerates the full parameter grid in deterministic order: the
// first range varies slowest, exactly like nested loops.
func cartesian(ranges []domain.ParameterRange, values [][]float64) []map[string]float64 {
	total := 1
	for _, vs := range values {
		total *= len(vs)
	}

	combos := make([]map[string]float64, 0, total)
	idx := make([]int, len(ranges))
	for {
		combo := make(map[string]float64, len(ranges))
		for i, r := range ranges {
			combo[r.Name] = values[i][idx[i]]
		}
		combos = append(combos, combo)

		// Odometer increment, last range fastest.
		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(values[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			return combos
		}
	}
}

// rankResults orders completed combinations best-first and assigns ranks.
func rankResults(results []domain.OptimizationResult, scheduled []bool, objective Objective) []domain.OptimizationResult {
	order := make([]int, 0, len(results))
	for i := range results {
		if scheduled[i] {
			order = append(order, i)
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := results[order[a]], results[order[b]]
		// Successful combinations rank ahead of failed ones.
		if (ra.Result == nil) != (rb.Result == nil) {
			return ra.Result != nil
		}
		if ra.Result == nil {
			return order[a] < order[b]
		}
		va := objectiveValue(ra.Result, objective)
		vb := objectiveValue(rb.Result, objective)
		if va != vb {
			return va > vb
		}
		da := ra.Result.AdvancedMetrics.MaxDrawdown
		db := rb.Result.AdvancedMetrics.MaxDrawdown
		if da != db {
			return da < db
		}
		return order[a] < order[b]
	})

	ranked := make([]domain.OptimizationResult, len(order))
	for rank, i := range order {
		r := results[i]
		r.Rank = rank + 1
		ranked[rank] = r
	}
	return ranked
}
