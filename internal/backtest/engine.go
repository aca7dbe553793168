// Package backtest implements the simulation engine, the metrics
// calculator, and the grid-search parameter optimizer. A simulation is a
// deterministic fold over an ordered candle sequence: identical inputs
// always produce identical results.
package backtest

import (
	"fmt"
	"log/slog"

	"coindeck/internal/domain"
	"coindeck/internal/strategy"
)

// evalBudgetFactor caps evaluator invocations per simulation at this
// multiple of the candle count, guarding against pathological evaluators.
const evalBudgetFactor = 4

// Engine replays candle history through a strategy evaluator and produces a
// trade ledger, equity curve, and performance metrics.
type Engine struct {
	registry *strategy.Registry
	log      *slog.Logger

	// Workers bounds the optimizer's worker pool. Zero means one worker
	// per CPU.
	Workers int
}

// NewEngine creates an Engine that looks up evaluators in the given
// registry.
func NewEngine(registry *strategy.Registry, log *slog.Logger) *Engine {
	return &Engine{registry: registry, log: log}
}

// position is the simulator's current exposure.
type position int

const (
	flat position = iota
	long
	short
)

// Simulate runs strategy against candles under the given options and
// returns the complete backtest result.
//
// The simulator holds at most one open position. A signal opposing the
// current position closes it at the candle's close adjusted by slippage
// (against the trader) minus fees, then opens the new position sized as
// options.PositionFraction of the running balance. Any position still open
// after the last candle is closed at that candle's close with no slippage.
func (e *Engine) Simulate(strat domain.Strategy, options domain.BacktestOptions, candles []domain.Candle) (result *domain.BacktestResult, err error) {
	if err := validateOptions(options); err != nil {
		return nil, err
	}

	eval, err := e.registry.New(strat)
	if err != nil {
		return nil, err
	}

	lookback := eval.Lookback()
	if len(candles) == 0 || len(candles) < lookback {
		return nil, fmt.Errorf("strategy %s needs at least %d candles, have %d: %w",
			strat.Type, lookback, len(candles), domain.ErrInsufficientData)
	}

	// An evaluator panic is an engine failure, not a crash.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("evaluator panic: %v: %w", r, domain.ErrSimulation)
		}
	}()

	fraction := options.PositionFraction
	if fraction == 0 {
		fraction = domain.DefaultPositionFraction
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	balance := options.InitialBalance
	pos := flat
	var open *domain.Trade

	trades := make([]domain.Trade, 0, 16)
	equity := []domain.EquityPoint{{Timestamp: candles[0].Timestamp, Balance: balance}}

	evalBudget := evalBudgetFactor * len(candles)
	evalCount := 0

	// Skip the candles where the evaluator cannot yet emit signals.
	for i := lookback - 1; i < len(candles); i++ {
		evalCount++
		if evalCount > evalBudget {
			return nil, fmt.Errorf("evaluation budget exceeded after %d steps: %w", evalCount, domain.ErrSimulation)
		}

		sig := eval.Evaluate(closes[:i+1], i)
		if sig.Action == domain.SignalHold {
			continue
		}

		desired := long
		if sig.Action == domain.SignalSell {
			desired = short
		}
		if desired == pos {
			continue
		}

		candle := candles[i]

		if open != nil {
			closed := closeTrade(open, pos, candle, options.Slippage, options.FeeRate, balance)
			balance = closed.BalanceAfter
			trades = append(trades, closed)
			equity = append(equity, domain.EquityPoint{Timestamp: candle.Timestamp, Balance: balance})
			open = nil
			pos = flat
		}

		open = openTrade(desired, candle, options.Slippage, options.FeeRate, balance, fraction)
		pos = desired
	}

	// Force-close any position left open at the end of the range. The
	// synthetic close fills at the raw close price, without slippage.
	if open != nil {
		last := candles[len(candles)-1]
		closed := closeTrade(open, pos, last, 0, options.FeeRate, balance)
		balance = closed.BalanceAfter
		trades = append(trades, closed)
		equity = append(equity, domain.EquityPoint{Timestamp: last.Timestamp, Balance: balance})
	}

	metrics, advanced := ComputeMetrics(trades, equity, options.InitialBalance)

	return &domain.BacktestResult{
		Trades:          trades,
		EquityCurve:     equity,
		InitialBalance:  options.InitialBalance,
		FinalBalance:    balance,
		Metrics:         metrics,
		AdvancedMetrics: &advanced,
	}, nil
}

// openTrade opens a position at the candle's close adjusted by slippage
// against the trader: buys fill higher, sells fill lower. The entry fee is
// charged on the committed notional.
func openTrade(dir position, candle domain.Candle, slippage, feeRate, balance, fraction float64) *domain.Trade {
	fill := candle.Close * (1 + slippage)
	side := domain.TradeSideLong
	if dir == short {
		fill = candle.Close * (1 - slippage)
		side = domain.TradeSideShort
	}

	notional := balance * fraction
	return &domain.Trade{
		EntryTime:  candle.Timestamp,
		Side:       side,
		EntryPrice: fill,
		Size:       notional / fill,
		Fee:        notional * feeRate,
	}
}

// closeTrade finalizes an open trade at the candle's close adjusted by
// slippage: closing a long sells lower, closing a short buys higher. The
// exit fee on the exit notional is added to the trade's accumulated fee and
// both fees reduce the trade's pnl.
func closeTrade(open *domain.Trade, pos position, candle domain.Candle, slippage, feeRate, balance float64) domain.Trade {
	fill := candle.Close * (1 - slippage)
	if pos == short {
		fill = candle.Close * (1 + slippage)
	}

	exitFee := open.Size * fill * feeRate

	gross := (fill - open.EntryPrice) * open.Size
	if pos == short {
		gross = (open.EntryPrice - fill) * open.Size
	}

	t := *open
	t.ExitTime = candle.Timestamp
	t.ExitPrice = fill
	t.Fee += exitFee
	t.PnL = gross - t.Fee
	t.BalanceAfter = balance + t.PnL
	return t
}

// validateOptions checks the structural constraints on backtest options.
func validateOptions(o domain.BacktestOptions) error {
	switch {
	case o.InitialBalance <= 0:
		return fmt.Errorf("initialBalance %v must be > 0: %w", o.InitialBalance, domain.ErrInvalidParameter)
	case o.FeeRate < 0:
		return fmt.Errorf("feeRate %v must be >= 0: %w", o.FeeRate, domain.ErrInvalidParameter)
	case o.Slippage < 0:
		return fmt.Errorf("slippage %v must be >= 0: %w", o.Slippage, domain.ErrInvalidParameter)
	case o.PositionFraction < 0 || o.PositionFraction > 1:
		return fmt.Errorf("positionFraction %v must be in (0, 1]: %w", o.PositionFraction, domain.ErrInvalidParameter)
	}
	return nil
}
