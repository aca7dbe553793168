package domain

import "errors"

// Sentinel errors for the engine's failure taxonomy. Callers classify
// failures with errors.Is; sites that raise them wrap with fmt.Errorf and
// %w to attach detail.
var (
	// ErrInsufficientData means the candle sequence is empty or shorter than
	// the strategy's minimum lookback. Data-provider "unavailable" failures
	// surface as this error, never as a synthetic default result.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidParameter means malformed backtest options, strategy
	// parameters, or optimizer ranges. Raised before any simulation runs.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrSimulation means an unexpected failure during evaluation or
	// execution, such as an unregistered strategy type or a runaway
	// evaluator.
	ErrSimulation = errors.New("simulation error")
)
