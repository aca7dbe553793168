// Package strategy defines the signal Evaluator interface for trading
// strategies and provides a Registry mapping strategy types to evaluator
// constructors.
package strategy

import (
	"fmt"
	"math"
	"sort"

	"coindeck/internal/domain"
)

// Evaluator turns a closing-price window into a trading signal. The window
// always ends at the candle being evaluated; evaluators must never reach
// past it. Implementations are pure and safe for concurrent use.
type Evaluator interface {
	// Name returns the strategy type this evaluator implements.
	Name() domain.StrategyType

	// Lookback returns the minimum window length required before the
	// evaluator can emit a non-hold signal.
	Lookback() int

	// Evaluate returns the signal for the candle at index, given the
	// closing-price series up to and including that candle.
	Evaluate(window []float64, index int) domain.Signal
}

// Factory builds an Evaluator from a strategy's parameter map. It returns an
// error wrapping domain.ErrInvalidParameter when required parameters are
// missing or out of range.
type Factory func(params map[string]float64) (Evaluator, error)

// Registry holds evaluator factories keyed by strategy type.
type Registry struct {
	factories map[domain.StrategyType]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[domain.StrategyType]Factory),
	}
}

// Default returns a Registry with all built-in strategies registered.
func Default() *Registry {
	r := NewRegistry()
	r.Register(domain.StrategyMACrossover, func(p map[string]float64) (Evaluator, error) {
		return NewMACrossover(p)
	})
	r.Register(domain.StrategyRSI, func(p map[string]float64) (Evaluator, error) {
		return NewRSI(p)
	})
	r.Register(domain.StrategyBreakout, func(p map[string]float64) (Evaluator, error) {
		return NewBreakout(p)
	})
	return r
}

// Register adds a factory for the given strategy type, replacing any
// existing registration.
func (r *Registry) Register(t domain.StrategyType, f Factory) {
	r.factories[t] = f
}

// New builds an evaluator for the given strategy definition. An unregistered
// type is a simulation error; bad parameters are an invalid-parameter error.
func (r *Registry) New(s domain.Strategy) (Evaluator, error) {
	f, ok := r.factories[s.Type]
	if !ok {
		return nil, fmt.Errorf("no evaluator registered for strategy type %q: %w", s.Type, domain.ErrSimulation)
	}
	return f(s.Params)
}

// List returns a sorted slice of all registered strategy types.
func (r *Registry) List() []domain.StrategyType {
	types := make([]domain.StrategyType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ParamNames returns the parameter names a built-in strategy type accepts,
// for API discovery. Unknown types return nil.
func ParamNames(t domain.StrategyType) []string {
	switch t {
	case domain.StrategyMACrossover:
		return []string{"shortPeriod", "longPeriod"}
	case domain.StrategyRSI:
		return []string{"period", "overbought", "oversold"}
	case domain.StrategyBreakout:
		return []string{"lookbackPeriod", "breakoutThresholdPct"}
	default:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Parameter helpers
// ---------------------------------------------------------------------------

// intParam reads a required parameter and validates it is an integer >= min.
func intParam(params map[string]float64, name string, min int) (int, error) {
	v, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q: %w", name, domain.ErrInvalidParameter)
	}
	if v != math.Trunc(v) || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parameter %q = %v is not an integer: %w", name, v, domain.ErrInvalidParameter)
	}
	n := int(v)
	if n < min {
		return 0, fmt.Errorf("parameter %q = %d must be >= %d: %w", name, n, min, domain.ErrInvalidParameter)
	}
	return n, nil
}

// floatParam reads a required numeric parameter.
func floatParam(params map[string]float64, name string) (float64, error) {
	v, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q: %w", name, domain.ErrInvalidParameter)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parameter %q is not a finite number: %w", name, domain.ErrInvalidParameter)
	}
	return v, nil
}

// sma returns the simple moving average of the last n prices. When fewer
// than n prices are available it averages what exists; with an empty series
// it returns 0.
func sma(prices []float64, n int) float64 {
	if len(prices) == 0 || n <= 0 {
		return 0
	}
	if n > len(prices) {
		n = len(prices)
	}
	var sum float64
	for _, p := range prices[len(prices)-n:] {
		sum += p
	}
	return sum / float64(n)
}
