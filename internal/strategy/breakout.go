package strategy

import (
	"fmt"

	"coindeck/internal/domain"
)

// Compile-time interface check.
var _ Evaluator = (*Breakout)(nil)

// Breakout signals when the latest close escapes the range of the prior
// lookback window by more than a percentage threshold. The window extremes
// exclude the current candle.
type Breakout struct {
	lookback  int
	threshold float64 // percent, e.g. 1.5 for 1.5%
}

// NewBreakout builds a Breakout evaluator from the parameters
// "lookbackPeriod" and "breakoutThresholdPct".
func NewBreakout(params map[string]float64) (*Breakout, error) {
	lookback, err := intParam(params, "lookbackPeriod", 1)
	if err != nil {
		return nil, err
	}
	threshold, err := floatParam(params, "breakoutThresholdPct")
	if err != nil {
		return nil, err
	}
	if threshold < 0 {
		return nil, fmt.Errorf("breakoutThresholdPct %v must be >= 0: %w", threshold, domain.ErrInvalidParameter)
	}
	return &Breakout{lookback: lookback, threshold: threshold}, nil
}

// Name returns "breakout".
func (b *Breakout) Name() domain.StrategyType { return domain.StrategyBreakout }

// Lookback returns the minimum window length: the prior window plus the
// current candle.
func (b *Breakout) Lookback() int { return b.lookback + 1 }

// Evaluate compares the latest close to the prior window's extremes.
func (b *Breakout) Evaluate(window []float64, index int) domain.Signal {
	if len(window) < b.lookback+1 {
		return domain.Signal{Action: domain.SignalHold, Reason: "insufficient data", Index: index}
	}

	prior := window[len(window)-1-b.lookback : len(window)-1]
	highest, lowest := prior[0], prior[0]
	for _, p := range prior[1:] {
		if p > highest {
			highest = p
		}
		if p < lowest {
			lowest = p
		}
	}

	current := window[len(window)-1]
	upper := highest * (1 + b.threshold/100)
	lower := lowest * (1 - b.threshold/100)

	switch {
	case current > upper:
		return domain.Signal{
			Action: domain.SignalBuy,
			Reason: fmt.Sprintf("close %.4f broke above %d-bar high %.4f", current, b.lookback, highest),
			Index:  index,
		}
	case current < lower:
		return domain.Signal{
			Action: domain.SignalSell,
			Reason: fmt.Sprintf("close %.4f broke below %d-bar low %.4f", current, b.lookback, lowest),
			Index:  index,
		}
	default:
		return domain.Signal{Action: domain.SignalHold, Reason: "inside range", Index: index}
	}
}
