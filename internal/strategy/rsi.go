package strategy

import (
	"fmt"

	"coindeck/internal/domain"
)

// Compile-time interface check.
var _ Evaluator = (*RSI)(nil)

// neutralRSI is the value reported when there is not enough data to compute
// a real RSI.
const neutralRSI = 50.0

// RSI signals on relative strength index threshold crossings: buy when the
// RSI crosses up through the oversold level, sell when it crosses down
// through the overbought level. Average gain and loss use simple averaging
// of the price deltas over the period (not exponential smoothing).
type RSI struct {
	period     int
	overbought float64
	oversold   float64
}

// NewRSI builds an RSI evaluator from the parameters "period", "overbought",
// and "oversold".
func NewRSI(params map[string]float64) (*RSI, error) {
	period, err := intParam(params, "period", 2)
	if err != nil {
		return nil, err
	}
	overbought, err := floatParam(params, "overbought")
	if err != nil {
		return nil, err
	}
	oversold, err := floatParam(params, "oversold")
	if err != nil {
		return nil, err
	}
	if oversold <= 0 || overbought >= 100 || oversold >= overbought {
		return nil, fmt.Errorf("require 0 < oversold (%v) < overbought (%v) < 100: %w",
			oversold, overbought, domain.ErrInvalidParameter)
	}
	return &RSI{period: period, overbought: overbought, oversold: oversold}, nil
}

// Name returns "rsi".
func (r *RSI) Name() domain.StrategyType { return domain.StrategyRSI }

// Lookback returns the minimum window length: one more bar than the period,
// so a full set of price deltas exists.
func (r *RSI) Lookback() int { return r.period + 1 }

// Evaluate signals when the RSI crosses a threshold between the previous
// and current bar.
func (r *RSI) Evaluate(window []float64, index int) domain.Signal {
	cur := r.value(window)
	if len(window) <= r.period {
		return domain.Signal{Action: domain.SignalHold, Reason: "insufficient data", Index: index}
	}
	prev := r.value(window[:len(window)-1])

	switch {
	case prev <= r.oversold && cur > r.oversold:
		return domain.Signal{
			Action: domain.SignalBuy,
			Reason: fmt.Sprintf("RSI(%d) %.2f crossed above oversold %.2f", r.period, cur, r.oversold),
			Index:  index,
		}
	case prev >= r.overbought && cur < r.overbought:
		return domain.Signal{
			Action: domain.SignalSell,
			Reason: fmt.Sprintf("RSI(%d) %.2f crossed below overbought %.2f", r.period, cur, r.overbought),
			Index:  index,
		}
	default:
		return domain.Signal{
			Action: domain.SignalHold,
			Reason: fmt.Sprintf("RSI(%d) %.2f inside bands", r.period, cur),
			Index:  index,
		}
	}
}

// value computes the RSI over the last period deltas of the window, or the
// neutral value when the window is too short.
func (r *RSI) value(window []float64) float64 {
	if len(window) <= r.period {
		return neutralRSI
	}

	var gain, loss float64
	for i := len(window) - r.period; i < len(window); i++ {
		d := window[i] - window[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(r.period)
	avgLoss := loss / float64(r.period)

	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}
