package strategy

import (
	"fmt"

	"coindeck/internal/domain"
)

// Compile-time interface check.
var _ Evaluator = (*MACrossover)(nil)

// MACrossover signals on simple moving average crossovers: buy when the
// short-period SMA crosses above the long-period SMA, sell when it crosses
// below. The crossover is detected against the previous bar's averages so
// the bar being signaled on never feeds its own indicator.
type MACrossover struct {
	short int
	long  int
}

// NewMACrossover builds an MACrossover from the parameters "shortPeriod"
// and "longPeriod".
func NewMACrossover(params map[string]float64) (*MACrossover, error) {
	short, err := intParam(params, "shortPeriod", 1)
	if err != nil {
		return nil, err
	}
	long, err := intParam(params, "longPeriod", 2)
	if err != nil {
		return nil, err
	}
	if short >= long {
		return nil, fmt.Errorf("shortPeriod %d must be less than longPeriod %d: %w", short, long, domain.ErrInvalidParameter)
	}
	return &MACrossover{short: short, long: long}, nil
}

// Name returns "ma_crossover".
func (m *MACrossover) Name() domain.StrategyType { return domain.StrategyMACrossover }

// Lookback returns the minimum window length: the long period.
func (m *MACrossover) Lookback() int { return m.long }

// Evaluate compares the current and previous short/long SMAs and signals on
// a fresh crossover. On the first bar where the long average becomes
// computable there is no established prior trend to cross, so the current
// relation of the averages decides directly.
func (m *MACrossover) Evaluate(window []float64, index int) domain.Signal {
	if len(window) < m.long {
		return domain.Signal{Action: domain.SignalHold, Reason: "insufficient data", Index: index}
	}

	shortMA := sma(window, m.short)
	longMA := sma(window, m.long)

	prev := window[:len(window)-1]
	prevShort := sma(prev, m.short)
	prevLong := sma(prev, m.long)
	if len(prev) < m.long {
		// No prior trend yet: act on the current state.
		prevShort, prevLong = 0, 0
	}

	switch {
	case prevShort <= prevLong && shortMA > longMA:
		return domain.Signal{
			Action: domain.SignalBuy,
			Reason: fmt.Sprintf("SMA(%d) %.4f crossed above SMA(%d) %.4f", m.short, shortMA, m.long, longMA),
			Index:  index,
		}
	case prevShort >= prevLong && shortMA < longMA:
		return domain.Signal{
			Action: domain.SignalSell,
			Reason: fmt.Sprintf("SMA(%d) %.4f crossed below SMA(%d) %.4f", m.short, shortMA, m.long, longMA),
			Index:  index,
		}
	default:
		return domain.Signal{Action: domain.SignalHold, Reason: "no crossover", Index: index}
	}
}
