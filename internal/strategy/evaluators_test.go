package strategy

import (
	"testing"

	"coindeck/internal/domain"
)

func mustEvaluator(t *testing.T, s domain.Strategy) Evaluator {
	t.Helper()
	ev, err := Default().New(s)
	if err != nil {
		t.Fatalf("building %s evaluator: %v", s.Type, err)
	}
	return ev
}

func TestMACrossoverBuySignal(t *testing.T) {
	ev := mustEvaluator(t, domain.Strategy{
		Type:   domain.StrategyMACrossover,
		Params: map[string]float64{"shortPeriod": 2, "longPeriod": 5},
	})

	// Decline then recovery: the short SMA crosses above the long SMA at the
	// seventh bar.
	window := []float64{10, 9, 8, 7, 6, 7, 9}
	sig := ev.Evaluate(window, 6)
	if sig.Action != domain.SignalBuy {
		t.Fatalf("Evaluate = %s (%s), want buy", sig.Action, sig.Reason)
	}
	if sig.Index != 6 {
		t.Errorf("signal Index = %d, want 6", sig.Index)
	}
}

func TestMACrossoverNeverSellsOnRisingSeries(t *testing.T) {
	ev := mustEvaluator(t, domain.Strategy{
		Type:   domain.StrategyMACrossover,
		Params: map[string]float64{"shortPeriod": 2, "longPeriod": 5},
	})

	// A strictly rising series cannot make the short SMA cross below the
	// long SMA on historical data alone.
	series := []float64{100, 102, 104, 106, 108, 110, 109, 111, 113, 115}
	rising := series[:6]
	for i := range rising {
		sig := ev.Evaluate(rising[:i+1], i)
		if sig.Action == domain.SignalSell {
			t.Fatalf("sell signal at index %d on rising series: %s", i, sig.Reason)
		}
	}
}

func TestMACrossoverInsufficientData(t *testing.T) {
	ev := mustEvaluator(t, domain.Strategy{
		Type:   domain.StrategyMACrossover,
		Params: map[string]float64{"shortPeriod": 2, "longPeriod": 5},
	})

	sig := ev.Evaluate([]float64{10, 11, 12}, 2)
	if sig.Action != domain.SignalHold {
		t.Errorf("Evaluate on short window = %s, want hold", sig.Action)
	}
	if sig.Reason != "insufficient data" {
		t.Errorf("Reason = %q, want %q", sig.Reason, "insufficient data")
	}
}

func TestRSICrossings(t *testing.T) {
	ev := mustEvaluator(t, domain.Strategy{
		Type:   domain.StrategyRSI,
		Params: map[string]float64{"period": 3, "overbought": 70, "oversold": 30},
	})

	// Falling series drives RSI to 20 (below oversold), the rebound lifts it
	// to 60: an upward crossing through the oversold band.
	buyWindow := []float64{100, 90, 80, 70, 75, 85}
	if sig := ev.Evaluate(buyWindow, 5); sig.Action != domain.SignalBuy {
		t.Errorf("Evaluate(buy window) = %s (%s), want buy", sig.Action, sig.Reason)
	}

	// Rising series drives RSI to 80, the pullback drops it to 40: a
	// downward crossing through the overbought band.
	sellWindow := []float64{100, 110, 120, 130, 125, 115}
	if sig := ev.Evaluate(sellWindow, 5); sig.Action != domain.SignalSell {
		t.Errorf("Evaluate(sell window) = %s (%s), want sell", sig.Action, sig.Reason)
	}
}

func TestRSIValueEdgeCases(t *testing.T) {
	r := &RSI{period: 3, overbought: 70, oversold: 30}

	// All gains, no losses: RSI is 100.
	if got := r.value([]float64{1, 2, 3, 4}); got != 100 {
		t.Errorf("value(all gains) = %v, want 100", got)
	}
	// Too little data yields the neutral value.
	if got := r.value([]float64{1, 2}); got != neutralRSI {
		t.Errorf("value(short window) = %v, want %v", got, neutralRSI)
	}

	sig := r.Evaluate([]float64{1, 2}, 1)
	if sig.Action != domain.SignalHold || sig.Reason != "insufficient data" {
		t.Errorf("Evaluate(short window) = %s (%q), want hold (insufficient data)", sig.Action, sig.Reason)
	}
}

func TestBreakoutSignals(t *testing.T) {
	ev := mustEvaluator(t, domain.Strategy{
		Type:   domain.StrategyBreakout,
		Params: map[string]float64{"lookbackPeriod": 3, "breakoutThresholdPct": 0},
	})

	// Close above the prior 3-bar high.
	if sig := ev.Evaluate([]float64{10, 10.5, 10.2, 11}, 3); sig.Action != domain.SignalBuy {
		t.Errorf("upside breakout = %s (%s), want buy", sig.Action, sig.Reason)
	}
	// Close below the prior 3-bar low.
	if sig := ev.Evaluate([]float64{10, 9.8, 10.1, 9.5}, 3); sig.Action != domain.SignalSell {
		t.Errorf("downside breakout = %s (%s), want sell", sig.Action, sig.Reason)
	}
	// Inside the range.
	if sig := ev.Evaluate([]float64{10, 10.5, 10.2, 10.3}, 3); sig.Action != domain.SignalHold {
		t.Errorf("inside range = %s, want hold", sig.Action)
	}
}

func TestBreakoutThresholdWidensBands(t *testing.T) {
	ev := mustEvaluator(t, domain.Strategy{
		Type:   domain.StrategyBreakout,
		Params: map[string]float64{"lookbackPeriod": 3, "breakoutThresholdPct": 5},
	})

	// 11 is above the prior high 10.5 but not above 10.5 * 1.05 = 11.025.
	if sig := ev.Evaluate([]float64{10, 10.5, 10.2, 11}, 3); sig.Action != domain.SignalHold {
		t.Errorf("breakout below threshold = %s, want hold", sig.Action)
	}
}
