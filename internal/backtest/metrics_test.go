package backtest

import (
	"math"
	"testing"
	"time"

	"coindeck/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeMetricsCore(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []domain.Trade{
		{PnL: 100, BalanceAfter: 1100, ExitTime: base.Add(24 * time.Hour)},
		{PnL: -50, BalanceAfter: 1050, ExitTime: base.Add(48 * time.Hour)},
	}
	equity := []domain.EquityPoint{
		{Timestamp: base, Balance: 1000},
		{Timestamp: base.Add(24 * time.Hour), Balance: 1100},
		{Timestamp: base.Add(48 * time.Hour), Balance: 1050},
	}

	m, adv := ComputeMetrics(trades, equity, 1000)

	if !almostEqual(m.NetProfit, 50) {
		t.Errorf("NetProfit = %v, want 50", m.NetProfit)
	}
	if !almostEqual(m.GrossProfit, 100) {
		t.Errorf("GrossProfit = %v, want 100", m.GrossProfit)
	}
	if !almostEqual(m.GrossLoss, 50) {
		t.Errorf("GrossLoss = %v, want 50", m.GrossLoss)
	}
	if !almostEqual(m.WinRate, 0.5) {
		t.Errorf("WinRate = %v, want 0.5", m.WinRate)
	}
	if !almostEqual(m.AverageTrade, 25) {
		t.Errorf("AverageTrade = %v, want 25", m.AverageTrade)
	}
	if !almostEqual(m.LargestProfit, 100) || !almostEqual(m.LargestLoss, -50) {
		t.Errorf("LargestProfit/LargestLoss = %v/%v, want 100/-50", m.LargestProfit, m.LargestLoss)
	}

	// Returns are 0.1 and -50/1100; expectancy = 0.5*avgWin - 0.5*avgLoss.
	wantExpectancy := 0.5*0.1 - 0.5*(50.0/1100.0)
	if !almostEqual(adv.Expectancy, wantExpectancy) {
		t.Errorf("Expectancy = %v, want %v", adv.Expectancy, wantExpectancy)
	}

	// Max drawdown: peak 1100 to trough 1050.
	if !almostEqual(adv.MaxDrawdown, 50.0/1100.0) {
		t.Errorf("MaxDrawdown = %v, want %v", adv.MaxDrawdown, 50.0/1100.0)
	}
}

func TestComputeMetricsDegenerate(t *testing.T) {
	m, adv := ComputeMetrics(nil, nil, 1000)

	if m.TotalTrades != 0 || m.NetProfit != 0 || m.WinRate != 0 {
		t.Errorf("zero-trade core metrics not zero: %+v", m)
	}
	for name, v := range map[string]float64{
		"sharpe":     adv.SharpeRatio,
		"sortino":    adv.SortinoRatio,
		"calmar":     adv.CalmarRatio,
		"omega":      adv.OmegaRatio,
		"ulcer":      adv.UlcerIndex,
		"var95":      adv.VaR95,
		"cvar95":     adv.CVaR95,
		"expectancy": adv.Expectancy,
	} {
		if v != 0 {
			t.Errorf("%s = %v on empty inputs, want 0", name, v)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s is not finite", name)
		}
	}
}

func TestValueAtRiskOrdering(t *testing.T) {
	// Twenty returns, several losses: the 99% VaR must be at least as
	// extreme as the 95% VaR.
	returns := []float64{
		-0.20, -0.12, -0.08, -0.05, -0.03, -0.01, 0.01, 0.02, 0.03, 0.04,
		0.05, 0.06, 0.02, 0.01, -0.02, 0.03, 0.04, 0.01, 0.02, 0.05,
	}

	v95 := valueAtRisk(returns, 0.95)
	v99 := valueAtRisk(returns, 0.99)

	if v95 >= 0 || v99 >= 0 {
		t.Fatalf("VaR should be negative with losses present: v95=%v v99=%v", v95, v99)
	}
	if math.Abs(v99) < math.Abs(v95) {
		t.Errorf("|VaR99| = %v < |VaR95| = %v", math.Abs(v99), math.Abs(v95))
	}

	// CVaR averages the tail at or below VaR, so it is at least as extreme.
	c95 := conditionalVaR(returns, 0.95)
	if c95 > v95 {
		t.Errorf("CVaR95 = %v should be <= VaR95 = %v", c95, v95)
	}
}

func TestValueAtRiskNoLosses(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.03, 0.04}
	if v := valueAtRisk(returns, 0.95); v != 0 {
		t.Errorf("VaR with no losses = %v, want 0", v)
	}
	if c := conditionalVaR(returns, 0.95); c != 0 {
		t.Errorf("CVaR with no losses = %v, want 0", c)
	}
}

func TestMaxDrawdown(t *testing.T) {
	base := time.Now()
	equity := []domain.EquityPoint{
		{Timestamp: base, Balance: 100},
		{Timestamp: base, Balance: 120},
		{Timestamp: base, Balance: 90},
		{Timestamp: base, Balance: 110},
		{Timestamp: base, Balance: 80},
	}
	want := (120.0 - 80.0) / 120.0
	if got := maxDrawdown(equity); !almostEqual(got, want) {
		t.Errorf("maxDrawdown = %v, want %v", got, want)
	}

	// Monotone equity has no drawdown.
	flat := []domain.EquityPoint{{Balance: 100}, {Balance: 110}, {Balance: 120}}
	if got := maxDrawdown(flat); got != 0 {
		t.Errorf("maxDrawdown on rising curve = %v, want 0", got)
	}
}

func TestOmega(t *testing.T) {
	// mean positive = 0.03, mean negative = -0.01.
	returns := []float64{0.02, 0.04, -0.01}
	if got := omega(returns); !almostEqual(got, 3.0) {
		t.Errorf("omega = %v, want 3", got)
	}
	if got := omega([]float64{0.01, 0.02}); got != 0 {
		t.Errorf("omega with no losses = %v, want 0", got)
	}
	if got := omega([]float64{-0.01}); got != 0 {
		t.Errorf("omega with no gains = %v, want 0", got)
	}
}

func TestSortinoNoNegativeReturns(t *testing.T) {
	returns := []float64{0.01, 0.02}
	if got := safeDiv(mean(returns), downsideDeviation(returns)); got != 0 {
		t.Errorf("sortino with no negative returns = %v, want 0", got)
	}
}

func TestAnnualizedReturn(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	equity := []domain.EquityPoint{
		{Timestamp: base, Balance: 1000},
		{Timestamp: base.AddDate(1, 0, 0), Balance: 1100},
	}
	got := annualizedReturn(equity, 1000)
	if math.Abs(got-0.1) > 1e-3 {
		t.Errorf("annualizedReturn over one year = %v, want ~0.1", got)
	}

	if got := annualizedReturn(equity[:1], 1000); got != 0 {
		t.Errorf("annualizedReturn with a single point = %v, want 0", got)
	}
}

func TestUlcerIndex(t *testing.T) {
	equity := []domain.EquityPoint{
		{Balance: 100}, {Balance: 100}, {Balance: 50},
	}
	// Drawdowns: 0, 0, 0.5 → sqrt(0.25/3).
	want := math.Sqrt(0.25 / 3)
	if got := ulcerIndex(equity); !almostEqual(got, want) {
		t.Errorf("ulcerIndex = %v, want %v", got, want)
	}
}
