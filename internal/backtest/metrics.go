package backtest

import (
	"math"
	"sort"

	"coindeck/internal/domain"
)

// hoursPerYear converts an equity-curve time span into years for the
// annualized return.
const hoursPerYear = 24 * 365

// ComputeMetrics derives the core and advanced statistics from a trade
// ledger and equity curve. All ratio metrics operate on per-trade
// fractional returns pnl / balanceBefore, and every ratio returns 0 on
// degenerate inputs (no trades, zero variance, zero drawdown) instead of
// propagating NaN or Inf.
func ComputeMetrics(trades []domain.Trade, equity []domain.EquityPoint, initialBalance float64) (domain.Metrics, domain.AdvancedMetrics) {
	m := domain.Metrics{TotalTrades: len(trades)}

	returns := make([]float64, 0, len(trades))
	for _, t := range trades {
		m.NetProfit += t.PnL
		if t.PnL > 0 {
			m.WinningTrades++
			m.GrossProfit += t.PnL
			if t.PnL > m.LargestProfit {
				m.LargestProfit = t.PnL
			}
		} else if t.PnL < 0 {
			m.LosingTrades++
			m.GrossLoss += -t.PnL
			if t.PnL < m.LargestLoss {
				m.LargestLoss = t.PnL
			}
		}

		before := t.BalanceAfter - t.PnL
		returns = append(returns, safeDiv(t.PnL, before))
	}

	if len(trades) > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(len(trades))
		m.AverageTrade = m.NetProfit / float64(len(trades))
	}
	m.AnnualizedReturn = annualizedReturn(equity, initialBalance)

	adv := domain.AdvancedMetrics{
		MaxDrawdown: maxDrawdown(equity),
		UlcerIndex:  ulcerIndex(equity),
	}
	adv.SharpeRatio = safeDiv(mean(returns), stdDev(returns))
	adv.SortinoRatio = safeDiv(mean(returns), downsideDeviation(returns))
	adv.CalmarRatio = calmar(equity, initialBalance, adv.MaxDrawdown)
	adv.OmegaRatio = omega(returns)
	adv.VaR95 = valueAtRisk(returns, 0.95)
	adv.VaR99 = valueAtRisk(returns, 0.99)
	adv.CVaR95 = conditionalVaR(returns, 0.95)
	adv.CVaR99 = conditionalVaR(returns, 0.99)
	adv.Expectancy = expectancy(returns)

	return m, adv
}

// ---------------------------------------------------------------------------
// Equity-curve statistics
// ---------------------------------------------------------------------------

// maxDrawdown is the largest peak-to-trough fractional decline observed in
// the equity curve.
func maxDrawdown(equity []domain.EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range equity {
		if p.Balance > peak {
			peak = p.Balance
		}
		if peak > 0 {
			dd := (peak - p.Balance) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// ulcerIndex is the root mean square of the fractional drawdowns from the
// running peak of the equity curve.
func ulcerIndex(equity []domain.EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}
	var peak, sumSq float64
	for _, p := range equity {
		if p.Balance > peak {
			peak = p.Balance
		}
		if peak > 0 {
			dd := (peak - p.Balance) / peak
			sumSq += dd * dd
		}
	}
	return math.Sqrt(sumSq / float64(len(equity)))
}

// annualizedReturn compounds the total return over the equity curve's time
// span. Spans of zero duration or degenerate balances yield 0.
func annualizedReturn(equity []domain.EquityPoint, initialBalance float64) float64 {
	if len(equity) < 2 || initialBalance <= 0 {
		return 0
	}
	final := equity[len(equity)-1].Balance
	if final <= 0 {
		return 0
	}
	span := equity[len(equity)-1].Timestamp.Sub(equity[0].Timestamp)
	years := span.Hours() / hoursPerYear
	if years <= 0 {
		return 0
	}
	return math.Pow(final/initialBalance, 1/years) - 1
}

// calmar is the total fractional return divided by the max drawdown, 0 when
// there is no drawdown.
func calmar(equity []domain.EquityPoint, initialBalance, maxDD float64) float64 {
	if len(equity) == 0 || initialBalance <= 0 || maxDD == 0 {
		return 0
	}
	final := equity[len(equity)-1].Balance
	return safeDiv((final-initialBalance)/initialBalance, maxDD)
}

// ---------------------------------------------------------------------------
// Return-distribution statistics
// ---------------------------------------------------------------------------

// valueAtRisk is the return at the (1-confidence) percentile of the sorted
// return distribution, or 0 when the value at that index is not a loss.
func valueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if sorted[idx] >= 0 {
		return 0
	}
	return sorted[idx]
}

// conditionalVaR is the mean of all returns at or below the VaR threshold,
// or 0 when no such returns exist.
func conditionalVaR(returns []float64, confidence float64) float64 {
	v := valueAtRisk(returns, confidence)
	if v == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, r := range returns {
		if r <= v {
			sum += r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// omega is the mean positive return over the absolute mean negative return,
// 0 when either side of the distribution is empty.
func omega(returns []float64) float64 {
	var posSum, negSum float64
	var pos, neg int
	for _, r := range returns {
		if r > 0 {
			posSum += r
			pos++
		} else if r < 0 {
			negSum += r
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}
	return safeDiv(posSum/float64(pos), math.Abs(negSum/float64(neg)))
}

// expectancy is winRate * avgWin - lossRate * avgLoss over fractional
// returns, with avgLoss as a positive magnitude.
func expectancy(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var winSum, lossSum float64
	var wins, losses int
	for _, r := range returns {
		if r > 0 {
			winSum += r
			wins++
		} else if r < 0 {
			lossSum += -r
			losses++
		}
	}
	winRate := float64(wins) / float64(len(returns))
	var avgWin, avgLoss float64
	if wins > 0 {
		avgWin = winSum / float64(wins)
	}
	if losses > 0 {
		avgLoss = lossSum / float64(losses)
	}
	return winRate*avgWin - (1-winRate)*avgLoss
}

// downsideDeviation is sqrt(mean(min(r, 0)^2)).
func downsideDeviation(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var sumSq float64
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
		}
	}
	return math.Sqrt(sumSq / float64(len(returns)))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

// safeDiv guards every ratio metric: division by zero or a non-finite
// result collapses to 0 rather than leaking NaN/Inf into results.
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
