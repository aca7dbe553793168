// Package domain holds the core types shared across the coindeck engine:
// candles, strategies, signals, trades, backtest results, and sessions.
package domain

import "time"

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Candle is a single OHLCV price bar. Candle sequences are strictly
// time-ordered with no duplicate timestamps and are treated as immutable
// once fetched.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// ---------------------------------------------------------------------------
// Strategies and signals
// ---------------------------------------------------------------------------

// StrategyType identifies a signal-evaluation algorithm.
type StrategyType string

const (
	StrategyMACrossover StrategyType = "ma_crossover"
	StrategyRSI         StrategyType = "rsi"
	StrategyBreakout    StrategyType = "breakout"
)

// Strategy is a strategy definition: a type plus its named numeric
// parameters. A Strategy is immutable for the duration of one simulation;
// the optimizer clones it with new parameter values between iterations.
type Strategy struct {
	ID     string             `json:"id"`
	Type   StrategyType       `json:"type"`
	Params map[string]float64 `json:"params"`
}

// WithParams returns a copy of the strategy with the given parameter values
// overlaid on the existing ones. The receiver is not modified.
func (s Strategy) WithParams(overrides map[string]float64) Strategy {
	params := make(map[string]float64, len(s.Params)+len(overrides))
	for k, v := range s.Params {
		params[k] = v
	}
	for k, v := range overrides {
		params[k] = v
	}
	return Strategy{ID: s.ID, Type: s.Type, Params: params}
}

// SignalAction is the trading action suggested by a signal evaluator.
type SignalAction string

const (
	SignalBuy  SignalAction = "buy"
	SignalSell SignalAction = "sell"
	SignalHold SignalAction = "hold"
)

// Signal is the output of one evaluator invocation: an action, a
// human-readable rationale, and the index of the candle it was evaluated on.
// Signals are derived only from candles at or before that index.
type Signal struct {
	Action SignalAction `json:"action"`
	Reason string       `json:"reason"`
	Index  int          `json:"index"`
}

// ---------------------------------------------------------------------------
// Backtest inputs
// ---------------------------------------------------------------------------

// BacktestOptions are the simulation parameters for one backtest run.
//
// PositionFraction is the fraction of the current balance committed when a
// new position opens. The zero value means "use the default" (0.5).
type BacktestOptions struct {
	StartDate        time.Time `json:"startDate"`
	EndDate          time.Time `json:"endDate"`
	InitialBalance   float64   `json:"initialBalance"`
	FeeRate          float64   `json:"feeRate"`
	Slippage         float64   `json:"slippage"`
	PositionFraction float64   `json:"positionFraction,omitempty"`
}

// DefaultPositionFraction is the balance fraction committed per trade when
// BacktestOptions.PositionFraction is unset.
const DefaultPositionFraction = 0.5

// ParameterRange describes one dimension of a grid search: the inclusive
// arithmetic sequence [Min, Min+Step, ..., Max].
type ParameterRange struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// ---------------------------------------------------------------------------
// Backtest outputs
// ---------------------------------------------------------------------------

// TradeSide is the direction of a simulated position.
type TradeSide string

const (
	TradeSideLong  TradeSide = "long"
	TradeSideShort TradeSide = "short"
)

// Trade is one completed round trip in the simulation ledger. Fee is the
// total of entry and exit fees. BalanceAfter is the account balance after
// the trade closed.
type Trade struct {
	EntryTime    time.Time `json:"entryTime"`
	ExitTime     time.Time `json:"exitTime"`
	Side         TradeSide `json:"side"`
	EntryPrice   float64   `json:"entryPrice"`
	ExitPrice    float64   `json:"exitPrice"`
	Size         float64   `json:"size"`
	Fee          float64   `json:"fee"`
	PnL          float64   `json:"pnl"`
	BalanceAfter float64   `json:"balanceAfter"`
}

// EquityPoint is one sample of the equity curve, taken at each trade close.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Balance   float64   `json:"balance"`
}

// Metrics are the core summary statistics of one backtest.
type Metrics struct {
	NetProfit        float64 `json:"netProfit"`
	GrossProfit      float64 `json:"grossProfit"`
	GrossLoss        float64 `json:"grossLoss"`
	TotalTrades      int     `json:"totalTrades"`
	WinningTrades    int     `json:"winningTrades"`
	LosingTrades     int     `json:"losingTrades"`
	WinRate          float64 `json:"winRate"`
	AverageTrade     float64 `json:"averageTrade"`
	LargestProfit    float64 `json:"largestProfit"`
	LargestLoss      float64 `json:"largestLoss"`
	AnnualizedReturn float64 `json:"annualizedReturn"`
}

// AdvancedMetrics are the risk statistics of one backtest. Ratios are
// computed over per-trade fractional returns; drawdowns are fractions of the
// running equity peak (0.25 means a 25% decline). Every ratio is 0, never
// NaN or Inf, on degenerate inputs.
type AdvancedMetrics struct {
	SharpeRatio  float64 `json:"sharpeRatio"`
	SortinoRatio float64 `json:"sortinoRatio"`
	CalmarRatio  float64 `json:"calmarRatio"`
	OmegaRatio   float64 `json:"omegaRatio"`
	MaxDrawdown  float64 `json:"maxDrawdown"`
	UlcerIndex   float64 `json:"ulcerIndex"`
	VaR95        float64 `json:"var95"`
	VaR99        float64 `json:"var99"`
	CVaR95       float64 `json:"cvar95"`
	CVaR99       float64 `json:"cvar99"`
	Expectancy   float64 `json:"expectancy"`
}

// BacktestResult is the full output of one simulation run.
type BacktestResult struct {
	Trades          []Trade          `json:"trades"`
	EquityCurve     []EquityPoint    `json:"equityCurve"`
	InitialBalance  float64          `json:"initialBalance"`
	FinalBalance    float64          `json:"finalBalance"`
	Metrics         Metrics          `json:"metrics"`
	AdvancedMetrics *AdvancedMetrics `json:"advancedMetrics,omitempty"`
}

// OptimizationResult is one grid-search combination's outcome. Result is nil
// and Error non-empty when the combination's simulation failed; ranking
// places failed combinations last.
type OptimizationResult struct {
	Parameters map[string]float64 `json:"parameters"`
	Result     *BacktestResult    `json:"result,omitempty"`
	Rank       int                `json:"rank"`
	Error      string             `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// SessionStatus is the lifecycle state of a backtest or optimization run.
// Transitions only move forward: pending → running → completed or failed.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// SessionKind distinguishes single backtests from grid optimizations.
type SessionKind string

const (
	SessionBacktest     SessionKind = "backtest"
	SessionOptimization SessionKind = "optimization"
)

// Session tracks one backtest or optimization run: the strategy and options
// snapshots it was started with, its status, and its result once finished.
type Session struct {
	ID           string               `json:"id"`
	Kind         SessionKind          `json:"kind"`
	Pair         string               `json:"pair"`
	Timeframe    string               `json:"timeframe"`
	Strategy     Strategy             `json:"strategy"`
	Options      BacktestOptions      `json:"options"`
	Result       *BacktestResult      `json:"result,omitempty"`
	Optimization []OptimizationResult `json:"optimization,omitempty"`
	Status       SessionStatus        `json:"status"`
	ErrorMessage string               `json:"errorMessage,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}
