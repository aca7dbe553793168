package httpapi

import (
	"time"

	"coindeck/internal/domain"
)

// BacktestRequest starts a single backtest session.
//
// UseHistoricalData defaults to true. Backtests only run over stored
// historical candles; requests that ask for live data are rejected.
type BacktestRequest struct {
	Pair              string                 `json:"pair"`
	Timeframe         string                 `json:"timeframe"`
	Strategy          domain.Strategy        `json:"strategy"`
	Options           domain.BacktestOptions `json:"options"`
	UseHistoricalData *bool                  `json:"useHistoricalData,omitempty"`
}

// OptimizationRequest starts a grid-search session over the given parameter
// ranges. Objective defaults to the Sharpe ratio.
type OptimizationRequest struct {
	Pair              string                  `json:"pair"`
	Timeframe         string                  `json:"timeframe"`
	Strategy          domain.Strategy         `json:"strategy"`
	Options           domain.BacktestOptions  `json:"options"`
	Ranges            []domain.ParameterRange `json:"ranges"`
	Objective         string                  `json:"objective,omitempty"`
	UseHistoricalData *bool                   `json:"useHistoricalData,omitempty"`
}

// SessionResponse is the wire form of a session. The full result payload is
// only included on single-session reads; listings stay slim.
type SessionResponse struct {
	ID           string                      `json:"id"`
	Kind         domain.SessionKind          `json:"kind"`
	Pair         string                      `json:"pair"`
	Timeframe    string                      `json:"timeframe"`
	Strategy     domain.Strategy             `json:"strategy"`
	Status       domain.SessionStatus        `json:"status"`
	ErrorMessage string                      `json:"errorMessage,omitempty"`
	CreatedAt    time.Time                   `json:"createdAt"`
	UpdatedAt    time.Time                   `json:"updatedAt"`
	Result       *domain.BacktestResult      `json:"result,omitempty"`
	Optimization []domain.OptimizationResult `json:"optimization,omitempty"`
}

func sessionResponse(sess *domain.Session, includeResult bool) SessionResponse {
	resp := SessionResponse{
		ID:           sess.ID,
		Kind:         sess.Kind,
		Pair:         sess.Pair,
		Timeframe:    sess.Timeframe,
		Strategy:     sess.Strategy,
		Status:       sess.Status,
		ErrorMessage: sess.ErrorMessage,
		CreatedAt:    sess.CreatedAt,
		UpdatedAt:    sess.UpdatedAt,
	}
	if includeResult {
		resp.Result = sess.Result
		resp.Optimization = sess.Optimization
	}
	return resp
}

// StrategyInfo describes one registered strategy type and its parameters.
type StrategyInfo struct {
	Type       domain.StrategyType `json:"type"`
	Parameters []string            `json:"parameters"`
}

// CandlesResponse wraps a candle read.
type CandlesResponse struct {
	Pair      string          `json:"pair"`
	Timeframe string          `json:"timeframe"`
	Candles   []domain.Candle `json:"candles"`
}
