// Package coindeck provides a Go client for the coindeck-server API.
package coindeck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"coindeck/internal/domain"
)

// Client is a typed HTTP client for the coindeck-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new coindeck API client for the given base URL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BacktestRequest starts a single backtest session.
type BacktestRequest struct {
	Pair      string                 `json:"pair"`
	Timeframe string                 `json:"timeframe"`
	Strategy  domain.Strategy        `json:"strategy"`
	Options   domain.BacktestOptions `json:"options"`
}

// OptimizationRequest starts a grid-search session.
type OptimizationRequest struct {
	Pair      string                  `json:"pair"`
	Timeframe string                  `json:"timeframe"`
	Strategy  domain.Strategy         `json:"strategy"`
	Options   domain.BacktestOptions  `json:"options"`
	Ranges    []domain.ParameterRange `json:"ranges"`
	Objective string                  `json:"objective,omitempty"`
}

// Session mirrors the server's session payload.
type Session struct {
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

// Done reports whether the session reached a terminal state.
func (s *Session) Done() bool {
	return s.Status == domain.SessionCompleted || s.Status == domain.SessionFailed
}

// StrategyInfo describes one registered strategy type.
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

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coindeck API error %d: %s", e.StatusCode, e.Message)
}

// StartBacktest starts a backtest session and returns it in the pending
// state. Poll GetSession until Done.
func (c *Client) StartBacktest(ctx context.Context, req BacktestRequest) (*Session, error) {
	var sess Session
	if err := c.post(ctx, "/api/backtests", req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// StartOptimization starts a grid-search session.
func (c *Client) StartOptimization(ctx context.Context, req OptimizationRequest) (*Session, error) {
	var sess Session
	if err := c.post(ctx, "/api/optimizations", req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSession retrieves one session with its full result payload.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	if err := c.get(ctx, "/api/sessions/"+url.PathEscape(id), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// WaitForSession polls a session until it reaches a terminal state or ctx is
// cancelled.
func (c *Client) WaitForSession(ctx context.Context, id string, interval time.Duration) (*Session, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sess, err := c.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess.Done() {
			return sess, nil
		}
		select {
		case <-ctx.Done():
			return sess, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ListSessions retrieves all sessions, newest first, without result
// payloads.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.get(ctx, "/api/sessions", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListStrategies retrieves the registered strategy types.
func (c *Client) ListStrategies(ctx context.Context) ([]StrategyInfo, error) {
	var infos []StrategyInfo
	if err := c.get(ctx, "/api/strategies", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// ListPairs retrieves all pairs with stored candle data.
func (c *Client) ListPairs(ctx context.Context) ([]string, error) {
	var pairs []string
	if err := c.get(ctx, "/api/pairs", &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// GetCandles retrieves stored candles for a pair within [start, end].
func (c *Client) GetCandles(ctx context.Context, pair, timeframe string, start, end time.Time) ([]domain.Candle, error) {
	q := url.Values{}
	q.Set("timeframe", timeframe)
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))

	var resp CandlesResponse
	if err := c.get(ctx, "/api/candles/"+pair+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Candles, nil
}

// ---------------------------------------------------------------------------
// HTTP plumbing
// ---------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(data)}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
