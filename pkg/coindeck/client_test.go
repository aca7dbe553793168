package coindeck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coindeck/internal/domain"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.baseURL != baseURL {
		t.Errorf("expected baseURL %q, got %q", baseURL, c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestStartBacktest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/backtests" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req BacktestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		if req.Pair != "BTC/USD" {
			t.Errorf("pair = %q, want BTC/USD", req.Pair)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(Session{ID: "abc", Status: domain.SessionPending})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	sess, err := c.StartBacktest(context.Background(), BacktestRequest{
		Pair:      "BTC/USD",
		Timeframe: "1h",
		Strategy:  domain.Strategy{Type: domain.StrategyRSI},
	})
	if err != nil {
		t.Fatalf("StartBacktest: %v", err)
	}
	if sess.ID != "abc" || sess.Status != domain.SessionPending {
		t.Errorf("session = %+v, want pending abc", sess)
	}
	if sess.Done() {
		t.Error("pending session reported Done")
	}
}

func TestGetSessionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session nope not found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetSession(context.Background(), "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetSession error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
	if apiErr.Message != "session nope not found" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestWaitForSession(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		status := domain.SessionRunning
		if calls >= 3 {
			status = domain.SessionCompleted
		}
		json.NewEncoder(w).Encode(Session{ID: "abc", Status: status})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	sess, err := c.WaitForSession(context.Background(), "abc", time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForSession: %v", err)
	}
	if sess.Status != domain.SessionCompleted {
		t.Errorf("status = %q, want completed", sess.Status)
	}
	if calls < 3 {
		t.Errorf("server polled %d times, want at least 3", calls)
	}
}

func TestListStrategies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]StrategyInfo{
			{Type: domain.StrategyBreakout, Parameters: []string{"lookbackPeriod", "breakoutThresholdPct"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	infos, err := c.ListStrategies(context.Background())
	if err != nil {
		t.Fatalf("ListStrategies: %v", err)
	}
	if len(infos) != 1 || infos[0].Type != domain.StrategyBreakout {
		t.Errorf("infos = %+v", infos)
	}
}

func TestGetCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/candles/BTC/USD" {
			t.Errorf("path = %q, want /api/candles/BTC/USD", r.URL.Path)
		}
		if tf := r.URL.Query().Get("timeframe"); tf != "1h" {
			t.Errorf("timeframe = %q, want 1h", tf)
		}
		json.NewEncoder(w).Encode(CandlesResponse{
			Pair:      "BTC/USD",
			Timeframe: "1h",
			Candles:   []domain.Candle{{Close: 100}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	candles, err := c.GetCandles(context.Background(), "BTC/USD", "1h",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(candles) != 1 || candles[0].Close != 100 {
		t.Errorf("candles = %+v", candles)
	}
}
