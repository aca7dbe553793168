// Package httpapi exposes the backtesting service over HTTP: starting
// backtest and optimization sessions, polling their status, and reading
// stored candles and registered strategies.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"coindeck/internal/backtest"
	"coindeck/internal/config"
	"coindeck/internal/domain"
	"coindeck/internal/session"
	"coindeck/internal/store"
	"coindeck/internal/strategy"
)

// Server serves the coindeck HTTP API.
type Server struct {
	sessions *session.Service
	candles  store.CandleStore
	registry *strategy.Registry
	defaults config.BacktestConfig
	log      *slog.Logger
}

// NewServer creates the API server. defaults fills in unset backtest options
// on incoming requests.
func NewServer(sessions *session.Service, candles store.CandleStore, registry *strategy.Registry, defaults config.BacktestConfig, log *slog.Logger) *Server {
	return &Server{
		sessions: sessions,
		candles:  candles,
		registry: registry,
		defaults: defaults,
		log:      log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/backtests", s.handleStartBacktest)
	mux.HandleFunc("POST /api/optimizations", s.handleStartOptimization)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /api/strategies", s.handleListStrategies)
	mux.HandleFunc("GET /api/pairs", s.handleListPairs)
	mux.HandleFunc("GET /api/candles/{pair...}", s.handleGetCandles)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleStartBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
		return
	}
	if msg, ok := s.validateRunRequest(req.Pair, req.Timeframe, req.UseHistoricalData, &req.Options); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	sess, err := s.sessions.StartBacktest(r.Context(), req.Pair, req.Timeframe, req.Strategy, req.Options)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("backtest started", "session", sess.ID, "pair", sess.Pair, "strategy", sess.Strategy.Type)
	writeJSON(w, http.StatusAccepted, sessionResponse(sess, false))
}

func (s *Server) handleStartOptimization(w http.ResponseWriter, r *http.Request) {
	var req OptimizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
		return
	}
	if msg, ok := s.validateRunRequest(req.Pair, req.Timeframe, req.UseHistoricalData, &req.Options); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if len(req.Ranges) == 0 {
		writeError(w, http.StatusBadRequest, "at least one parameter range is required")
		return
	}

	sess, err := s.sessions.StartOptimization(r.Context(), req.Pair, req.Timeframe, req.Strategy, req.Options, req.Ranges, backtest.Objective(req.Objective))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("optimization started", "session", sess.ID, "pair", sess.Pair, "ranges", len(req.Ranges))
	writeJSON(w, http.StatusAccepted, sessionResponse(sess, false))
}

// validateRunRequest checks the shared fields of backtest and optimization
// requests and applies configured defaults to unset options.
func (s *Server) validateRunRequest(pair, timeframe string, useHistorical *bool, options *domain.BacktestOptions) (string, bool) {
	if pair == "" || timeframe == "" {
		return "pair and timeframe are required", false
	}
	// Simulations only run over stored history. Live-data runs were never
	// supported server-side and are rejected explicitly.
	if useHistorical != nil && !*useHistorical {
		return "useHistoricalData=false is not supported; backtests run over historical candles only", false
	}
	if options.StartDate.IsZero() || options.EndDate.IsZero() {
		return "options.startDate and options.endDate are required", false
	}
	if !options.EndDate.After(options.StartDate) {
		return "options.endDate must be after options.startDate", false
	}

	if options.InitialBalance == 0 {
		options.InitialBalance = s.defaults.InitialBalance
	}
	if options.FeeRate == 0 {
		options.FeeRate = s.defaults.FeeRate
	}
	if options.Slippage == 0 {
		options.Slippage = s.defaults.Slippage
	}
	if options.PositionFraction == 0 {
		options.PositionFraction = s.defaults.PositionFraction
	}
	return "", true
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		resp = append(resp, sessionResponse(&sessions[i], false))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("session %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess, true))
}

func (s *Server) handleListStrategies(w http.ResponseWriter, _ *http.Request) {
	types := s.registry.List()
	infos := make([]StrategyInfo, 0, len(types))
	for _, t := range types {
		infos = append(infos, StrategyInfo{Type: t, Parameters: strategy.ParamNames(t)})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.candles.ListPairs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pairs == nil {
		pairs = []string{}
	}
	writeJSON(w, http.StatusOK, pairs)
}

func (s *Server) handleGetCandles(w http.ResponseWriter, r *http.Request) {
	pair := r.PathValue("pair")
	timeframe := r.URL.Query().Get("timeframe")
	if pair == "" || timeframe == "" {
		writeError(w, http.StatusBadRequest, "pair and timeframe are required")
		return
	}

	start, err := parseTimeParam(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	candles, err := s.candles.ReadCandles(r.Context(), pair, timeframe, start, end)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if candles == nil {
		candles = []domain.Candle{}
	}
	writeJSON(w, http.StatusOK, CandlesResponse{Pair: pair, Timeframe: timeframe, Candles: candles})
}

// parseTimeParam reads an RFC 3339 query parameter. A missing "start" means
// the beginning of time; a missing "end" means now.
func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		if name == "start" {
			return time.Unix(0, 0).UTC(), nil
		}
		return time.Now().UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: must be RFC 3339", name, v)
	}
	return ts.UTC(), nil
}
