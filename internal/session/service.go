package session

import (
	"context"
	"log/slog"
	"sync"

	"coindeck/internal/backtest"
	"coindeck/internal/domain"
	"coindeck/internal/provider"
)

// Service creates sessions and executes their backtests or optimizations in
// the background. HTTP handlers return the pending session immediately and
// clients poll it until it completes or fails.
type Service struct {
	repo     *Repository
	engine   *backtest.Engine
	provider provider.CandleProvider
	log      *slog.Logger
	wg       sync.WaitGroup
}

func NewService(repo *Repository, engine *backtest.Engine, p provider.CandleProvider, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		engine:   engine,
		provider: p,
		log:      log.With("component", "session"),
	}
}

// StartBacktest creates a backtest session and runs the simulation in the
// background. The returned session is in the pending state.
func (s *Service) StartBacktest(ctx context.Context, pair, timeframe string, strat domain.Strategy, options domain.BacktestOptions) (*domain.Session, error) {
	sess, err := s.repo.Create(ctx, domain.SessionBacktest, pair, timeframe, strat, options)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runBacktest(sess)
	}()
	return sess, nil
}

// StartOptimization creates an optimization session and runs the grid search
// in the background.
func (s *Service) StartOptimization(ctx context.Context, pair, timeframe string, strat domain.Strategy, options domain.BacktestOptions, ranges []domain.ParameterRange, objective backtest.Objective) (*domain.Session, error) {
	sess, err := s.repo.Create(ctx, domain.SessionOptimization, pair, timeframe, strat, options)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runOptimization(sess, ranges, objective)
	}()
	return sess, nil
}

// Get returns the session with the given ID, or nil if it does not exist.
func (s *Service) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.repo.Get(ctx, id)
}

// List returns all sessions, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Session, error) {
	return s.repo.List(ctx)
}

// Wait blocks until all in-flight runs have finished. Used on shutdown and
// in tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Background runs use their own context: the request that started a session
// ends long before the run does.

func (s *Service) runBacktest(sess *domain.Session) {
	ctx := context.Background()
	log := s.log.With("session", sess.ID, "pair", sess.Pair)

	if err := s.repo.MarkRunning(ctx, sess.ID); err != nil {
		log.Error("marking session running", "error", err)
		return
	}

	candles, err := s.provider.GetCandles(ctx, sess.Pair, sess.Timeframe, sess.Options.StartDate, sess.Options.EndDate)
	if err != nil {
		s.fail(ctx, log, sess.ID, err)
		return
	}

	result, err := s.engine.Simulate(sess.Strategy, sess.Options, candles)
	if err != nil {
		s.fail(ctx, log, sess.ID, err)
		return
	}

	if err := s.repo.Complete(ctx, sess.ID, result); err != nil {
		log.Error("completing session", "error", err)
		return
	}
	log.Info("backtest completed", "trades", result.Metrics.TotalTrades, "netProfit", result.Metrics.NetProfit)
}

func (s *Service) runOptimization(sess *domain.Session, ranges []domain.ParameterRange, objective backtest.Objective) {
	ctx := context.Background()
	log := s.log.With("session", sess.ID, "pair", sess.Pair)

	if err := s.repo.MarkRunning(ctx, sess.ID); err != nil {
		log.Error("marking session running", "error", err)
		return
	}

	candles, err := s.provider.GetCandles(ctx, sess.Pair, sess.Timeframe, sess.Options.StartDate, sess.Options.EndDate)
	if err != nil {
		s.fail(ctx, log, sess.ID, err)
		return
	}

	results, err := s.engine.Optimize(ctx, sess.Strategy, sess.Options, ranges, objective, candles)
	if err != nil {
		s.fail(ctx, log, sess.ID, err)
		return
	}

	if err := s.repo.CompleteOptimization(ctx, sess.ID, results); err != nil {
		log.Error("completing session", "error", err)
		return
	}
	log.Info("optimization completed", "combinations", len(results))
}

func (s *Service) fail(ctx context.Context, log *slog.Logger, id string, cause error) {
	log.Warn("session failed", "error", cause)
	if err := s.repo.Fail(ctx, id, cause.Error()); err != nil {
		log.Error("marking session failed", "error", err)
	}
}
