package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"coindeck/internal/backtest"
	"coindeck/internal/domain"
	"coindeck/internal/store"
	"coindeck/internal/strategy"
	"coindeck/internal/util"
)

func newTestRepo() *Repository {
	return NewRepository(store.NewMemorySessionStore())
}

func testStrategy() domain.Strategy {
	return domain.Strategy{
		ID:     "s-1",
		Type:   domain.StrategyMACrossover,
		Params: map[string]float64{"shortPeriod": 2, "longPeriod": 5},
	}
}

func testOptions() domain.BacktestOptions {
	return domain.BacktestOptions{
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		InitialBalance: 10000,
	}
}

func TestRepositoryLifecycle(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	sess, err := repo.Create(ctx, domain.SessionBacktest, "BTC/USD", "1h", testStrategy(), testOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("Create did not assign an ID")
	}
	if sess.Status != domain.SessionPending {
		t.Fatalf("new session status = %q, want pending", sess.Status)
	}

	if err := repo.MarkRunning(ctx, sess.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	result := &domain.BacktestResult{InitialBalance: 10000, FinalBalance: 10100}
	if err := repo.Complete(ctx, sess.ID, result); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, err := repo.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.SessionCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.Result == nil || got.Result.FinalBalance != 10100 {
		t.Errorf("result = %+v, want finalBalance 10100", got.Result)
	}
}

func TestRepositoryRejectsBackwardTransitions(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	sess, err := repo.Create(ctx, domain.SessionBacktest, "BTC/USD", "1h", testStrategy(), testOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Complete straight from pending is not allowed.
	if err := repo.Complete(ctx, sess.ID, &domain.BacktestResult{}); err == nil {
		t.Error("Complete from pending succeeded, want error")
	}

	if err := repo.MarkRunning(ctx, sess.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := repo.Fail(ctx, sess.ID, "boom"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	// Terminal states accept no further transitions.
	if err := repo.MarkRunning(ctx, sess.ID); err == nil {
		t.Error("MarkRunning on failed session succeeded, want error")
	}
	if err := repo.Complete(ctx, sess.ID, &domain.BacktestResult{}); err == nil {
		t.Error("Complete on failed session succeeded, want error")
	}

	got, _ := repo.Get(ctx, sess.ID)
	if got.ErrorMessage != "boom" {
		t.Errorf("errorMessage = %q, want %q", got.ErrorMessage, "boom")
	}
}

// staticProvider serves a fixed candle slice for any request.
type staticProvider struct {
	candles []domain.Candle
	err     error
}

func (p *staticProvider) GetCandles(context.Context, string, string, time.Time, time.Time) ([]domain.Candle, error) {
	return p.candles, p.err
}

func trendCandles(closes []float64) []domain.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, len(closes))
	for i, c := range closes {
		candles[i] = domain.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c + 1, Low: c - 1, Close: c, Volume: 100,
		}
	}
	return candles
}

func newTestService(p *staticProvider) *Service {
	log := util.NewLogger("error", "text")
	engine := backtest.NewEngine(strategy.Default(), log)
	return NewService(newTestRepo(), engine, p, log)
}

func TestServiceBacktestCompletes(t *testing.T) {
	p := &staticProvider{candles: trendCandles([]float64{100, 102, 104, 106, 108, 110, 109, 111, 113, 115})}
	svc := newTestService(p)
	ctx := context.Background()

	sess, err := svc.StartBacktest(ctx, "BTC/USD", "1h", testStrategy(), testOptions())
	if err != nil {
		t.Fatalf("StartBacktest: %v", err)
	}
	if sess.Status != domain.SessionPending {
		t.Errorf("initial status = %q, want pending", sess.Status)
	}
	svc.Wait()

	got, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.SessionCompleted {
		t.Fatalf("status = %q (error %q), want completed", got.Status, got.ErrorMessage)
	}
	if got.Result == nil || len(got.Result.Trades) == 0 {
		t.Errorf("completed session has no trades: %+v", got.Result)
	}
}

func TestServiceBacktestFailsOnProviderError(t *testing.T) {
	p := &staticProvider{err: domain.ErrInsufficientData}
	svc := newTestService(p)
	ctx := context.Background()

	sess, err := svc.StartBacktest(ctx, "BTC/USD", "1h", testStrategy(), testOptions())
	if err != nil {
		t.Fatalf("StartBacktest: %v", err)
	}
	svc.Wait()

	got, _ := svc.Get(ctx, sess.ID)
	if got.Status != domain.SessionFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "insufficient") {
		t.Errorf("errorMessage = %q, want it to mention insufficient data", got.ErrorMessage)
	}
}

func TestServiceOptimizationCompletes(t *testing.T) {
	p := &staticProvider{candles: trendCandles([]float64{
		100, 102, 104, 103, 106, 108, 107, 110, 112, 111,
		114, 116, 115, 118, 120, 119, 122, 124, 123, 126,
	})}
	svc := newTestService(p)
	ctx := context.Background()

	ranges := []domain.ParameterRange{
		{Name: "shortPeriod", Min: 2, Max: 3, Step: 1},
		{Name: "longPeriod", Min: 5, Max: 6, Step: 1},
	}
	sess, err := svc.StartOptimization(ctx, "BTC/USD", "1h", testStrategy(), testOptions(), ranges, backtest.ObjectiveNetProfit)
	if err != nil {
		t.Fatalf("StartOptimization: %v", err)
	}
	svc.Wait()

	got, _ := svc.Get(ctx, sess.ID)
	if got.Status != domain.SessionCompleted {
		t.Fatalf("status = %q (error %q), want completed", got.Status, got.ErrorMessage)
	}
	if len(got.Optimization) != 4 {
		t.Fatalf("got %d optimization results, want 4", len(got.Optimization))
	}
	if got.Optimization[0].Rank != 1 {
		t.Errorf("best result rank = %d, want 1", got.Optimization[0].Rank)
	}
}
