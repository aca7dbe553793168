// Package provider supplies candle history to the backtest engine, either
// from the local candle store or live from the Alpaca crypto market-data API.
package provider

import (
	"context"
	"fmt"
	"time"

	"coindeck/internal/domain"
	"coindeck/internal/store"
)

// CandleProvider returns candles for a pair and timeframe within
// [start, end], in ascending timestamp order.
type CandleProvider interface {
	GetCandles(ctx context.Context, pair, timeframe string, start, end time.Time) ([]domain.Candle, error)
}

var _ CandleProvider = (*StoreProvider)(nil)

// StoreProvider serves candles from a local CandleStore. An empty result is
// reported as ErrInsufficientData so callers fail a backtest cleanly instead
// of simulating over nothing.
type StoreProvider struct {
	Store store.CandleStore
}

func NewStoreProvider(s store.CandleStore) *StoreProvider {
	return &StoreProvider{Store: s}
}

func (p *StoreProvider) GetCandles(ctx context.Context, pair, timeframe string, start, end time.Time) ([]domain.Candle, error) {
	candles, err := p.Store.ReadCandles(ctx, pair, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading candles for %s/%s: %w", pair, timeframe, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no stored candles for %s/%s in [%s, %s]: %w",
			pair, timeframe, start.Format(time.RFC3339), end.Format(time.RFC3339),
			domain.ErrInsufficientData)
	}
	return candles, nil
}
