// Package store defines storage interfaces for candle history and backtest
// sessions, with a Parquet implementation for candles and SQLite and
// in-memory implementations for sessions.
package store

import (
	"context"
	"time"

	"coindeck/internal/domain"
)

// CandleStore persists and retrieves OHLCV candle data.
type CandleStore interface {
	// WriteCandles persists a batch of candles for the given pair and
	// timeframe, merging with any already stored.
	WriteCandles(ctx context.Context, pair, timeframe string, candles []domain.Candle) error

	// ReadCandles returns candles for the pair and timeframe within
	// [start, end], in timestamp order.
	ReadCandles(ctx context.Context, pair, timeframe string, start, end time.Time) ([]domain.Candle, error)

	// ListPairs returns all distinct pairs with stored data.
	ListPairs(ctx context.Context) ([]string, error)
}

// SessionStore persists and retrieves backtest/optimization sessions.
type SessionStore interface {
	// SaveSession inserts a new session.
	SaveSession(ctx context.Context, sess *domain.Session) error

	// GetSession retrieves a single session by its ID.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// ListSessions returns all sessions, newest first.
	ListSessions(ctx context.Context) ([]domain.Session, error)

	// UpdateSession persists changes to an existing session.
	UpdateSession(ctx context.Context, sess *domain.Session) error
}
