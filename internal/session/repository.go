// Package session tracks backtest and optimization runs: creating session
// records, enforcing the pending → running → completed/failed lifecycle, and
// executing runs asynchronously.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"coindeck/internal/domain"
	"coindeck/internal/store"
)

// Repository wraps a SessionStore and enforces session lifecycle rules.
// Status only moves forward: pending, then running, then completed or
// failed.
type Repository struct {
	store store.SessionStore
}

func NewRepository(s store.SessionStore) *Repository {
	return &Repository{store: s}
}

// Create persists a new pending session and assigns it an ID.
func (r *Repository) Create(ctx context.Context, kind domain.SessionKind, pair, timeframe string, strat domain.Strategy, options domain.BacktestOptions) (*domain.Session, error) {
	now := time.Now().UTC()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		Pair:      pair,
		Timeframe: timeframe,
		Strategy:  strat,
		Options:   options,
		Status:    domain.SessionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// Get returns the session with the given ID, or nil if it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Session, error) {
	return r.store.GetSession(ctx, id)
}

// List returns all sessions, newest first.
func (r *Repository) List(ctx context.Context) ([]domain.Session, error) {
	return r.store.ListSessions(ctx)
}

// MarkRunning transitions a pending session to running.
func (r *Repository) MarkRunning(ctx context.Context, id string) error {
	return r.transition(ctx, id, domain.SessionRunning, func(sess *domain.Session) {})
}

// Complete transitions a running session to completed and attaches the
// backtest result.
func (r *Repository) Complete(ctx context.Context, id string, result *domain.BacktestResult) error {
	return r.transition(ctx, id, domain.SessionCompleted, func(sess *domain.Session) {
		sess.Result = result
	})
}

// CompleteOptimization transitions a running session to completed and
// attaches the ranked grid-search results.
func (r *Repository) CompleteOptimization(ctx context.Context, id string, results []domain.OptimizationResult) error {
	return r.transition(ctx, id, domain.SessionCompleted, func(sess *domain.Session) {
		sess.Optimization = results
	})
}

// Fail transitions a pending or running session to failed with the given
// error message.
func (r *Repository) Fail(ctx context.Context, id, message string) error {
	return r.transition(ctx, id, domain.SessionFailed, func(sess *domain.Session) {
		sess.ErrorMessage = message
	})
}

// validTransitions maps each status to the statuses it may move to.
var validTransitions = map[domain.SessionStatus][]domain.SessionStatus{
	domain.SessionPending: {domain.SessionRunning, domain.SessionFailed},
	domain.SessionRunning: {domain.SessionCompleted, domain.SessionFailed},
}

func (r *Repository) transition(ctx context.Context, id string, to domain.SessionStatus, apply func(*domain.Session)) error {
	sess, err := r.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %s not found", id)
	}

	allowed := false
	for _, next := range validTransitions[sess.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid session transition %s to %s for %s", sess.Status, to, id)
	}

	sess.Status = to
	sess.UpdatedAt = time.Now().UTC()
	apply(sess)
	return r.store.UpdateSession(ctx, sess)
}
