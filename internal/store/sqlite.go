package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"coindeck/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ SessionStore = (*SQLiteStore)(nil)

// SQLiteStore implements SessionStore backed by a SQLite database, so
// sessions survive server restarts.
type SQLiteStore struct {
	db *sql.DB
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	pair          TEXT NOT NULL,
	timeframe     TEXT NOT NULL,
	strategy      TEXT NOT NULL,
	options       TEXT NOT NULL,
	result        TEXT,
	optimization  TEXT,
	status        TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at DESC);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying session schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession inserts a new session.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess *domain.Session) error {
	strategy, options, result, optimization, err := marshalSessionBlobs(sess)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, kind, pair, timeframe, strategy, options, result, optimization, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, string(sess.Kind), sess.Pair, sess.Timeframe,
		strategy, options, result, optimization,
		string(sess.Status), sess.ErrorMessage,
		sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", sess.ID, err)
	}
	return nil
}

// GetSession retrieves a single session by its ID. A missing session
// returns (nil, nil).
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, pair, timeframe, strategy, options, result, optimization, status, error_message, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, pair, timeframe, strategy, options, result, optimization, status, error_message, created_at, updated_at
		FROM sessions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// UpdateSession persists changes to an existing session.
func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *domain.Session) error {
	strategy, options, result, optimization, err := marshalSessionBlobs(sess)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET kind = ?, pair = ?, timeframe = ?, strategy = ?, options = ?, result = ?, optimization = ?, status = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		string(sess.Kind), sess.Pair, sess.Timeframe,
		strategy, options, result, optimization,
		string(sess.Status), sess.ErrorMessage, sess.UpdatedAt.UnixMilli(),
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", sess.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s not found", sess.ID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row marshalling
// ---------------------------------------------------------------------------

func marshalSessionBlobs(sess *domain.Session) (strategy, options string, result, optimization sql.NullString, err error) {
	sb, err := json.Marshal(sess.Strategy)
	if err != nil {
		return "", "", result, optimization, fmt.Errorf("marshalling strategy: %w", err)
	}
	ob, err := json.Marshal(sess.Options)
	if err != nil {
		return "", "", result, optimization, fmt.Errorf("marshalling options: %w", err)
	}
	if sess.Result != nil {
		rb, err := json.Marshal(sess.Result)
		if err != nil {
			return "", "", result, optimization, fmt.Errorf("marshalling result: %w", err)
		}
		result = sql.NullString{String: string(rb), Valid: true}
	}
	if sess.Optimization != nil {
		xb, err := json.Marshal(sess.Optimization)
		if err != nil {
			return "", "", result, optimization, fmt.Errorf("marshalling optimization: %w", err)
		}
		optimization = sql.NullString{String: string(xb), Valid: true}
	}
	return string(sb), string(ob), result, optimization, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		sess                 domain.Session
		kind, status         string
		strategy, options    string
		result, optimization sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&sess.ID, &kind, &sess.Pair, &sess.Timeframe,
		&strategy, &options, &result, &optimization,
		&status, &sess.ErrorMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	sess.Kind = domain.SessionKind(kind)
	sess.Status = domain.SessionStatus(status)
	sess.CreatedAt = time.UnixMilli(createdAt).UTC()
	sess.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	if err := json.Unmarshal([]byte(strategy), &sess.Strategy); err != nil {
		return nil, fmt.Errorf("unmarshalling strategy: %w", err)
	}
	if err := json.Unmarshal([]byte(options), &sess.Options); err != nil {
		return nil, fmt.Errorf("unmarshalling options: %w", err)
	}
	if result.Valid {
		sess.Result = &domain.BacktestResult{}
		if err := json.Unmarshal([]byte(result.String), sess.Result); err != nil {
			return nil, fmt.Errorf("unmarshalling result: %w", err)
		}
	}
	if optimization.Valid {
		if err := json.Unmarshal([]byte(optimization.String), &sess.Optimization); err != nil {
			return nil, fmt.Errorf("unmarshalling optimization: %w", err)
		}
	}
	return &sess, nil
}
