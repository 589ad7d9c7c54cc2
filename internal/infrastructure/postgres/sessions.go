package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Xausdorf/btcpay-checkout/internal/domain/invoice"
	"github.com/Xausdorf/btcpay-checkout/internal/domain/session"
	"github.com/Xausdorf/btcpay-checkout/internal/infrastructure/sweeper"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkout_sessions (
    session_id  TEXT PRIMARY KEY,
    invoice     JSONB NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS checkout_sessions_created_at_idx ON checkout_sessions (created_at);
`

// SessionStore is a session.Store shared by every instance pointed at the same database.
type SessionStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewSessionStore(pool *pgxpool.Pool, ttl time.Duration) *SessionStore {
	return &SessionStore{pool: pool, ttl: ttl}
}

func (s *SessionStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *SessionStore) Find(ctx context.Context, sessionID string) (*session.Record, error) {
	var body []byte
	var createdAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT invoice, created_at FROM checkout_sessions
		 WHERE session_id = $1 AND created_at > $2`,
		sessionID, s.cutoff(),
	).Scan(&body, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(sessionID, body, createdAt)
}

// Save keeps the first live invoice stored for a session and returns it. An
// expired record is replaced.
func (s *SessionStore) Save(ctx context.Context, record *session.Record) (*session.Record, error) {
	if record == nil || !record.Invoice().Usable() {
		return nil, session.ErrInvalidInvoice
	}

	body, err := json.Marshal(record.Invoice())
	if err != nil {
		return nil, fmt.Errorf("encode invoice: %w", err)
	}

	var storedBody []byte
	var createdAt time.Time
	err = s.pool.QueryRow(ctx,
		`INSERT INTO checkout_sessions (session_id, invoice, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id) DO UPDATE
		 SET invoice = EXCLUDED.invoice, created_at = EXCLUDED.created_at
		 WHERE checkout_sessions.created_at <= $4
		 RETURNING invoice, created_at`,
		record.SessionID(), body, record.CreatedAt(), s.cutoff(),
	).Scan(&storedBody, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// A live row already holds the session.
		existing, findErr := s.Find(ctx, record.SessionID())
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, fmt.Errorf("session %s: conflicting record vanished", record.SessionID())
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	return decodeRecord(record.SessionID(), storedBody, createdAt)
}

// DeleteExpired removes records older than the session TTL.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM checkout_sessions WHERE created_at <= $1`,
		s.cutoff(),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// StartSweeper runs DeleteExpired every interval until ctx is done.
func (s *SessionStore) StartSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	go sweeper.Run(ctx, interval, s.DeleteExpired, logger)
}

func (s *SessionStore) cutoff() time.Time {
	return time.Now().Add(-s.ttl)
}

func decodeRecord(sessionID string, body []byte, createdAt time.Time) (*session.Record, error) {
	var inv invoice.Invoice
	if err := json.Unmarshal(body, &inv); err != nil {
		return nil, fmt.Errorf("decode cached invoice: %w", err)
	}
	return session.ReconstructRecord(sessionID, &inv, createdAt), nil
}
