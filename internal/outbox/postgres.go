package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check that *PostgresStore satisfies [Store].
var _ Store = (*PostgresStore)(nil)

const ddlOutbox = `
CREATE TABLE IF NOT EXISTS event_outbox (
    id            UUID         PRIMARY KEY,
    event_type    TEXT         NOT NULL,
    payload       JSONB        NOT NULL,
    attempts      INT          NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    published_at  TIMESTAMPTZ,
    last_error    VARCHAR(1000)
);

CREATE INDEX IF NOT EXISTS idx_event_outbox_pending
    ON event_outbox (created_at) WHERE published_at IS NULL;
`

// PostgresStore is the pgx-backed [Store]. Concurrent writers are safe:
// every operation is a single row-level statement.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the outbox table if needed and returns a store
// using pool.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, ddlOutbox); err != nil {
		return nil, fmt.Errorf("outbox: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// SavePending implements [Store].
func (s *PostgresStore) SavePending(ctx context.Context, eventType string, payload []byte) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_outbox (id, event_type, payload) VALUES ($1, $2, $3)`,
		id, eventType, payload,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("outbox: save pending: %w", err)
	}
	return id, nil
}

// ListPending implements [Store].
func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, payload, attempts, created_at, published_at, COALESCE(last_error, '')
		FROM event_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: list pending: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.EventType, &r.Payload, &r.Attempts, &r.CreatedAt, &r.PublishedAt, &r.LastError); err != nil {
			return nil, fmt.Errorf("outbox: scan pending: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: list pending: %w", err)
	}
	return out, nil
}

// MarkPublished implements [Store].
func (s *PostgresStore) MarkPublished(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE event_outbox SET published_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("outbox: mark published: %w", err)
	}
	return nil
}

// MarkFailedAttempt implements [Store].
func (s *PostgresStore) MarkFailedAttempt(ctx context.Context, id uuid.UUID, publishErr string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE event_outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
		id, truncateError(publishErr))
	if err != nil {
		return fmt.Errorf("outbox: mark failed attempt: %w", err)
	}
	return nil
}
