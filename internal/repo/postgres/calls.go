package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo"
)

// CallStore implements [repo.CallRepository] on PostgreSQL. The transcript is
// stored as a JSONB array and replaced wholesale on every update, which keeps
// the append path a single statement.
type CallStore struct {
	pool *pgxpool.Pool
}

// GetCall implements [repo.CallReader].
func (s *CallStore) GetCall(ctx context.Context, id domain.CallID) (domain.ScreeningCall, error) {
	var (
		c            domain.ScreeningCall
		rawID, appID string
		transcript   []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, application_id, status, started_at, ended_at, transcript
		FROM calls
		WHERE id = $1`, id.String()).
		Scan(&rawID, &appID, &c.Status, &c.StartedAt, &c.EndedAt, &transcript)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ScreeningCall{}, repo.ErrNotFound
		}
		return domain.ScreeningCall{}, fmt.Errorf("postgres: get call: %w", err)
	}

	if c.ID, err = domain.ParseCallID(rawID); err != nil {
		return domain.ScreeningCall{}, fmt.Errorf("postgres: call id: %w", err)
	}
	if c.ApplicationID, err = domain.ParseApplicationID(appID); err != nil {
		return domain.ScreeningCall{}, fmt.Errorf("postgres: call application id: %w", err)
	}
	if err := json.Unmarshal(transcript, &c.Transcript); err != nil {
		return domain.ScreeningCall{}, fmt.Errorf("postgres: call transcript: %w", err)
	}
	return c, nil
}

// SaveCall implements [repo.CallRepository].
func (s *CallStore) SaveCall(ctx context.Context, c domain.ScreeningCall) error {
	segments := c.Transcript
	if segments == nil {
		segments = []domain.TranscriptSegment{}
	}
	transcript, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("postgres: marshal transcript: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO calls (id, application_id, status, started_at, ended_at, transcript)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			ended_at = EXCLUDED.ended_at,
			transcript = EXCLUDED.transcript`,
		c.ID.String(), c.ApplicationID.String(), c.Status, c.StartedAt, c.EndedAt, transcript)
	if err != nil {
		return fmt.Errorf("postgres: save call: %w", err)
	}
	return nil
}

// UpdateCallTranscript implements [repo.CallRepository].
func (s *CallStore) UpdateCallTranscript(ctx context.Context, id domain.CallID, segments []domain.TranscriptSegment) error {
	if segments == nil {
		segments = []domain.TranscriptSegment{}
	}
	transcript, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("postgres: marshal transcript: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE calls SET transcript = $2 WHERE id = $1`, id.String(), transcript)
	if err != nil {
		return fmt.Errorf("postgres: update transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// MarkCallCompleted implements [repo.CallRepository].
func (s *CallStore) MarkCallCompleted(ctx context.Context, id domain.CallID) error {
	return s.setStatus(ctx, id, domain.CallCompleted)
}

// MarkCallFailed implements [repo.CallRepository].
func (s *CallStore) MarkCallFailed(ctx context.Context, id domain.CallID) error {
	return s.setStatus(ctx, id, domain.CallFailed)
}

func (s *CallStore) setStatus(ctx context.Context, id domain.CallID, status domain.CallStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE calls SET status = $2, ended_at = now() WHERE id = $1`, id.String(), status)
	if err != nil {
		return fmt.Errorf("postgres: mark call %s: %w", status, err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
