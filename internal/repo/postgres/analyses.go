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

// AnalysisStore implements [repo.AnalysisRepository] on PostgreSQL. The
// application_id UNIQUE constraint enforces at most one analysis per
// application; UpsertByApplication rides on it.
type AnalysisStore struct {
	pool *pgxpool.Pool
}

// GetByApplication implements [repo.AnalysisRepository].
func (s *AnalysisStore) GetByApplication(ctx context.Context, id domain.ApplicationID) (domain.ScreeningAnalysis, error) {
	var (
		a            domain.ScreeningAnalysis
		rawID, appID string
		skills       []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, application_id, fit_score, skills, completed_at, status
		FROM analyses
		WHERE application_id = $1`, id.String()).
		Scan(&rawID, &appID, &a.FitScore, &skills, &a.CompletedAt, &a.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ScreeningAnalysis{}, repo.ErrNotFound
		}
		return domain.ScreeningAnalysis{}, fmt.Errorf("postgres: get analysis: %w", err)
	}

	if a.ID, err = domain.ParseAnalysisID(rawID); err != nil {
		return domain.ScreeningAnalysis{}, fmt.Errorf("postgres: analysis id: %w", err)
	}
	if a.ApplicationID, err = domain.ParseApplicationID(appID); err != nil {
		return domain.ScreeningAnalysis{}, fmt.Errorf("postgres: analysis application id: %w", err)
	}
	if err := json.Unmarshal(skills, &a.Skills); err != nil {
		return domain.ScreeningAnalysis{}, fmt.Errorf("postgres: analysis skills: %w", err)
	}
	return a, nil
}

// UpsertByApplication implements [repo.AnalysisRepository].
func (s *AnalysisStore) UpsertByApplication(ctx context.Context, a domain.ScreeningAnalysis) error {
	skills, err := json.Marshal(emptyIfNil(a.Skills))
	if err != nil {
		return fmt.Errorf("postgres: marshal analysis skills: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO analyses (id, application_id, fit_score, skills, completed_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (application_id) DO UPDATE SET
			fit_score = EXCLUDED.fit_score,
			skills = EXCLUDED.skills,
			completed_at = EXCLUDED.completed_at,
			status = EXCLUDED.status`,
		a.ID.String(), a.ApplicationID.String(), a.FitScore, skills, a.CompletedAt, a.Status)
	if err != nil {
		return fmt.Errorf("postgres: upsert analysis: %w", err)
	}
	return nil
}
