package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo"
)

// ApplicationStore implements [repo.ApplicationRepository] on PostgreSQL.
type ApplicationStore struct {
	pool *pgxpool.Pool
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// GetApplication implements [repo.ApplicationReader].
func (s *ApplicationStore) GetApplication(ctx context.Context, id domain.ApplicationID) (domain.ScreeningApplication, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, candidate_id, job_offer_id, created_at
		FROM applications
		WHERE id = $1`, id.String())
	return scanApplication(row)
}

// FindApplicationByUsernameAndJobOffer implements [repo.ApplicationReader].
func (s *ApplicationStore) FindApplicationByUsernameAndJobOffer(ctx context.Context, username, externalJobID string) (domain.ScreeningApplication, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, candidate_id, job_offer_id, created_at
		FROM applications
		WHERE username_key = $1 AND external_job_id = $2`,
		usernameKey(username), strings.TrimSpace(externalJobID))
	return scanApplication(row)
}

func scanApplication(row pgx.Row) (domain.ScreeningApplication, error) {
	var (
		a                domain.ScreeningApplication
		id, candID, joID string
	)
	if err := row.Scan(&id, &candID, &joID, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ScreeningApplication{}, repo.ErrNotFound
		}
		return domain.ScreeningApplication{}, fmt.Errorf("postgres: scan application: %w", err)
	}

	var err error
	if a.ID, err = domain.ParseApplicationID(id); err != nil {
		return domain.ScreeningApplication{}, fmt.Errorf("postgres: application id: %w", err)
	}
	if a.CandidateID, err = domain.ParseCandidateID(candID); err != nil {
		return domain.ScreeningApplication{}, fmt.Errorf("postgres: candidate id: %w", err)
	}
	if a.JobOfferID, err = domain.ParseJobOfferID(joID); err != nil {
		return domain.ScreeningApplication{}, fmt.Errorf("postgres: job offer id: %w", err)
	}
	return a, nil
}

// GetCandidate implements [repo.CandidateReader].
func (s *ApplicationStore) GetCandidate(ctx context.Context, id domain.CandidateID) (domain.Candidate, error) {
	var (
		c            domain.Candidate
		rawID        string
		skills, jobs []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, full_name, skills, jobs
		FROM candidates
		WHERE id = $1`, id.String()).
		Scan(&rawID, &c.Username, &c.FullName, &skills, &jobs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Candidate{}, repo.ErrNotFound
		}
		return domain.Candidate{}, fmt.Errorf("postgres: get candidate: %w", err)
	}

	if c.ID, err = domain.ParseCandidateID(rawID); err != nil {
		return domain.Candidate{}, fmt.Errorf("postgres: candidate id: %w", err)
	}
	if err := json.Unmarshal(skills, &c.Skills); err != nil {
		return domain.Candidate{}, fmt.Errorf("postgres: candidate skills: %w", err)
	}
	if err := json.Unmarshal(jobs, &c.Jobs); err != nil {
		return domain.Candidate{}, fmt.Errorf("postgres: candidate jobs: %w", err)
	}
	return c, nil
}

// GetJobOffer implements [repo.JobOfferReader].
func (s *ApplicationStore) GetJobOffer(ctx context.Context, id domain.JobOfferID) (domain.JobOffer, error) {
	var (
		o                           domain.JobOffer
		rawID                       string
		strengths, responsibilities []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, external_id, objective, strengths, responsibilities
		FROM job_offers
		WHERE id = $1`, id.String()).
		Scan(&rawID, &o.ExternalID, &o.Objective, &strengths, &responsibilities)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.JobOffer{}, repo.ErrNotFound
		}
		return domain.JobOffer{}, fmt.Errorf("postgres: get job offer: %w", err)
	}

	if o.ID, err = domain.ParseJobOfferID(rawID); err != nil {
		return domain.JobOffer{}, fmt.Errorf("postgres: job offer id: %w", err)
	}
	if err := json.Unmarshal(strengths, &o.Strengths); err != nil {
		return domain.JobOffer{}, fmt.Errorf("postgres: job offer strengths: %w", err)
	}
	if err := json.Unmarshal(responsibilities, &o.Responsibilities); err != nil {
		return domain.JobOffer{}, fmt.Errorf("postgres: job offer responsibilities: %w", err)
	}
	return o, nil
}

// SaveApplicationGraph implements [repo.ApplicationWriter]. Candidate, job
// offer, and application are written in one transaction; candidate and job
// offer rows are upserted by id.
func (s *ApplicationStore) SaveApplicationGraph(ctx context.Context, c domain.Candidate, o domain.JobOffer, a domain.ScreeningApplication) error {
	skills, err := json.Marshal(emptyIfNil(c.Skills))
	if err != nil {
		return fmt.Errorf("postgres: marshal skills: %w", err)
	}
	priorJobs := c.Jobs
	if priorJobs == nil {
		priorJobs = []domain.PriorJob{}
	}
	jobs, err := json.Marshal(priorJobs)
	if err != nil {
		return fmt.Errorf("postgres: marshal jobs: %w", err)
	}
	strengths, err := json.Marshal(emptyIfNil(o.Strengths))
	if err != nil {
		return fmt.Errorf("postgres: marshal strengths: %w", err)
	}
	responsibilities, err := json.Marshal(emptyIfNil(o.Responsibilities))
	if err != nil {
		return fmt.Errorf("postgres: marshal responsibilities: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO candidates (id, username, full_name, skills, jobs)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			full_name = EXCLUDED.full_name,
			skills = EXCLUDED.skills,
			jobs = EXCLUDED.jobs`,
		c.ID.String(), c.Username, c.FullName, skills, jobs); err != nil {
		return fmt.Errorf("postgres: upsert candidate: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO job_offers (id, external_id, objective, strengths, responsibilities)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			objective = EXCLUDED.objective,
			strengths = EXCLUDED.strengths,
			responsibilities = EXCLUDED.responsibilities`,
		o.ID.String(), o.ExternalID, o.Objective, strengths, responsibilities); err != nil {
		return fmt.Errorf("postgres: upsert job offer: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO applications (id, candidate_id, job_offer_id, username_key, external_job_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID.String(), a.CandidateID.String(), a.JobOfferID.String(),
		usernameKey(c.Username), strings.TrimSpace(o.ExternalID), a.CreatedAt); err != nil {
		return fmt.Errorf("postgres: insert application: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// emptyIfNil keeps JSONB columns as [] rather than null.
func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
