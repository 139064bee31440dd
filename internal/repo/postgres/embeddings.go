package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo"
)

// EmbeddingStore implements [repo.EmbeddingRepository] on PostgreSQL using
// pgvector columns. Saves are upserts keyed by entity id, so redelivered
// events overwrite with the same vector instead of failing.
type EmbeddingStore struct {
	pool *pgxpool.Pool
}

// SaveCandidateEmbedding implements [repo.EmbeddingRepository].
func (s *EmbeddingStore) SaveCandidateEmbedding(ctx context.Context, id domain.CandidateID, vec []float32) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO candidate_embeddings (candidate_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (candidate_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		id.String(), pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("postgres: save candidate embedding: %w", err)
	}
	return nil
}

// GetCandidateEmbedding implements [repo.EmbeddingRepository].
func (s *EmbeddingStore) GetCandidateEmbedding(ctx context.Context, id domain.CandidateID) ([]float32, error) {
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT embedding FROM candidate_embeddings WHERE candidate_id = $1`, id.String()).
		Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get candidate embedding: %w", err)
	}
	return vec.Slice(), nil
}

// SaveJobOfferEmbedding implements [repo.EmbeddingRepository].
func (s *EmbeddingStore) SaveJobOfferEmbedding(ctx context.Context, id domain.JobOfferID, vec []float32) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_offer_embeddings (job_offer_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (job_offer_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		id.String(), pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("postgres: save job offer embedding: %w", err)
	}
	return nil
}

// GetJobOfferEmbedding implements [repo.EmbeddingRepository].
func (s *EmbeddingStore) GetJobOfferEmbedding(ctx context.Context, id domain.JobOfferID) ([]float32, error) {
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT embedding FROM job_offer_embeddings WHERE job_offer_id = $1`, id.String()).
		Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get job offer embedding: %w", err)
	}
	return vec.Slice(), nil
}
