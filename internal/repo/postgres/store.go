package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/repo"
)

// Compile-time interface checks.
var (
	_ repo.ApplicationRepository = (*ApplicationStore)(nil)
	_ repo.CallRepository        = (*CallStore)(nil)
	_ repo.AnalysisRepository    = (*AnalysisStore)(nil)
	_ repo.EmbeddingRepository   = (*EmbeddingStore)(nil)
)

// Store is the central PostgreSQL-backed persistence layer for the screening
// service. It holds a single [pgxpool.Pool] and exposes one sub-store per
// bounded context:
//
//   - [Store.Applications] implements [repo.ApplicationRepository]
//   - [Store.Calls] implements [repo.CallRepository]
//   - [Store.Analyses] implements [repo.AnalysisRepository]
//   - [Store.Embeddings] implements [repo.EmbeddingRepository]
//
// All operations are safe for concurrent use.
type Store struct {
	pool         *pgxpool.Pool
	applications *ApplicationStore
	calls        *CallStore
	analyses     *AnalysisStore
	embeddings   *EmbeddingStore
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn,
// registers pgvector types on every connection, and runs [Migrate].
//
// embeddingDimensions must match the output dimension of the configured
// embeddings provider.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:         pool,
		applications: &ApplicationStore{pool: pool},
		calls:        &CallStore{pool: pool},
		analyses:     &AnalysisStore{pool: pool},
		embeddings:   &EmbeddingStore{pool: pool},
	}, nil
}

// Applications returns the [repo.ApplicationRepository] implementation.
func (s *Store) Applications() *ApplicationStore { return s.applications }

// Calls returns the [repo.CallRepository] implementation.
func (s *Store) Calls() *CallStore { return s.calls }

// Analyses returns the [repo.AnalysisRepository] implementation.
func (s *Store) Analyses() *AnalysisStore { return s.analyses }

// Embeddings returns the [repo.EmbeddingRepository] implementation.
func (s *Store) Embeddings() *EmbeddingStore { return s.embeddings }

// Pool exposes the underlying connection pool so that adjacent tables (the
// event outbox) can share it.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }
