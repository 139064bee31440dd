// Package postgres provides the pgx-backed implementations of the screening
// repositories. All stores share a single [pgxpool.Pool]; the pgvector
// extension is required for the embedding tables and is installed by
// [Migrate] via CREATE EXTENSION IF NOT EXISTS.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlApplications = `
CREATE TABLE IF NOT EXISTS candidates (
    id         UUID   PRIMARY KEY,
    username   TEXT   NOT NULL,
    full_name  TEXT   NOT NULL,
    skills     JSONB  NOT NULL DEFAULT '[]',
    jobs       JSONB  NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS job_offers (
    id                UUID   PRIMARY KEY,
    external_id       TEXT   NOT NULL,
    objective         TEXT   NOT NULL DEFAULT '',
    strengths         JSONB  NOT NULL DEFAULT '[]',
    responsibilities  JSONB  NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS applications (
    id               UUID         PRIMARY KEY,
    candidate_id     UUID         NOT NULL REFERENCES candidates (id),
    job_offer_id     UUID         NOT NULL REFERENCES job_offers (id),
    username_key     TEXT         NOT NULL,
    external_job_id  TEXT         NOT NULL,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_pair
    ON applications (username_key, external_job_id);
`

const ddlCalls = `
CREATE TABLE IF NOT EXISTS calls (
    id              UUID         PRIMARY KEY,
    application_id  UUID         NOT NULL,
    status          TEXT         NOT NULL,
    started_at      TIMESTAMPTZ  NOT NULL,
    ended_at        TIMESTAMPTZ,
    transcript      JSONB        NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_calls_application_id ON calls (application_id);
`

const ddlAnalyses = `
CREATE TABLE IF NOT EXISTS analyses (
    id              UUID         PRIMARY KEY,
    application_id  UUID         NOT NULL UNIQUE,
    fit_score       INT          NOT NULL,
    skills          JSONB        NOT NULL DEFAULT '[]',
    completed_at    TIMESTAMPTZ  NOT NULL,
    status          TEXT         NOT NULL
);
`

// ddlEmbeddings is parameterised on the vector dimension, which must match
// the configured embeddings provider.
const ddlEmbeddings = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS candidate_embeddings (
    candidate_id  UUID        PRIMARY KEY,
    embedding     vector(%d)  NOT NULL
);

CREATE TABLE IF NOT EXISTS job_offer_embeddings (
    job_offer_id  UUID        PRIMARY KEY,
    embedding     vector(%d)  NOT NULL
);
`

// Migrate creates all screening tables if they do not exist.
// embeddingDimensions sizes the pgvector columns; changing it after the
// first migration requires a manual schema change.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	for _, ddl := range []string{
		ddlApplications,
		ddlCalls,
		ddlAnalyses,
		fmt.Sprintf(ddlEmbeddings, embeddingDimensions, embeddingDimensions),
	} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
