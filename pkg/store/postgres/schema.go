package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlCases returns the cases DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddlCases(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS cases (
    id          TEXT         PRIMARY KEY,
    run_id      TEXT         NOT NULL,
    case_index  INT          NOT NULL,
    text        TEXT         NOT NULL,
    summary     TEXT         NOT NULL DEFAULT '',
    category    TEXT         NOT NULL DEFAULT '',
    flags       JSONB        NOT NULL DEFAULT '{}',
    risk_score  INT          NOT NULL DEFAULT 0,
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cases_run_id
    ON cases (run_id);

CREATE INDEX IF NOT EXISTS idx_cases_run_index
    ON cases (run_id, case_index);

CREATE INDEX IF NOT EXISTS idx_cases_category
    ON cases (category);

CREATE INDEX IF NOT EXISTS idx_cases_risk_score
    ON cases (risk_score);

CREATE INDEX IF NOT EXISTS idx_cases_embedding
    ON cases USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the cases table and the pgvector extension exist.
// It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS)
// and safe to call on every application start.
//
// embeddingDimensions must match the vector model configured for your
// deployment (e.g., 1536 for OpenAI text-embedding-3-small, 768 for
// nomic-embed-text). Changing this value after the first migration requires a
// manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlCases(embeddingDimensions)); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
