package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/casevox/casevox/pkg/store"
)

// IndexCase implements [store.Archive]. It upserts a case into the cases
// table. If a case with the same ID already exists it is completely replaced.
func (s *Store) IndexCase(ctx context.Context, c store.Case) error {
	const q = `
		INSERT INTO cases
		    (id, run_id, case_index, text, summary, category, flags, risk_score, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
		    run_id      = EXCLUDED.run_id,
		    case_index  = EXCLUDED.case_index,
		    text        = EXCLUDED.text,
		    summary     = EXCLUDED.summary,
		    category    = EXCLUDED.category,
		    flags       = EXCLUDED.flags,
		    risk_score  = EXCLUDED.risk_score,
		    embedding   = EXCLUDED.embedding,
		    created_at  = EXCLUDED.created_at`

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	flags := c.Flags
	if flags == nil {
		flags = map[string]bool{}
	}

	vec := pgvector.NewVector(c.Embedding)
	_, err := s.pool.Exec(ctx, q,
		c.ID,
		c.RunID,
		c.Index,
		c.Text,
		c.Summary,
		c.Category,
		flags,
		c.RiskScore,
		vec,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("case archive: index case: %w", err)
	}
	return nil
}

// Search implements [store.Archive]. It finds the topK cases whose embeddings
// are closest (cosine distance) to the supplied query embedding, optionally
// restricted by filter.
//
// Results are ordered by ascending cosine distance (most similar first).
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, filter store.Filter) ([]store.CaseResult, error) {
	queryVec := pgvector.NewVector(embedding)

	args := []any{queryVec} // $1 = query vector
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if filter.RunID != "" {
		conditions = append(conditions, "run_id = "+next(filter.RunID))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = "+next(filter.Category))
	}
	if filter.MinRisk > 0 {
		conditions = append(conditions, "risk_score >= "+next(filter.MinRisk))
	}
	if !filter.After.IsZero() {
		conditions = append(conditions, "created_at > "+next(filter.After))
	}
	if !filter.Before.IsZero() {
		conditions = append(conditions, "created_at < "+next(filter.Before))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, "\n  AND ")
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, run_id, case_index, text, summary, category, flags, risk_score, embedding, created_at,
		       embedding <=> $1 AS distance
		FROM   cases
		%s
		ORDER  BY distance
		LIMIT  %s`, whereClause, limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("case archive: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.CaseResult, error) {
		var (
			cr  store.CaseResult
			vec pgvector.Vector
		)
		if err := row.Scan(
			&cr.Case.ID,
			&cr.Case.RunID,
			&cr.Case.Index,
			&cr.Case.Text,
			&cr.Case.Summary,
			&cr.Case.Category,
			&cr.Case.Flags,
			&cr.Case.RiskScore,
			&vec,
			&cr.Case.CreatedAt,
			&cr.Distance,
		); err != nil {
			return store.CaseResult{}, err
		}
		cr.Case.Embedding = vec.Slice()
		return cr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("case archive: scan rows: %w", err)
	}
	if results == nil {
		results = []store.CaseResult{}
	}
	return results, nil
}

// ListRun implements [store.Archive]. It returns every case of a run ordered
// by its position in the run.
func (s *Store) ListRun(ctx context.Context, runID string) ([]store.Case, error) {
	const q = `
		SELECT id, run_id, case_index, text, summary, category, flags, risk_score, embedding, created_at
		FROM   cases
		WHERE  run_id = $1
		ORDER  BY case_index`

	rows, err := s.pool.Query(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("case archive: list run: %w", err)
	}

	cases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Case, error) {
		var (
			c   store.Case
			vec pgvector.Vector
		)
		if err := row.Scan(
			&c.ID,
			&c.RunID,
			&c.Index,
			&c.Text,
			&c.Summary,
			&c.Category,
			&c.Flags,
			&c.RiskScore,
			&vec,
			&c.CreatedAt,
		); err != nil {
			return store.Case{}, err
		}
		c.Embedding = vec.Slice()
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("case archive: scan rows: %w", err)
	}
	if cases == nil {
		cases = []store.Case{}
	}
	return cases, nil
}
