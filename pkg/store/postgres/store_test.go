package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/casevox/casevox/pkg/store"
	"github.com/casevox/casevox/pkg/store/postgres"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if CASEVOX_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("CASEVOX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CASEVOX_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema.
// It calls t.Cleanup to close the store when the test finishes.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	// Use a bare pool to drop and recreate the schema.
	cleanPool := mustPool(t, ctx, dsn)
	t.Cleanup(cleanPool.Close)
	if _, err := cleanPool.Exec(ctx, "DROP TABLE IF EXISTS cases CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	archive, err := postgres.NewStore(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(archive.Close)
	return archive
}

// mustPool opens a pgxpool with pgvector types registered.
func mustPool(t *testing.T, ctx context.Context, dsn string) *pgxpool.Pool {
	t.Helper()
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// best-effort: pgvector may not be installed yet on a fresh DB
		_ = pgxvec.RegisterTypes(ctx, conn)
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return pool
}

func seedCases(t *testing.T, ctx context.Context, archive *postgres.Store) {
	t.Helper()
	for _, c := range []store.Case{
		{
			ID: "case-1", RunID: "run-1", Index: 1,
			Text:      "caller asked the agent to install anydesk right now",
			Summary:   "Caller requested remote access software installation.",
			Category:  "Remote Access Attempt",
			Flags:     map[string]bool{"remote_access": true, "urgency": true},
			RiskScore: 63,
			Embedding: []float32{1, 0, 0, 0},
		},
		{
			ID: "case-2", RunID: "run-1", Index: 2,
			Text:      "caller wanted to know the branch opening hours",
			Summary:   "Caller asked for opening hours.",
			Category:  "Other",
			Flags:     map[string]bool{},
			Embedding: []float32{0, 1, 0, 0},
		},
		{
			ID: "case-3", RunID: "run-2", Index: 1,
			Text:      "caller requested a withdrawal to an unknown account",
			Summary:   "Caller requested a withdrawal.",
			Category:  "Payment / Withdrawal Request",
			Flags:     map[string]bool{"payment_request": true},
			RiskScore: 15,
			Embedding: []float32{0, 0, 1, 0},
		},
	} {
		if err := archive.IndexCase(ctx, c); err != nil {
			t.Fatalf("IndexCase %s: %v", c.ID, err)
		}
	}
}

func TestIndexAndSearch(t *testing.T) {
	archive := newTestStore(t)
	ctx := context.Background()
	seedCases(t, ctx, archive)

	// Query closest to case-1 (embedding [1,0,0,0]).
	results, err := archive.Search(ctx, []float32{1, 0, 0, 0}, 3, store.Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Search topK=3: want 3 results, got %d", len(results))
	}
	if len(results) > 0 && results[0].Case.ID != "case-1" {
		t.Errorf("closest case: want case-1, got %s (distance %.4f)", results[0].Case.ID, results[0].Distance)
	}

	// Flags round-trip through JSONB.
	if len(results) > 0 && !results[0].Case.Flags["remote_access"] {
		t.Errorf("Flags: want remote_access=true, got %v", results[0].Case.Flags)
	}

	// Scope to run-2.
	scoped, err := archive.Search(ctx, []float32{0, 0, 1, 0}, 10, store.Filter{RunID: "run-2"})
	if err != nil {
		t.Fatalf("Search scoped: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Case.ID != "case-3" {
		t.Errorf("run scope: want [case-3], got %v", caseResultIDs(scoped))
	}

	// Risk floor filters out the harmless cases.
	risky, err := archive.Search(ctx, []float32{1, 0, 0, 0}, 10, store.Filter{MinRisk: 50})
	if err != nil {
		t.Fatalf("Search risky: %v", err)
	}
	if len(risky) != 1 || risky[0].Case.ID != "case-1" {
		t.Errorf("risk filter: want [case-1], got %v", caseResultIDs(risky))
	}

	// Category filter.
	byCat, err := archive.Search(ctx, []float32{1, 0, 0, 0}, 10, store.Filter{Category: "Other"})
	if err != nil {
		t.Fatalf("Search category: %v", err)
	}
	if len(byCat) != 1 || byCat[0].Case.ID != "case-2" {
		t.Errorf("category filter: want [case-2], got %v", caseResultIDs(byCat))
	}

	// Time filters.
	future := time.Now().Add(time.Hour)
	none, err := archive.Search(ctx, []float32{1, 0, 0, 0}, 10, store.Filter{After: future})
	if err != nil {
		t.Fatalf("Search after: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("after filter: want 0, got %d", len(none))
	}
}

func TestIndexCase_Upsert(t *testing.T) {
	archive := newTestStore(t)
	ctx := context.Background()
	seedCases(t, ctx, archive)

	updated := store.Case{
		ID: "case-1", RunID: "run-1", Index: 1,
		Text:      "updated text after upsert",
		Summary:   "Updated summary.",
		Embedding: []float32{0, 0, 0, 1},
	}
	if err := archive.IndexCase(ctx, updated); err != nil {
		t.Fatalf("IndexCase upsert: %v", err)
	}

	results, err := archive.Search(ctx, []float32{0, 0, 0, 1}, 1, store.Filter{})
	if err != nil {
		t.Fatalf("Search after upsert: %v", err)
	}
	if len(results) < 1 {
		t.Fatal("upsert: no results returned")
	}
	if results[0].Case.Text != updated.Text {
		t.Errorf("upsert: want text %q, got %q", updated.Text, results[0].Case.Text)
	}
}

func TestListRun(t *testing.T) {
	archive := newTestStore(t)
	ctx := context.Background()
	seedCases(t, ctx, archive)

	cases, err := archive.ListRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListRun: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("ListRun: want 2, got %d", len(cases))
	}
	if cases[0].Index != 1 || cases[1].Index != 2 {
		t.Errorf("ListRun order: got indexes %d, %d; want 1, 2", cases[0].Index, cases[1].Index)
	}

	empty, err := archive.ListRun(ctx, "no-such-run")
	if err != nil {
		t.Fatalf("ListRun empty: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListRun empty: want 0, got %d", len(empty))
	}
}

func caseResultIDs(results []store.CaseResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Case.ID
	}
	return ids
}
