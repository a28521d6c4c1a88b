// Package store defines the case archive abstraction for Casevox.
//
// A processed pipeline run produces a sequence of cases: segment text, a
// summary, optional classification metadata, and the mean embedding of the
// segment's units. The [Archive] interface persists those cases and supports
// similarity search over their embeddings, so that analysts can ask "show me
// past calls that look like this one".
//
// The canonical implementation is the pgvector-backed store in the postgres
// subpackage; the mock subpackage provides an in-memory double for tests.
//
// Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"time"
)

// Case is one archived case from a pipeline run.
type Case struct {
	// ID is the unique identifier for this case (e.g., a UUID).
	ID string

	// RunID groups all cases produced by a single pipeline invocation.
	RunID string

	// Index is the 1-based position of the case within its run.
	Index int

	// Text is the raw segment text.
	Text string

	// Summary is the generated summary of Text.
	Summary string

	// Category is the classification label. Empty when classification was
	// disabled for the run.
	Category string

	// Flags holds the behavioural indicator flags by name. May be nil when
	// classification was disabled.
	Flags map[string]bool

	// RiskScore is the fraud-risk score in [0, 100]. Zero when
	// classification was disabled.
	RiskScore int

	// Embedding is the vector representation of Text. Dimension must match
	// the archive configuration.
	Embedding []float32

	// CreatedAt is when the case was archived. The zero value lets the
	// implementation assign the current time.
	CreatedAt time.Time
}

// CaseResult is a Case together with its similarity distance to a query.
type CaseResult struct {
	Case Case

	// Distance is the cosine distance to the query embedding. Lower is more
	// similar.
	Distance float64
}

// Filter restricts a similarity search. All non-zero fields are applied as
// AND conditions.
type Filter struct {
	// RunID restricts results to a single pipeline run.
	RunID string

	// Category restricts results to cases with this classification label.
	Category string

	// MinRisk filters out cases with a risk score below this value.
	MinRisk int

	// After filters cases archived after this instant (exclusive).
	After time.Time

	// Before filters cases archived before this instant (exclusive).
	Before time.Time
}

// Archive persists cases and supports embedding-based similarity search.
type Archive interface {
	// IndexCase upserts a case. A case with an existing ID is replaced.
	IndexCase(ctx context.Context, c Case) error

	// Search returns the topK archived cases closest (cosine distance) to
	// embedding, most similar first, optionally restricted by filter.
	Search(ctx context.Context, embedding []float32, topK int, filter Filter) ([]CaseResult, error)

	// ListRun returns all cases of a run ordered by Index.
	ListRun(ctx context.Context, runID string) ([]Case, error)
}
