// Package mock provides an in-memory [store.Archive] implementation for
// tests. It keeps cases in a map, computes real cosine distances for Search,
// and records every call so tests can assert on interactions.
package mock

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/casevox/casevox/pkg/store"
)

// Compile-time interface check.
var _ store.Archive = (*Archive)(nil)

// SearchCall records a single invocation of Search.
type SearchCall struct {
	Embedding []float32
	TopK      int
	Filter    store.Filter
}

// Archive is an in-memory, call-recording implementation of [store.Archive].
// The zero value is ready to use. Set the Err fields to force errors.
type Archive struct {
	mu sync.Mutex

	// IndexErr, when non-nil, is returned by every IndexCase call.
	IndexErr error

	// SearchErr, when non-nil, is returned by every Search call.
	SearchErr error

	// ListErr, when non-nil, is returned by every ListRun call.
	ListErr error

	// IndexCalls records the cases passed to IndexCase, in order.
	IndexCalls []store.Case

	// SearchCalls records the arguments of every Search call, in order.
	SearchCalls []SearchCall

	// ListRunCalls records the run IDs passed to ListRun, in order.
	ListRunCalls []string

	cases map[string]store.Case
}

// IndexCase implements [store.Archive].
func (a *Archive) IndexCase(_ context.Context, c store.Case) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.IndexCalls = append(a.IndexCalls, c)
	if a.IndexErr != nil {
		return a.IndexErr
	}
	if a.cases == nil {
		a.cases = make(map[string]store.Case)
	}
	a.cases[c.ID] = c
	return nil
}

// Search implements [store.Archive]. It ranks stored cases by cosine distance
// to embedding, applies filter, and returns at most topK results.
func (a *Archive) Search(_ context.Context, embedding []float32, topK int, filter store.Filter) ([]store.CaseResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SearchCalls = append(a.SearchCalls, SearchCall{
		Embedding: append([]float32(nil), embedding...),
		TopK:      topK,
		Filter:    filter,
	})
	if a.SearchErr != nil {
		return nil, a.SearchErr
	}

	results := []store.CaseResult{}
	for _, c := range a.cases {
		if !matches(c, filter) {
			continue
		}
		results = append(results, store.CaseResult{
			Case:     c,
			Distance: cosineDistance(embedding, c.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// ListRun implements [store.Archive].
func (a *Archive) ListRun(_ context.Context, runID string) ([]store.Case, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ListRunCalls = append(a.ListRunCalls, runID)
	if a.ListErr != nil {
		return nil, a.ListErr
	}

	cases := []store.Case{}
	for _, c := range a.cases {
		if c.RunID == runID {
			cases = append(cases, c)
		}
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].Index < cases[j].Index })
	return cases, nil
}

// Stored returns the case with the given ID and whether it exists.
func (a *Archive) Stored(id string) (store.Case, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.cases[id]
	return c, ok
}

// Len returns the number of stored cases.
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cases)
}

// Reset clears all recorded calls and stored cases.
func (a *Archive) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.IndexCalls = nil
	a.SearchCalls = nil
	a.ListRunCalls = nil
	a.cases = nil
}

func matches(c store.Case, f store.Filter) bool {
	if f.RunID != "" && c.RunID != f.RunID {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.MinRisk > 0 && c.RiskScore < f.MinRisk {
		return false
	}
	if !f.After.IsZero() && !c.CreatedAt.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !c.CreatedAt.Before(f.Before) {
		return false
	}
	return true
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
