// Package segment implements semantic case segmentation of call-center
// transcripts.
//
// A single recording often covers several unrelated customer cases. The
// [Segmenter] detects the boundaries between them by embedding each
// sentence-level unit of the transcript, computing consecutive-pair cosine
// similarities, smoothing the resulting series, and cutting wherever the
// smoothed similarity drops below a threshold. A final compaction pass merges
// undersized segments into their neighbours so that every emitted case is
// large enough for downstream summarisation.
//
// The stages form a strict batch pipeline:
//
//	tokenise → coalesce → embed → similarity → smooth → boundaries → enforce → assemble
//
// Each stage consumes the complete output of the previous one; nothing is
// streamed. A Segmenter holds no per-run state and is safe for concurrent use
// as long as its [embeddings.Provider] is.
package segment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/casevox/casevox/pkg/provider/embeddings"
)

// shortInputUnits is the unit count at or below which the whole transcript is
// returned as a single segment without consulting the embeddings provider.
// Similarity analysis on a handful of units is meaningless and the external
// call is not worth making.
const shortInputUnits = 4

// ErrEmbeddingFailure wraps any error from the embeddings provider, including
// a response whose length does not match the submitted unit count. The run
// fails whole; no partial segmentation is ever returned.
var ErrEmbeddingFailure = errors.New("segment: embedding failure")

// Params are the tunable knobs of the segmentation pipeline. The zero value
// is not usable; start from [DefaultParams].
type Params struct {
	// MergeMinWords is the word count below which a sentence is coalesced
	// into its neighbours rather than emitted as a standalone unit. Filler
	// utterances ("okay", "mm-hmm") otherwise produce noisy embeddings.
	MergeMinWords int `yaml:"merge_min_words"`

	// SmoothWindow is the width of the centered moving average applied to
	// the similarity series before thresholding. A window of 1 (or 0)
	// disables smoothing.
	SmoothWindow int `yaml:"smooth_window"`

	// SimThreshold is the smoothed-similarity value below which a case
	// boundary is proposed between two adjacent units.
	SimThreshold float64 `yaml:"sim_threshold"`

	// MinSegmentWords is the minimum word count of an emitted case. Smaller
	// candidate segments are merged into a neighbour.
	MinSegmentWords int `yaml:"min_segment_words"`
}

// DefaultParams returns the tuned defaults used in production.
func DefaultParams() Params {
	return Params{
		MergeMinWords:   6,
		SmoothWindow:    3,
		SimThreshold:    0.28,
		MinSegmentWords: 35,
	}
}

// Validate reports every configuration error in p as a single joined error.
// Out-of-range values are rejected before any processing begins.
func (p Params) Validate() error {
	var errs []error
	if p.MergeMinWords < 0 {
		errs = append(errs, fmt.Errorf("segment: merge_min_words must not be negative, got %d", p.MergeMinWords))
	}
	if p.SmoothWindow < 0 {
		errs = append(errs, fmt.Errorf("segment: smooth_window must not be negative, got %d", p.SmoothWindow))
	}
	// Cosine similarity ranges over [-1, 1], so any threshold down to -1 is
	// meaningful (it disables splitting entirely).
	if p.SimThreshold < -1 {
		errs = append(errs, fmt.Errorf("segment: sim_threshold must be at least -1, got %g", p.SimThreshold))
	}
	if p.MinSegmentWords < 0 {
		errs = append(errs, fmt.Errorf("segment: min_segment_words must not be negative, got %d", p.MinSegmentWords))
	}
	return errors.Join(errs...)
}

// Segmenter splits a transcript into semantically coherent case segments.
// Construct one with [New]; the zero value is not usable.
type Segmenter struct {
	embedder embeddings.Provider
	params   Params
}

// New constructs a [Segmenter] using embedder for unit vectorisation.
// Returns an error when params fails validation or embedder is nil.
func New(embedder embeddings.Provider, params Params) (*Segmenter, error) {
	if embedder == nil {
		return nil, errors.New("segment: embedder must not be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{embedder: embedder, params: params}, nil
}

// Segment runs the full pipeline on transcript and returns the ordered case
// texts. An empty or whitespace-only transcript yields an empty slice and no
// embeddings call. Any embeddings failure aborts the run and is reported
// wrapped in [ErrEmbeddingFailure].
//
// Concatenating the returned segments always reproduces the coalesced unit
// sequence word for word: no text is dropped or reordered, only whitespace is
// normalised.
func (s *Segmenter) Segment(ctx context.Context, transcript string) ([]string, error) {
	units := Coalesce(SplitSentences(transcript), s.params.MergeMinWords)
	if len(units) == 0 {
		return []string{}, nil
	}
	if len(units) <= shortInputUnits {
		return []string{strings.Join(units, " ")}, nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, units)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailure, err)
	}
	if len(vectors) != len(units) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbeddingFailure, len(units), len(vectors))
	}

	sims := consecutiveSimilarities(vectors)
	smoothed := Smooth(sims, s.params.SmoothWindow)
	boundaries := Boundaries(smoothed, s.params.SimThreshold)
	ranges := enforceMinWords(units, buildRanges(boundaries, len(units)), s.params.MinSegmentWords)

	return assemble(units, ranges), nil
}

// assemble renders each range back into flat text, space-joining the
// constituent units in original order.
func assemble(units []string, ranges []Range) []string {
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, strings.TrimSpace(strings.Join(units[r.Start:r.End+1], " ")))
	}
	return out
}

// wordCount counts whitespace-separated words in text.
func wordCount(text string) int {
	return len(strings.Fields(text))
}
