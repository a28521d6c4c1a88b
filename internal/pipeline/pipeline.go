// Package pipeline orchestrates a full Casevox run: transcription (optional),
// semantic case segmentation, per-case summarisation and classification, and
// optional archival to the case store.
//
// The stages run strictly in order; within the per-case stage, cases are
// processed concurrently with a bounded errgroup. Segmentation and
// summarisation failures abort the run. Archival is best-effort: an archive or
// embedding error is logged and counted but never fails a run that has already
// produced its cases.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/casevox/casevox/internal/classify"
	"github.com/casevox/casevox/internal/observe"
	"github.com/casevox/casevox/internal/segment"
	"github.com/casevox/casevox/internal/summary"
	"github.com/casevox/casevox/pkg/provider/embeddings"
	"github.com/casevox/casevox/pkg/provider/stt"
	"github.com/casevox/casevox/pkg/store"
)

// defaultConcurrency bounds the number of cases summarised in parallel.
// Summarisation is LLM-bound, so a small fan-out already saturates most
// backends without tripping their rate limits.
const defaultConcurrency = 4

// Case is one fully processed case from a run.
type Case struct {
	// Index is the 1-based position of the case within the run.
	Index int

	// Text is the raw segment text.
	Text string

	// Summary is the condensed summary of Text.
	Summary string

	// Classification holds the category, flags, and risk score. Nil when
	// classification is disabled.
	Classification *classify.Result
}

// Result is the complete output of one pipeline run.
type Result struct {
	// RunID uniquely identifies this run. It groups the run's cases in the
	// archive and in exported files.
	RunID string

	// Transcript is the full transcript the cases were segmented from.
	Transcript string

	// Cases holds the processed cases in transcript order.
	Cases []Case
}

// Pipeline wires the processing stages together. Construct with [New];
// a Pipeline is safe for concurrent use when its collaborators are.
type Pipeline struct {
	transcriber stt.Transcriber
	segmenter   *segment.Segmenter
	summariser  summary.Summariser
	classifier  *classify.Classifier
	embedder    embeddings.Provider
	archive     store.Archive
	metrics     *observe.Metrics
	concurrency int
}

// Option is a functional option for [New].
type Option func(*Pipeline)

// WithTranscriber enables [Pipeline.RunAudio] by supplying an STT backend.
func WithTranscriber(t stt.Transcriber) Option {
	return func(p *Pipeline) { p.transcriber = t }
}

// WithClassifier enables heuristic classification of every case.
func WithClassifier(c *classify.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

// WithArchive enables best-effort archival of processed cases. The embedder
// produces the vector stored per case; it must match the archive's configured
// dimensions.
func WithArchive(a store.Archive, embedder embeddings.Provider) Option {
	return func(p *Pipeline) {
		p.archive = a
		p.embedder = embedder
	}
}

// WithMetrics enables metric recording on the given instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithConcurrency sets the per-case fan-out. Values below 1 fall back to the
// default.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n >= 1 {
			p.concurrency = n
		}
	}
}

// New constructs a [Pipeline] from the two mandatory stages. Returns an error
// when either is nil.
func New(segmenter *segment.Segmenter, summariser summary.Summariser, opts ...Option) (*Pipeline, error) {
	if segmenter == nil {
		return nil, errors.New("pipeline: segmenter must not be nil")
	}
	if summariser == nil {
		return nil, errors.New("pipeline: summariser must not be nil")
	}
	p := &Pipeline{
		segmenter:   segmenter,
		summariser:  summariser,
		concurrency: defaultConcurrency,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// RunAudio transcribes audio and processes the resulting transcript.
// Requires a transcriber configured via [WithTranscriber].
func (p *Pipeline) RunAudio(ctx context.Context, audio stt.Audio) (*Result, error) {
	if p.transcriber == nil {
		return nil, errors.New("pipeline: no transcriber configured")
	}

	ctx, span := observe.StartSpan(ctx, "pipeline.transcribe")
	start := time.Now()
	transcript, err := p.transcriber.Transcribe(ctx, audio)
	elapsed := time.Since(start)
	span.End()

	if p.metrics != nil {
		p.metrics.STTDuration.Record(ctx, elapsed.Seconds())
	}
	p.recordProviderCall(ctx, "stt", "transcribe", err)
	if err != nil {
		return nil, fmt.Errorf("pipeline: transcribe: %w", err)
	}

	observe.Logger(ctx).Info("transcription complete",
		"audio_duration", audio.Duration(),
		"stt_duration", elapsed,
		"language", transcript.Language,
	)
	return p.RunTranscript(ctx, transcript.Text)
}

// RunTranscript segments transcript into cases and summarises, classifies,
// and archives each one. An empty transcript yields a Result with zero cases.
func (p *Pipeline) RunTranscript(ctx context.Context, transcript string) (*Result, error) {
	runID := newRunID()
	ctx, span := observe.StartSpan(ctx, "pipeline.run",
		trace.WithAttributes(observe.Attr("run_id", runID)))
	defer span.End()

	if p.metrics != nil {
		p.metrics.ActiveRuns.Add(ctx, 1)
		defer p.metrics.ActiveRuns.Add(ctx, -1)
	}

	log := observe.Logger(ctx).With("run_id", runID)

	start := time.Now()
	segments, err := p.segmenter.Segment(ctx, transcript)
	if p.metrics != nil {
		p.metrics.SegmentationDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: segment: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordCases(ctx, len(segments))
	}
	log.Info("segmentation complete", "cases", len(segments))

	cases := make([]Case, len(segments))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.concurrency)
	for i, text := range segments {
		eg.Go(func() error {
			c, err := p.processCase(egCtx, runID, i+1, text)
			if err != nil {
				return err
			}
			cases[i] = c
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		RunID:      runID,
		Transcript: transcript,
		Cases:      cases,
	}, nil
}

// processCase summarises, classifies, and archives a single case.
func (p *Pipeline) processCase(ctx context.Context, runID string, index int, text string) (Case, error) {
	start := time.Now()
	sum, err := p.summariser.Summarise(ctx, text)
	if p.metrics != nil {
		p.metrics.SummaryDuration.Record(ctx, time.Since(start).Seconds())
	}
	p.recordProviderCall(ctx, "llm", "summarise", err)
	if err != nil {
		return Case{}, fmt.Errorf("pipeline: case %d: %w", index, err)
	}

	c := Case{Index: index, Text: text, Summary: sum}
	if p.classifier != nil {
		result := p.classifier.Classify(text)
		c.Classification = &result
	}

	if p.archive != nil {
		p.archiveCase(ctx, runID, c)
	}
	return c, nil
}

// archiveCase embeds and stores one case. Failures are logged and counted but
// never propagated; the run's primary output does not depend on the archive.
func (p *Pipeline) archiveCase(ctx context.Context, runID string, c Case) {
	log := observe.Logger(ctx).With("run_id", runID, "case_index", c.Index)

	start := time.Now()
	vec, err := p.embedder.Embed(ctx, c.Text)
	if p.metrics != nil {
		p.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds())
	}
	p.recordProviderCall(ctx, "embeddings", "embed", err)
	if err != nil {
		log.Warn("case not archived: embedding failed", "error", err)
		return
	}

	archived := store.Case{
		ID:        fmt.Sprintf("%s-%d", runID, c.Index),
		RunID:     runID,
		Index:     c.Index,
		Text:      c.Text,
		Summary:   c.Summary,
		Embedding: vec,
	}
	if c.Classification != nil {
		archived.Category = c.Classification.Category
		archived.Flags = flagMap(c.Classification.Flags)
		archived.RiskScore = c.Classification.RiskScore
	}

	if err := p.archive.IndexCase(ctx, archived); err != nil {
		log.Warn("case not archived: index failed", "error", err)
	}
}

// recordProviderCall records the request counter for one provider call and,
// on failure, the matching error counter.
func (p *Pipeline) recordProviderCall(ctx context.Context, provider, kind string, err error) {
	if p.metrics == nil {
		return
	}
	if err != nil {
		p.metrics.RecordProviderRequest(ctx, provider, kind, "error")
		p.metrics.RecordProviderError(ctx, provider, kind)
		return
	}
	p.metrics.RecordProviderRequest(ctx, provider, kind, "ok")
}

// flagMap converts the typed flags struct to the archive's name-keyed form.
func flagMap(f classify.Flags) map[string]bool {
	return map[string]bool{
		"remote_access":   f.RemoteAccess,
		"requests_codes":  f.RequestsCodes,
		"app_install":     f.AppInstall,
		"qr_scan":         f.QRScan,
		"payment_request": f.PaymentRequest,
		"urgency":         f.Urgency,
	}
}

// newRunID returns a random 16-hex-character run identifier.
func newRunID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
