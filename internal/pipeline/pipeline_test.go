package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/casevox/casevox/internal/classify"
	"github.com/casevox/casevox/internal/observe"
	"github.com/casevox/casevox/internal/pipeline"
	"github.com/casevox/casevox/internal/segment"
	embmock "github.com/casevox/casevox/pkg/provider/embeddings/mock"
	"github.com/casevox/casevox/pkg/provider/stt"
	sttmock "github.com/casevox/casevox/pkg/provider/stt/mock"
	storemock "github.com/casevox/casevox/pkg/store/mock"
)

// sixUnitTranscript splits into six sentence units; the fake embedder vectors
// put a similarity drop between units three and four, so segmentation yields
// exactly two cases.
const sixUnitTranscript = "Alpha one. Bravo two. Charlie three. Delta four. Echo five. Foxtrot six."

// twoCaseVectors embeds the first three units identically and the last three
// identically, with zero similarity across the gap.
var twoCaseVectors = [][]float32{
	{1, 0}, {1, 0}, {1, 0},
	{0, 1}, {0, 1}, {0, 1},
}

// rawParams disables coalescing, smoothing, and minimum-size merging so tests
// control segmentation purely through the embedder vectors.
var rawParams = segment.Params{
	MergeMinWords:   0,
	SmoothWindow:    1,
	SimThreshold:    0.28,
	MinSegmentWords: 0,
}

// stubSummariser summarises by echoing the first word of the case.
type stubSummariser struct {
	err error
}

func (s *stubSummariser) Summarise(_ context.Context, caseText string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	fields := strings.Fields(caseText)
	if len(fields) == 0 {
		return "", nil
	}
	return "About " + fields[0], nil
}

func newTestPipeline(t *testing.T, embedder *embmock.Provider, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	seg, err := segment.New(embedder, rawParams)
	if err != nil {
		t.Fatalf("segment.New: %v", err)
	}
	p, err := pipeline.New(seg, &stubSummariser{}, opts...)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return p
}

func TestRunTranscript_SegmentsAndSummarises(t *testing.T) {
	embedder := &embmock.Provider{EmbedBatchResult: twoCaseVectors}
	p := newTestPipeline(t, embedder)

	result, err := p.RunTranscript(context.Background(), sixUnitTranscript)
	if err != nil {
		t.Fatalf("RunTranscript: %v", err)
	}

	if result.RunID == "" {
		t.Error("RunID: want non-empty")
	}
	if result.Transcript != sixUnitTranscript {
		t.Errorf("Transcript: want original text, got %q", result.Transcript)
	}
	if len(result.Cases) != 2 {
		t.Fatalf("cases: want 2, got %d", len(result.Cases))
	}

	first, second := result.Cases[0], result.Cases[1]
	if first.Index != 1 || second.Index != 2 {
		t.Errorf("indexes: got %d, %d; want 1, 2", first.Index, second.Index)
	}
	if first.Text != "Alpha one. Bravo two. Charlie three." {
		t.Errorf("case 1 text: got %q", first.Text)
	}
	if second.Text != "Delta four. Echo five. Foxtrot six." {
		t.Errorf("case 2 text: got %q", second.Text)
	}
	if first.Summary != "About Alpha" || second.Summary != "About Delta" {
		t.Errorf("summaries: got %q, %q", first.Summary, second.Summary)
	}
	if first.Classification != nil {
		t.Error("classification: want nil when no classifier is configured")
	}
}

func TestRunTranscript_EmptyTranscript(t *testing.T) {
	embedder := &embmock.Provider{}
	p := newTestPipeline(t, embedder)

	result, err := p.RunTranscript(context.Background(), "   \n  ")
	if err != nil {
		t.Fatalf("RunTranscript: %v", err)
	}
	if len(result.Cases) != 0 {
		t.Errorf("cases: want 0, got %d", len(result.Cases))
	}
	if len(embedder.EmbedBatchCalls) != 0 {
		t.Errorf("embed calls: want 0 for empty transcript, got %d", len(embedder.EmbedBatchCalls))
	}
}

func TestRunTranscript_EmbeddingFailureAborts(t *testing.T) {
	embedder := &embmock.Provider{EmbedBatchErr: errors.New("backend down")}
	p := newTestPipeline(t, embedder)

	_, err := p.RunTranscript(context.Background(), sixUnitTranscript)
	if !errors.Is(err, segment.ErrEmbeddingFailure) {
		t.Errorf("want ErrEmbeddingFailure, got %v", err)
	}
}

func TestRunTranscript_SummariseErrorAborts(t *testing.T) {
	embedder := &embmock.Provider{EmbedBatchResult: twoCaseVectors}
	seg, err := segment.New(embedder, rawParams)
	if err != nil {
		t.Fatalf("segment.New: %v", err)
	}
	boom := errors.New("model overloaded")
	p, err := pipeline.New(seg, &stubSummariser{err: boom})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	_, err = p.RunTranscript(context.Background(), sixUnitTranscript)
	if !errors.Is(err, boom) {
		t.Errorf("want summariser error, got %v", err)
	}
}

func TestRunTranscript_ClassifiesCases(t *testing.T) {
	transcript := "Give me remote access through anydesk now. We will fix it together. " +
		"That is the fastest way. The weather report says sunshine. " +
		"Thanks for the lovely chat. Goodbye and have a nice day."
	embedder := &embmock.Provider{EmbedBatchResult: twoCaseVectors}
	p := newTestPipeline(t, embedder, pipeline.WithClassifier(classify.New()))

	result, err := p.RunTranscript(context.Background(), transcript)
	if err != nil {
		t.Fatalf("RunTranscript: %v", err)
	}
	if len(result.Cases) != 2 {
		t.Fatalf("cases: want 2, got %d", len(result.Cases))
	}

	first := result.Cases[0]
	if first.Classification == nil {
		t.Fatal("classification: want non-nil")
	}
	if first.Classification.Category != classify.CategoryRemoteAccess {
		t.Errorf("category: got %q, want %q", first.Classification.Category, classify.CategoryRemoteAccess)
	}
	if !first.Classification.Flags.RemoteAccess {
		t.Error("flags: want remote_access set")
	}
}

func TestRunTranscript_ArchivesCases(t *testing.T) {
	embedder := &embmock.Provider{
		EmbedBatchResult: twoCaseVectors,
		EmbedResult:      []float32{0.5, 0.5},
	}
	archive := &storemock.Archive{}
	p := newTestPipeline(t, embedder,
		pipeline.WithClassifier(classify.New()),
		pipeline.WithArchive(archive, embedder),
	)

	result, err := p.RunTranscript(context.Background(), sixUnitTranscript)
	if err != nil {
		t.Fatalf("RunTranscript: %v", err)
	}

	if archive.Len() != 2 {
		t.Fatalf("archived cases: want 2, got %d", archive.Len())
	}
	stored, ok := archive.Stored(result.RunID + "-1")
	if !ok {
		t.Fatalf("case %s-1 not archived", result.RunID)
	}
	if stored.RunID != result.RunID || stored.Index != 1 {
		t.Errorf("stored case: got run %q index %d", stored.RunID, stored.Index)
	}
	if stored.Summary != "About Alpha" {
		t.Errorf("stored summary: got %q", stored.Summary)
	}
	if stored.Flags == nil {
		t.Error("stored flags: want non-nil when classification is enabled")
	}
	if len(stored.Embedding) != 2 {
		t.Errorf("stored embedding: want 2 dimensions, got %d", len(stored.Embedding))
	}
}

func TestRunTranscript_ArchiveFailureIsNotFatal(t *testing.T) {
	embedder := &embmock.Provider{
		EmbedBatchResult: twoCaseVectors,
		EmbedResult:      []float32{0.5, 0.5},
	}
	archive := &storemock.Archive{IndexErr: errors.New("db unreachable")}
	p := newTestPipeline(t, embedder, pipeline.WithArchive(archive, embedder))

	result, err := p.RunTranscript(context.Background(), sixUnitTranscript)
	if err != nil {
		t.Fatalf("RunTranscript: want success despite archive error, got %v", err)
	}
	if len(result.Cases) != 2 {
		t.Errorf("cases: want 2, got %d", len(result.Cases))
	}
	if len(archive.IndexCalls) != 2 {
		t.Errorf("index attempts: want 2, got %d", len(archive.IndexCalls))
	}
}

func TestRunAudio(t *testing.T) {
	transcriber := &sttmock.Transcriber{
		Result: &stt.Transcript{Text: "Just one short sentence here.", Language: "en"},
	}
	embedder := &embmock.Provider{}
	p := newTestPipeline(t, embedder, pipeline.WithTranscriber(transcriber))

	audio := stt.Audio{Samples: make([]float32, 16000), SampleRate: 16000}
	result, err := p.RunAudio(context.Background(), audio)
	if err != nil {
		t.Fatalf("RunAudio: %v", err)
	}

	if len(transcriber.Calls) != 1 {
		t.Fatalf("transcribe calls: want 1, got %d", len(transcriber.Calls))
	}
	// One sentence is below the short-input cutoff: a single case, no
	// embedding round-trip.
	if len(result.Cases) != 1 {
		t.Fatalf("cases: want 1, got %d", len(result.Cases))
	}
	if result.Cases[0].Text != "Just one short sentence here." {
		t.Errorf("case text: got %q", result.Cases[0].Text)
	}
	if len(embedder.EmbedBatchCalls) != 0 {
		t.Errorf("embed calls: want 0 for short input, got %d", len(embedder.EmbedBatchCalls))
	}
}

func TestRunAudio_NoTranscriber(t *testing.T) {
	p := newTestPipeline(t, &embmock.Provider{})
	_, err := p.RunAudio(context.Background(), stt.Audio{})
	if err == nil {
		t.Fatal("want error when no transcriber is configured")
	}
}

func TestRunAudio_TranscribeError(t *testing.T) {
	boom := errors.New("model not loaded")
	transcriber := &sttmock.Transcriber{Err: boom}
	p := newTestPipeline(t, &embmock.Provider{}, pipeline.WithTranscriber(transcriber))

	_, err := p.RunAudio(context.Background(), stt.Audio{})
	if !errors.Is(err, boom) {
		t.Errorf("want transcriber error, got %v", err)
	}
}

// requestCounts sums the provider-request counter by provider, kind, and
// status attributes.
func requestCounts(t *testing.T, reader *sdkmetric.ManualReader) map[[3]string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	counts := map[[3]string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "casevox.provider.requests" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatal("casevox.provider.requests is not an int64 sum")
			}
			for _, dp := range sum.DataPoints {
				attrs := map[string]string{}
				for _, kv := range dp.Attributes.ToSlice() {
					attrs[string(kv.Key)] = kv.Value.AsString()
				}
				counts[[3]string{attrs["provider"], attrs["kind"], attrs["status"]}] += dp.Value
			}
		}
	}
	return counts
}

func TestRunTranscript_CountsProviderRequests(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	embedder := &embmock.Provider{
		EmbedBatchResult: twoCaseVectors,
		EmbedErr:         errors.New("quota exceeded"),
	}
	archive := &storemock.Archive{}
	p := newTestPipeline(t, embedder,
		pipeline.WithMetrics(metrics),
		pipeline.WithArchive(archive, embedder),
	)

	if _, err := p.RunTranscript(context.Background(), sixUnitTranscript); err != nil {
		t.Fatalf("RunTranscript: %v", err)
	}

	counts := requestCounts(t, reader)
	if got := counts[[3]string{"llm", "summarise", "ok"}]; got != 2 {
		t.Errorf("llm/summarise/ok = %d, want 2", got)
	}
	// Archival embedding failed for both cases, but best-effort.
	if got := counts[[3]string{"embeddings", "embed", "error"}]; got != 2 {
		t.Errorf("embeddings/embed/error = %d, want 2", got)
	}
}

func TestRunAudio_CountsTranscribeRequest(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	transcriber := &sttmock.Transcriber{
		Result: &stt.Transcript{Text: "Just one short sentence here."},
	}
	p := newTestPipeline(t, &embmock.Provider{},
		pipeline.WithMetrics(metrics),
		pipeline.WithTranscriber(transcriber),
	)

	if _, err := p.RunAudio(context.Background(), stt.Audio{Samples: []float32{0}, SampleRate: 16000}); err != nil {
		t.Fatalf("RunAudio: %v", err)
	}

	counts := requestCounts(t, reader)
	if got := counts[[3]string{"stt", "transcribe", "ok"}]; got != 1 {
		t.Errorf("stt/transcribe/ok = %d, want 1", got)
	}
}

func TestNew_NilStages(t *testing.T) {
	if _, err := pipeline.New(nil, &stubSummariser{}); err == nil {
		t.Error("want error for nil segmenter")
	}
	embedder := &embmock.Provider{}
	seg, err := segment.New(embedder, rawParams)
	if err != nil {
		t.Fatalf("segment.New: %v", err)
	}
	if _, err := pipeline.New(seg, nil); err == nil {
		t.Error("want error for nil summariser")
	}
}
