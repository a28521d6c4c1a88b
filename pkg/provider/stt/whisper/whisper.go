// Package whisper provides batch STT transcribers backed by whisper.cpp.
//
// Two implementations are available:
//
//   - [Transcriber] loads a ggml model in-process through the whisper.cpp CGO
//     bindings. The whisper.cpp static library (libwhisper.a) and headers
//     must be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
//   - [ServerTranscriber] talks to a running whisper-server binary over its
//     REST API (POST /inference), trading per-call HTTP overhead for a
//     CGO-free build.
//
// Both satisfy [stt.Transcriber] and are safe for concurrent use.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/casevox/casevox/pkg/provider/stt"
)

const defaultLanguage = "en"

// Compile-time assertion that Transcriber satisfies stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// Transcriber implements stt.Transcriber using the whisper.cpp Go bindings.
// The model is loaded once at construction and shared across all calls; each
// Transcribe call creates its own whisper context, so concurrent calls do not
// interfere.
type Transcriber struct {
	model    whisperlib.Model
	language string
	threads  uint
}

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the BCP-47 language code for transcription (e.g., "en",
// "de"). Defaults to "en". Use "auto" to let the model detect the language.
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithThreads sets the number of CPU threads whisper.cpp uses per inference.
// Zero (the default) lets the library decide.
func WithThreads(n uint) Option {
	return func(t *Transcriber) { t.threads = n }
}

// New creates a Transcriber that loads the ggml model from modelPath. The
// caller must call Close when the transcriber is no longer needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	t := &Transcriber{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Close releases the whisper model.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// Transcribe implements stt.Transcriber. It runs whisper.cpp inference over
// the whole buffer and returns the transcript with per-segment timing.
//
// whisper.cpp expects 16 kHz mono input; audio at other sample rates is
// rejected rather than silently producing garbage.
func (t *Transcriber) Transcribe(ctx context.Context, audio stt.Audio) (*stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	if audio.SampleRate != whisperlib.SampleRate {
		return nil, fmt.Errorf("whisper: sample rate %d not supported, want %d", audio.SampleRate, whisperlib.SampleRate)
	}
	if len(audio.Samples) == 0 {
		return &stt.Transcript{Language: t.language}, nil
	}

	// Each context is not thread-safe, but the model can be shared.
	wctx, err := t.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(t.language); err != nil {
		return nil, fmt.Errorf("whisper: set language %q: %w", t.language, err)
	}
	if t.threads > 0 {
		wctx.SetThreads(t.threads)
	}

	if err := wctx.Process(audio.Samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	result := &stt.Transcript{Language: t.language}
	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		result.Segments = append(result.Segments, stt.Segment{
			Text:  text,
			Start: seg.Start,
			End:   seg.End,
		})
	}
	result.Text = strings.Join(parts, " ")
	return result, nil
}
