package resilience

import (
	"context"

	"github.com/casevox/casevox/pkg/provider/stt"
)

// STTFallback implements [stt.Transcriber] with automatic failover, e.g. a
// local whisper model as primary and a whisper-server instance as fallback.
type STTFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *STTFallback {
	if cfg.Kind == "" {
		cfg.Kind = "stt"
	}
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcriber as a fallback.
func (f *STTFallback) AddFallback(name string, transcriber stt.Transcriber) {
	f.group.AddFallback(name, transcriber)
}

// Transcribe runs the audio through the first healthy transcriber. The whole
// buffer is retried against the next backend on failure; transcription is
// stateless so a retry never duplicates output.
func (f *STTFallback) Transcribe(ctx context.Context, audio stt.Audio) (*stt.Transcript, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, t stt.Transcriber) (*stt.Transcript, error) {
		return t.Transcribe(ctx, audio)
	})
}
