// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// The pipeline processes recorded calls, not live audio, so the central
// abstraction is a batch transcriber: decoded PCM in, full transcript out.
// A Transcriber wraps whatever engine produces the text — a whisper.cpp model
// loaded in-process, a whisper-server instance over HTTP, or a cloud API.
//
// Implementations must be safe for concurrent use; the pipeline may
// transcribe several recordings in parallel.
package stt

import (
	"context"
	"time"
)

// Audio is a decoded mono PCM buffer ready for transcription.
type Audio struct {
	// Samples are normalised float32 samples in [-1, 1], mono.
	Samples []float32

	// SampleRate is the sample rate of Samples in Hz. Whisper models expect
	// 16000; callers are responsible for resampling before transcription.
	SampleRate int
}

// Duration returns the playing time of the audio buffer.
func (a Audio) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(a.Samples)) * time.Second / time.Duration(a.SampleRate)
}

// Segment is one timed span of a transcript, when the engine reports timing.
type Segment struct {
	// Text is the transcribed text of this span.
	Text string

	// Start and End are offsets from the beginning of the recording.
	Start time.Duration
	End   time.Duration
}

// Transcript is the full batch transcription result for one recording.
type Transcript struct {
	// Text is the complete transcribed speech content.
	Text string

	// Language is the BCP-47 language tag the engine used or detected.
	// Empty when the engine does not report it.
	Language string

	// Segments holds per-span detail when the engine provides it. May be nil.
	Segments []Segment
}

// Transcriber is the abstraction over any batch STT backend.
//
// Implementations must be safe for concurrent use.
type Transcriber interface {
	// Transcribe runs speech recognition over the entire audio buffer and
	// returns the transcript. It blocks until recognition completes or ctx
	// is cancelled; partial results are never returned.
	Transcribe(ctx context.Context, audio Audio) (*Transcript, error)
}
