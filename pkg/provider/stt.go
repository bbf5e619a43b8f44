package provider

import (
	"context"

	"github.com/chriscow/voicecore/pkg/media"
)

// STTStreamConfig configures a new streaming transcription session (§6:
// `open(sample_rate, language) -> stream`).
type STTStreamConfig struct {
	SampleRate int
	Language   string
}

// STTEvent is one interim or final transcript emitted by a provider stream.
type STTEvent struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

// STT is the speech-to-text provider contract (§6).
type STT interface {
	// Open starts a new streaming transcription session.
	Open(ctx context.Context, cfg STTStreamConfig) (STTProviderStream, error)
}

// STTProviderStream is a single open transcription turn at the provider
// boundary. STTStream (internal/sttstream) wraps this with turn semantics,
// reconnect-once, and degraded-mode fallback.
type STTProviderStream interface {
	// Push sends one audio frame for transcription.
	Push(ctx context.Context, frame media.Frame) error

	// Events returns the channel of interim/final transcripts. Closed when
	// the provider stream ends (after Close or on an unrecoverable error).
	Events() <-chan STTEvent

	// Close signals end of audio and waits for the final transcript,
	// returning it directly for convenience; Events() also receives it.
	Close(ctx context.Context) (STTEvent, error)
}
