package provider

import (
	"context"

	"github.com/chriscow/voicecore/pkg/media"
)

// TTSStreamConfig configures a new synthesis session (§6:
// `open(voice, language, sample_rate) -> stream`). Sample rate and encoding
// are invariant for the life of the stream.
type TTSStreamConfig struct {
	Voice      string
	Language   string
	SampleRate int
}

// TTS is the text-to-speech provider contract (§6).
type TTS interface {
	Open(ctx context.Context, cfg TTSStreamConfig) (TTSProviderStream, error)
}

// TTSProviderStream accepts text fragments in order and emits PCM chunks in
// the same order; it never reorders (§4.7).
type TTSProviderStream interface {
	// PushText queues one text fragment for synthesis.
	PushText(ctx context.Context, text string) error

	// Chunks returns the channel of synthesized PCM frames, closed once the
	// stream is drained (after CloseSend) or cancelled.
	Chunks() <-chan media.Frame

	// CloseSend signals no more text is coming; the stream drains and then
	// closes Chunks().
	CloseSend(ctx context.Context) error

	// Cancel stops production of new chunks within 200ms and discards any
	// already-generated but unflushed audio (§4.7, §8 barge-in invariant).
	Cancel()
}
