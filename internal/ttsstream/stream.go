// Package ttsstream implements TTSStream (§4.7): turns ordered text
// fragments into ordered PCM chunks, with a ≤200ms cancellation guarantee
// for barge-in.
package ttsstream

import (
	"context"
	"log/slog"

	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
)

// Stream wraps one provider.TTSProviderStream for the life of one turn.
// Input order is preserved in the output order (§4.7); the wrapper itself
// adds no reordering, and its only addition to the provider stream is that
// PushText skips empty fragments.
type Stream struct {
	inner provider.TTSProviderStream
	log   *slog.Logger
}

// Open starts a new synthesis session.
func Open(ctx context.Context, tts provider.TTS, cfg provider.TTSStreamConfig, log *slog.Logger) (*Stream, error) {
	inner, err := tts.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Stream{inner: inner, log: log}, nil
}

// PushText queues one text fragment, in the order ChatEngine flushed it.
func (s *Stream) PushText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return s.inner.PushText(ctx, text)
}

// Chunks returns the ordered PCM output channel.
func (s *Stream) Chunks() <-chan media.Frame {
	return s.inner.Chunks()
}

// CloseWhenDrained signals no more text is coming and waits for the stream
// to finish producing chunks.
func (s *Stream) CloseWhenDrained(ctx context.Context) error {
	return s.inner.CloseSend(ctx)
}

// Cancel stops chunk production within 200ms and discards any buffered,
// unflushed audio (§4.7, the barge-in contract's step of cancelling TTS).
func (s *Stream) Cancel() {
	s.inner.Cancel()
}
