// Package sttstream implements STTStream (§4.5): one streaming
// transcription turn per session, wrapping the pkg/provider.STT contract
// with reconnect-once-then-degrade semantics and the "no audio -> empty
// final" edge case.
package sttstream

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
)

// Stream is a single open-turn session around a provider.STT. Callers open
// one per captured utterance and close it once STT-gated audio stops
// flowing (VADGate's speech_end).
type Stream struct {
	stt        provider.STT
	cfg        provider.STTStreamConfig
	log        *slog.Logger
	reconnects int

	inner     provider.STTProviderStream
	pushed    bool
	degraded  bool
}

// Open starts a new transcription turn.
func Open(ctx context.Context, stt provider.STT, cfg provider.STTStreamConfig, log *slog.Logger) (*Stream, error) {
	inner, err := stt.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Stream{stt: stt, cfg: cfg, inner: inner, log: log}, nil
}

// Push forwards one gated audio frame to the provider stream. On a
// recoverable error it reconnects once within 500ms (§4.5); a second
// failure degrades the turn: subsequent Push calls are no-ops and Close
// returns a synthetic empty final with Degraded set.
func (s *Stream) Push(ctx context.Context, frame media.Frame) error {
	if s.degraded {
		return nil
	}

	s.pushed = true
	err := s.inner.Push(ctx, frame)
	if err == nil {
		return nil
	}
	if !provider.IsRecoverable(err) {
		s.log.Error("stt push failed fatally", slog.Any("error", err))
		s.degrade()
		return nil
	}

	s.log.Warn("stt push failed, reconnecting", slog.Any("error", err))
	if s.reconnect(ctx) {
		if err2 := s.inner.Push(ctx, frame); err2 == nil {
			return nil
		}
	}
	s.degrade()
	return nil
}

// Events returns the channel of interim/final transcripts from the live
// provider stream. Callers must stop reading once Close returns.
func (s *Stream) Events() <-chan provider.STTEvent {
	if s.degraded {
		ch := make(chan provider.STTEvent)
		close(ch)
		return ch
	}
	return s.inner.Events()
}

// Close signals end of audio and returns the final transcript. If no audio
// was ever pushed, it yields an empty final without contacting the provider
// (§4.5: "If no audio was pushed between open and close, the turn yields an
// empty final and is dropped by the EventLoop").
func (s *Stream) Close(ctx context.Context) (provider.STTEvent, error) {
	if s.degraded || !s.pushed {
		return provider.STTEvent{Text: "", IsFinal: true}, nil
	}

	final, err := s.inner.Close(ctx)
	if err != nil {
		s.log.Warn("stt close failed, degrading", slog.Any("error", err))
		return provider.STTEvent{Text: "", IsFinal: true}, nil
	}
	return final, nil
}

// Degraded reports whether this turn fell back to empty-final mode.
func (s *Stream) Degraded() bool { return s.degraded }

func (s *Stream) reconnect(ctx context.Context) bool {
	if s.reconnects >= 1 {
		return false
	}
	s.reconnects++

	reconnectCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	inner, err := s.stt.Open(reconnectCtx, s.cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.Warn("stt reconnect timed out")
		}
		return false
	}
	s.inner = inner
	return true
}

func (s *Stream) degrade() {
	s.degraded = true
}
