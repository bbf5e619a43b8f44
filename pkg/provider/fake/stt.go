package fake

import (
	"context"

	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
)

// STT is a scriptable STT provider: FailOpens/FailPushes let a test force a
// given number of Open/Push failures before succeeding, to exercise
// internal/sttstream's reconnect-once-then-degrade path.
type STT struct {
	FinalText  string
	FailOpens  int
	FailPushes int

	opens      int
	pushFailed int
}

func NewSTT(finalText string) *STT {
	return &STT{FinalText: finalText}
}

func (f *STT) Open(ctx context.Context, cfg provider.STTStreamConfig) (provider.STTProviderStream, error) {
	if f.opens < f.FailOpens {
		f.opens++
		return nil, provider.WrapRecoverable(errTransient, "fake open failed")
	}
	f.opens++
	return &sttStream{parent: f, events: make(chan provider.STTEvent, 8)}, nil
}

type sttStream struct {
	parent    *STT
	events    chan provider.STTEvent
	pushCount int
	pushed    bool
}

// Push fails FailPushes times total across the STT's lifetime (including
// across reconnects, since each reconnect opens a fresh stream instance),
// then always succeeds.
func (s *sttStream) Push(ctx context.Context, frame media.Frame) error {
	if s.parent.pushFailed < s.parent.FailPushes {
		s.parent.pushFailed++
		return provider.WrapRecoverable(errTransient, "fake push failed")
	}
	s.pushed = true
	s.pushCount++
	return nil
}

func (s *sttStream) Events() <-chan provider.STTEvent { return s.events }

func (s *sttStream) Close(ctx context.Context) (provider.STTEvent, error) {
	defer close(s.events)
	if !s.pushed {
		return provider.STTEvent{Text: "", IsFinal: true}, nil
	}
	final := provider.STTEvent{Text: s.parent.FinalText, IsFinal: true, Confidence: 1.0}
	return final, nil
}

var errTransient = transientError{}

type transientError struct{}

func (transientError) Error() string { return "fake: transient provider failure" }
