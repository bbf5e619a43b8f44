package provider

import (
	"context"

	"github.com/chriscow/voicecore/pkg/media"
)

// VADEventType is the tagged-variant discriminator for VADEvent (§3).
type VADEventType int

const (
	VADSpeechStart VADEventType = iota
	VADSpeechEnd
	VADProbability
)

// VADEvent is the §3 VADEvent tagged variant: speech_start{timestamp},
// speech_end{timestamp}, probability{value, timestamp}.
type VADEvent struct {
	Type        VADEventType
	TimestampNS int64
	Probability float64
}

// VAD is the neural voice-activity-detection provider contract (§6). A VAD
// instance is shared read-only across sessions; callers keep per-session
// hysteresis/ring-buffer state themselves (VADGate owns that, not the VAD
// provider).
type VAD interface {
	// InferProbability runs one frame through the model and returns the
	// speech probability in [0,1]. Must complete in well under 5ms (§5); the
	// call itself is not cancellable, only bounded by the caller's timeout.
	InferProbability(ctx context.Context, frame media.Frame) (float64, error)

	// SampleRate is the sample rate frames must be resampled to before
	// InferProbability is called.
	SampleRate() int
}
