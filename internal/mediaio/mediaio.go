// Package mediaio implements MediaIO (§4.3): the bridge between the
// real-time transport's native audio and the pipeline's canonical PCM
// format, plus the best-effort control sidechannel. Adapted from the
// teacher's media/audio.go frame types and pkg/job event-funnel pattern
// (buffered channel, drop-on-full with a logged warning).
package mediaio

import (
	"log/slog"
	"time"

	"github.com/chriscow/voicecore/pkg/media"
)

// lateFrameThreshold is how far behind the wall clock an inbound frame may
// arrive before MediaIO drops it (§4.3).
const lateFrameThreshold = 500 * time.Millisecond

// StalledPauseThreshold is how long the outbound writer may block before
// the turn is treated as interrupted (§5 backpressure).
const StalledPauseThreshold = 2 * time.Second

// ControlEvent is one message on the best-effort control sidechannel (§4.3,
// §6).
type ControlEvent struct {
	Type string // "speech_start" | "speech_end" | "transcript_update" | "assistant_response" | "bot_response_interrupted" | "metrics_update"
	Data map[string]any
}

// MediaIO owns the inbound/outbound resampling pipeline and the control
// sidechannel for one session. Not safe for concurrent use across more
// than the inbound-router and outbound-writer goroutines it's documented
// to serve (§5).
type MediaIO struct {
	log *slog.Logger

	inboundDrops int

	control      chan ControlEvent
	controlDrops int
}

// New builds a MediaIO with a bounded control channel (capacity 32, an
// arbitrary but generous bound for UI event fan-out — the channel is
// best-effort so a slow consumer only loses events, never blocks the
// session).
func New(log *slog.Logger) *MediaIO {
	if log == nil {
		log = slog.Default()
	}
	return &MediaIO{
		log:     log,
		control: make(chan ControlEvent, 32),
	}
}

// AcceptInbound resamples/mixes an inbound frame to canonical format. It
// does not re-chunk: each frame keeps the length the transport delivered it
// with, and internal/transport passes every decoded Opus packet through as
// one frame, so frames are not cut to 512 samples anywhere in the
// pipeline. Returns (frame, true) if the frame should
// continue through the pipeline, or the zero value and false if it was
// dropped as late.
func (m *MediaIO) AcceptInbound(frame media.Frame, now time.Time) (media.Frame, bool) {
	captured := time.Unix(0, frame.TimestampNS)
	if now.Sub(captured) > lateFrameThreshold {
		m.inboundDrops++
		m.log.Warn("dropping late inbound frame",
			slog.Duration("lag", now.Sub(captured)),
			slog.Int("total_drops", m.inboundDrops))
		return media.Frame{}, false
	}

	canonical := frame
	if frame.Channels > media.CanonicalChannels {
		canonical = media.MixToMono(canonical)
	}
	if canonical.SampleRate != media.CanonicalSampleRate {
		canonical = media.Resample(canonical, media.CanonicalSampleRate)
	}
	return canonical, true
}

// PrepareOutbound resamples a TTS-produced frame to the transport's
// expected rate. Pacing to the wall clock is the outbound writer's
// responsibility (it paces its writes, not this conversion step).
func (m *MediaIO) PrepareOutbound(frame media.Frame, transportRate int) media.Frame {
	if frame.SampleRate == transportRate {
		return frame
	}
	return media.Resample(frame, transportRate)
}

// PublishControl best-effort sends one control event; drops (and logs) on
// a full channel rather than blocking the session (§4.3, §5).
func (m *MediaIO) PublishControl(evt ControlEvent) {
	select {
	case m.control <- evt:
	default:
		m.controlDrops++
		m.log.Warn("control sidechannel full, dropping event",
			slog.String("type", evt.Type),
			slog.Int("total_drops", m.controlDrops))
	}
}

// ControlEvents returns the channel UI/client consumers read from.
func (m *MediaIO) ControlEvents() <-chan ControlEvent {
	return m.control
}

// InboundDrops reports the running count of late-dropped inbound frames.
// The count is not part of the session's metrics Snapshot.
func (m *MediaIO) InboundDrops() int { return m.inboundDrops }
