// Package vadgate implements VADGate (§4.4): the per-session hysteresis
// state machine and pre-speech ring buffer that decides, frame by frame,
// whether audio should reach STTStream. Grounded on the teacher's minimal
// atomic-backed AudioGate (pkg/voice/gate.go) generalized to the spec's
// richer two-threshold hysteresis and ring-buffer requirements.
package vadgate

import (
	"context"
	"time"

	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/provider"
)

// phase is the gate's internal speech/silence tracking state, distinct from
// (but feeding) the session-level SessionState machine.
type phase int

const (
	phaseListening phase = iota
	phaseCapturing
)

// Config parameterizes the hysteresis thresholds and buffer sizes (§4.4,
// §6 defaults).
type Config struct {
	ThresholdOn   float64
	ThresholdOff  float64
	MinSpeech     time.Duration
	MinSilence    time.Duration
	PreRoll       time.Duration
	FrameDuration time.Duration // nominal duration of one canonical frame (32ms); when zero, each frame's own Duration() is used
}

// Gate decides per-frame whether audio is speech, emitting speech_start/
// speech_end events and maintaining the pre-speech ring buffer. Not safe
// for concurrent use; owned exclusively by one session's EventLoop.
type Gate struct {
	vad provider.VAD
	cfg Config

	phase phase
	ring  []media.Frame // bounded FIFO of pre-roll canonical frames

	aboveOnSince  time.Time
	belowOffSince time.Time
}

// New creates a Gate backed by vad, a shared read-only neural VAD instance
// (§5: "VAD model: shared read-only across sessions; per-session VAD state
// ... is session-local").
func New(vad provider.VAD, cfg Config) *Gate {
	return &Gate{vad: vad, cfg: cfg, phase: phaseListening}
}

// Event is what Push returns to the EventLoop: at most one transition per
// frame, plus the frames (if any) that should now be forwarded to STT.
type Event struct {
	SpeechStarted bool
	SpeechEnded   bool
	// FramesToSTT are, in order, the frames the EventLoop must push to
	// STTStream as a result of this call: the drained ring on speech_start,
	// or just the current frame while CAPTURING.
	FramesToSTT []media.Frame
}

// Push runs one canonical frame through the VAD model and updates gate
// state, returning any resulting transition and the frames to forward to
// STT. Blocks only for the VAD inference call, which the provider contract
// bounds to well under 5ms (§5).
func (g *Gate) Push(ctx context.Context, frame media.Frame) (Event, error) {
	prob, err := g.vad.InferProbability(ctx, frame)
	if err != nil {
		return Event{}, err
	}

	now := time.Unix(0, frame.TimestampNS)
	// Each frame counts for its own duration, so a span runs from the start
	// of its first qualifying frame to the end of the current one.
	frameDur := g.cfg.FrameDuration
	if frameDur == 0 {
		frameDur = frame.Duration()
	}

	switch g.phase {
	case phaseListening:
		g.ring = append(g.ring, frame)
		g.trimRing(now)

		if prob >= g.cfg.ThresholdOn {
			if g.aboveOnSince.IsZero() {
				g.aboveOnSince = now
			}
			if now.Add(frameDur).Sub(g.aboveOnSince) >= g.cfg.MinSpeech {
				g.phase = phaseCapturing
				g.belowOffSince = time.Time{}
				drained := g.ring
				g.ring = nil
				return Event{SpeechStarted: true, FramesToSTT: drained}, nil
			}
		} else {
			g.aboveOnSince = time.Time{}
		}
		return Event{}, nil

	case phaseCapturing:
		if prob < g.cfg.ThresholdOff {
			if g.belowOffSince.IsZero() {
				g.belowOffSince = now
			}
			if now.Add(frameDur).Sub(g.belowOffSince) >= g.cfg.MinSilence {
				g.phase = phaseListening
				g.aboveOnSince = time.Time{}
				g.ring = nil
				return Event{SpeechEnded: true, FramesToSTT: []media.Frame{frame}}, nil
			}
		} else {
			g.belowOffSince = time.Time{}
		}
		return Event{FramesToSTT: []media.Frame{frame}}, nil
	}

	return Event{}, nil
}

// IsCapturing reports whether the gate currently forwards audio to STT.
func (g *Gate) IsCapturing() bool { return g.phase == phaseCapturing }

// Reset returns the gate to LISTENING with an empty ring, used on
// INTERRUPTED and session teardown.
func (g *Gate) Reset() {
	g.phase = phaseListening
	g.ring = nil
	g.aboveOnSince = time.Time{}
	g.belowOffSince = time.Time{}
}

// trimRing drops frames older than PreRoll relative to now, keeping the
// ring bounded to pre_roll_ms of audio (§4.4).
func (g *Gate) trimRing(now time.Time) {
	cutoff := now.Add(-g.cfg.PreRoll)
	i := 0
	for ; i < len(g.ring); i++ {
		if time.Unix(0, g.ring[i].TimestampNS).After(cutoff) {
			break
		}
	}
	if i > 0 {
		g.ring = g.ring[i:]
	}
}
