// Package silero adapts local, dependency-light models to the
// pkg/provider contracts: an energy-based VAD approximation and a
// HuggingFace-tokenizer-backed token counter. Grounded on the teacher's
// plugins/silero package and pkg/turn/onnx_detector.go.
package silero

import (
	"context"
	"fmt"

	"github.com/chriscow/voicecore/pkg/media"
)

// energyThreshold mirrors the teacher's runInference cutoff (runInference's
// "threshold := 0.001").
const energyThreshold = 0.001

// VAD is an energy-based voice-activity approximation. The teacher's
// SileroVAD already carried this as its real implementation behind an ONNX
// facade: NewSileroVAD's session field is always nil ("Will be nil until
// full ONNX implementation") and runInference never touches it, computing
// mean sample energy instead. That stub is preserved here rather than
// attempting a real ONNX Runtime wiring no model asset in this environment
// could exercise; see DESIGN.md.
type VAD struct {
	sampleRate int
}

// NewVAD builds a VAD for sampleRate, one of the two rates Silero's model
// windows are defined for (teacher's NewSileroVAD switch).
func NewVAD(sampleRate int) (*VAD, error) {
	switch sampleRate {
	case 8000, 16000:
	default:
		return nil, fmt.Errorf("silero: unsupported sample rate %d (only 8000 and 16000 Hz supported)", sampleRate)
	}
	return &VAD{sampleRate: sampleRate}, nil
}

func (v *VAD) SampleRate() int { return v.sampleRate }

// InferProbability returns the energy-derived speech probability for one
// frame. Per-session speech/silence hysteresis is VADGate's job, not the
// provider's (pkg/provider.VAD's doc comment) — this only classifies the
// single frame handed to it, unlike the teacher's SileroVAD.Detect which
// also tracked speaking-state duration internally.
func (v *VAD) InferProbability(ctx context.Context, frame media.Frame) (float64, error) {
	if frame.SampleRate != v.sampleRate {
		return 0, fmt.Errorf("silero: frame sample rate %d doesn't match VAD sample rate %d", frame.SampleRate, v.sampleRate)
	}

	samples := len(frame.Payload) / 2
	if samples == 0 {
		return 0, nil
	}

	var energy float64
	for i := 0; i < samples; i++ {
		raw := int16(frame.Payload[i*2]) | int16(frame.Payload[i*2+1])<<8
		sample := float32(raw) / 32767.0
		energy += float64(sample) * float64(sample)
	}
	energy /= float64(samples)

	if energy > energyThreshold {
		return 0.8, nil
	}
	return 0.2, nil
}
