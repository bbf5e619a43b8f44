// Package fake provides deterministic test doubles for the pkg/provider
// contracts, mirroring the teacher's pkg/ai/{vad,stt,llm,tts}/fake layout.
package fake

import (
	"context"

	"github.com/chriscow/voicecore/pkg/media"
)

// VAD returns a fixed sequence of probabilities, one per InferProbability
// call, then repeats the last value. Deterministic by construction — no
// seeded RNG needed since callers script the exact sequence they want.
type VAD struct {
	Probabilities []float64
	SampleRateHz  int
	calls         int
}

// NewVAD builds a VAD fake that yields probs in order.
func NewVAD(sampleRate int, probs ...float64) *VAD {
	return &VAD{Probabilities: probs, SampleRateHz: sampleRate}
}

func (f *VAD) InferProbability(ctx context.Context, frame media.Frame) (float64, error) {
	if len(f.Probabilities) == 0 {
		return 0, nil
	}
	idx := f.calls
	if idx >= len(f.Probabilities) {
		idx = len(f.Probabilities) - 1
	}
	f.calls++
	return f.Probabilities[idx], nil
}

func (f *VAD) SampleRate() int { return f.SampleRateHz }
