package silero

import (
	"github.com/chriscow/voicecore/pkg/media"
	"github.com/chriscow/voicecore/pkg/registry"
)

func sampleRateFromConfig(cfg map[string]any) int {
	if v, ok := cfg["sample_rate"].(int); ok && v != 0 {
		return v
	}
	return media.CanonicalSampleRate
}

// init registers the energy-based VAD under provider id "silero", mirroring
// the teacher's own init-time RegisterPlugin() call in this same file.
// Unlike the teacher's registration, construction errors here are surfaced
// to the caller through registry.Build's returned error rather than
// swallowed behind a log line and a nil VAD (§4.1 requires ConfigInvalid on
// a broken provider, not a silently nil one).
func init() {
	registry.Global().Register(registry.KindVAD, "silero", func(cfg map[string]any) (any, error) {
		return NewVAD(sampleRateFromConfig(cfg))
	})
}
