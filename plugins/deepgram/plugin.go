package deepgram

import (
	"os"

	"github.com/chriscow/voicecore/pkg/registry"
)

func apiKeyFromConfig(cfg map[string]any) string {
	if v, ok := cfg["api_key"].(string); ok && v != "" {
		return v
	}
	return os.Getenv("DEEPGRAM_API_KEY")
}

// init registers Deepgram as an alternate "deepgram" STT provider id
// alongside plugins/openai's "openai", the same single-initialiser pattern
// every plugins/* package uses (§9).
func init() {
	registry.Global().Register(registry.KindSTT, "deepgram", func(cfg map[string]any) (any, error) {
		return NewSTT(apiKeyFromConfig(cfg)), nil
	})
}
