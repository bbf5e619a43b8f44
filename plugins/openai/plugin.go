// Package openai adapts OpenAI's Whisper, Chat Completions, TTS, and
// Embeddings APIs to the pkg/provider contracts, via
// github.com/sashabaranov/go-openai. Grounded on the teacher's
// plugins/openai package (same client library, same service split across
// llm.go/stt.go/tts.go), rewritten against the streaming-first provider
// interfaces instead of the teacher's services/{llm,stt,tts} package.
package openai

import (
	"os"

	"github.com/chriscow/voicecore/pkg/registry"
)

const (
	defaultChatModel  = "gpt-4o-mini"
	defaultTTSVoice   = "alloy"
	defaultEmbedModel = "text-embedding-3-small"
)

func apiKeyFromConfig(cfg map[string]any) string {
	if v, ok := cfg["api_key"].(string); ok && v != "" {
		return v
	}
	return os.Getenv("OPENAI_API_KEY")
}

func stringFromConfig(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// init registers the OpenAI adapters under the "openai" provider id for
// each capability, per §9's "initialise once at process start behind a
// single initialiser" design note.
func init() {
	registry.Global().Register(registry.KindLLM, "openai", func(cfg map[string]any) (any, error) {
		return NewLLM(apiKeyFromConfig(cfg), stringFromConfig(cfg, "model", defaultChatModel)), nil
	})

	registry.Global().Register(registry.KindSTT, "openai", func(cfg map[string]any) (any, error) {
		return NewSTT(apiKeyFromConfig(cfg)), nil
	})

	registry.Global().Register(registry.KindTTS, "openai", func(cfg map[string]any) (any, error) {
		return NewTTS(apiKeyFromConfig(cfg)), nil
	})

	registry.Global().Register(registry.KindEmbedding, "openai", func(cfg map[string]any) (any, error) {
		return NewEmbedding(apiKeyFromConfig(cfg), stringFromConfig(cfg, "model", defaultEmbedModel)), nil
	})
}
