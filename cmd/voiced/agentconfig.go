package main

import (
	"os"

	"github.com/chriscow/voicecore/pkg/provider"
)

// staticAgentConfig builds the one AgentConfig every room resolves to,
// sourced from the environment. Per §6, the real agent-configuration
// store is "outside this module's scope" — voiced's own minimal
// implementation is this single env-driven default, swappable for an HTTP-
// or database-backed transport.AgentConfigResolver without touching
// internal/transport.
func staticAgentConfig() provider.AgentConfig {
	return provider.AgentConfig{
		SystemPrompt:  envOr("VOICED_SYSTEM_PROMPT", "You are a helpful voice assistant. Keep responses brief."),
		LLMProviderID: envOr("VOICED_LLM_PROVIDER", "openai"),
		STTProviderID: envOr("VOICED_STT_PROVIDER", "openai"),
		TTSProviderID: envOr("VOICED_TTS_PROVIDER", "openai"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
