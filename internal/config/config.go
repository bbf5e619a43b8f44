// Package config loads operator configuration (§6) once at process start
// into an immutable Config, the same "resolve once, pass explicit handles"
// pattern the teacher's pkg/job.Config follows.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// BufferingLevel is the pre-TTS buffering policy (§4.6/§6).
type BufferingLevel string

const (
	BufferingNone   BufferingLevel = "NONE"
	BufferingLow    BufferingLevel = "LOW"
	BufferingMedium BufferingLevel = "MEDIUM"
	BufferingHigh   BufferingLevel = "HIGH"
)

// Config is the fully-resolved operator configuration. Immutable once
// loaded; every field has a default matching §6 exactly.
type Config struct {
	// VADThresholdOn is the speech-probability level that flips VADGate from
	// silence to speech.
	VADThresholdOn float64
	// VADThresholdOff is the speech-probability level that flips VADGate
	// from speech back to silence. Lower than VADThresholdOn (hysteresis).
	VADThresholdOff float64
	// VADMinSpeechMS is the minimum sustained-speech duration before
	// VADGate commits to CAPTURING.
	VADMinSpeechMS int
	// VADMinSilenceMS is the minimum sustained-silence duration before
	// VADGate ends a capture.
	VADMinSilenceMS int
	// PreRollMS is how much audio before speech_start is replayed into STT
	// from VADGate's pre-speech ring buffer.
	PreRollMS int

	// STTFinalTimeoutMS bounds how long STTStream waits for a final
	// transcript after close_turn before degrading.
	STTFinalTimeoutMS int

	// LLMFirstTokenTimeoutMS bounds time-to-first-token once a prompt is
	// submitted.
	LLMFirstTokenTimeoutMS int
	// LLMTotalTimeoutMS bounds the entire streamed completion.
	LLMTotalTimeoutMS int

	// TTSFirstChunkTimeoutMS bounds time-to-first-audio-chunk once text is
	// pushed to the TTS stream.
	TTSFirstChunkTimeoutMS int

	// PreTTSBufferingLevel controls how much assistant text ChatEngine
	// accumulates before flushing a fragment to TTSStream.
	PreTTSBufferingLevel BufferingLevel

	// RetrievalBudgetMS bounds RetrievalEngine's embed+query+rank pipeline
	// before it degrades to an empty context.
	RetrievalBudgetMS int
	// RAGTopK is the number of chunks RetrievalEngine returns to ChatEngine.
	RAGTopK int
	// RAGDenseCandidates is the candidate-set size requested from the
	// vector store before re-ranking.
	RAGDenseCandidates int
	// RAGLexicalCandidates is the candidate-set size requested from the
	// optional lexical search before re-ranking.
	RAGLexicalCandidates int

	// HistoryMaxTurns bounds ConversationHistory by turn count.
	HistoryMaxTurns int
	// HistoryMaxTokens bounds ConversationHistory by token count; whichever
	// bound is hit first evicts.
	HistoryMaxTokens int

	// SessionIdleTimeoutS is how long SessionManager waits with no inbound
	// audio before destroying a session.
	SessionIdleTimeoutS int
}

// Default returns the §6 defaults unchanged.
func Default() Config {
	return Config{
		VADThresholdOn:         0.5,
		VADThresholdOff:        0.35,
		VADMinSpeechMS:         100,
		VADMinSilenceMS:        500,
		PreRollMS:              500,
		STTFinalTimeoutMS:      2000,
		LLMFirstTokenTimeoutMS: 2500,
		LLMTotalTimeoutMS:      20000,
		TTSFirstChunkTimeoutMS: 1500,
		PreTTSBufferingLevel:   BufferingMedium,
		RetrievalBudgetMS:      400,
		RAGTopK:                5,
		RAGDenseCandidates:     24,
		RAGLexicalCandidates:   24,
		HistoryMaxTurns:        16,
		HistoryMaxTokens:       4096,
		SessionIdleTimeoutS:    30,
	}
}

// FromEnv loads Config starting from Default() and overriding each field
// present in the environment, matching the §6 key names exactly.
func FromEnv() (Config, error) {
	cfg := Default()

	var err error
	if cfg.VADThresholdOn, err = envFloat("VAD_THRESHOLD_ON", cfg.VADThresholdOn); err != nil {
		return Config{}, err
	}
	if cfg.VADThresholdOff, err = envFloat("VAD_THRESHOLD_OFF", cfg.VADThresholdOff); err != nil {
		return Config{}, err
	}
	if cfg.VADMinSpeechMS, err = envInt("VAD_MIN_SPEECH_MS", cfg.VADMinSpeechMS); err != nil {
		return Config{}, err
	}
	if cfg.VADMinSilenceMS, err = envInt("VAD_MIN_SILENCE_MS", cfg.VADMinSilenceMS); err != nil {
		return Config{}, err
	}
	if cfg.PreRollMS, err = envInt("PRE_ROLL_MS", cfg.PreRollMS); err != nil {
		return Config{}, err
	}
	if cfg.STTFinalTimeoutMS, err = envInt("STT_FINAL_TIMEOUT_MS", cfg.STTFinalTimeoutMS); err != nil {
		return Config{}, err
	}
	if cfg.LLMFirstTokenTimeoutMS, err = envInt("LLM_FIRST_TOKEN_TIMEOUT_MS", cfg.LLMFirstTokenTimeoutMS); err != nil {
		return Config{}, err
	}
	if cfg.LLMTotalTimeoutMS, err = envInt("LLM_TOTAL_TIMEOUT_MS", cfg.LLMTotalTimeoutMS); err != nil {
		return Config{}, err
	}
	if cfg.TTSFirstChunkTimeoutMS, err = envInt("TTS_FIRST_CHUNK_TIMEOUT_MS", cfg.TTSFirstChunkTimeoutMS); err != nil {
		return Config{}, err
	}
	if v, ok := os.LookupEnv("PRE_TTS_BUFFERING_LEVEL"); ok {
		level := BufferingLevel(v)
		switch level {
		case BufferingNone, BufferingLow, BufferingMedium, BufferingHigh:
			cfg.PreTTSBufferingLevel = level
		default:
			return Config{}, fmt.Errorf("config: invalid PRE_TTS_BUFFERING_LEVEL %q", v)
		}
	}
	if cfg.RetrievalBudgetMS, err = envInt("RETRIEVAL_BUDGET_MS", cfg.RetrievalBudgetMS); err != nil {
		return Config{}, err
	}
	if cfg.RAGTopK, err = envInt("RAG_TOP_K", cfg.RAGTopK); err != nil {
		return Config{}, err
	}
	if cfg.RAGDenseCandidates, err = envInt("RAG_DENSE_CANDIDATES", cfg.RAGDenseCandidates); err != nil {
		return Config{}, err
	}
	if cfg.RAGLexicalCandidates, err = envInt("RAG_LEXICAL_CANDIDATES", cfg.RAGLexicalCandidates); err != nil {
		return Config{}, err
	}
	if cfg.HistoryMaxTurns, err = envInt("HISTORY_MAX_TURNS", cfg.HistoryMaxTurns); err != nil {
		return Config{}, err
	}
	if cfg.HistoryMaxTokens, err = envInt("HISTORY_MAX_TOKENS", cfg.HistoryMaxTokens); err != nil {
		return Config{}, err
	}
	if cfg.SessionIdleTimeoutS, err = envInt("SESSION_IDLE_TIMEOUT_S", cfg.SessionIdleTimeoutS); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s=%q: %w", key, v, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s=%q: %w", key, v, err)
	}
	return f, nil
}

// Duration helpers, used by internal/session, internal/chatengine, and
// internal/sessionmanager so timeout fields read naturally as
// time.Duration at call sites.

func (c Config) STTFinalTimeout() time.Duration {
	return time.Duration(c.STTFinalTimeoutMS) * time.Millisecond
}

func (c Config) LLMFirstTokenTimeout() time.Duration {
	return time.Duration(c.LLMFirstTokenTimeoutMS) * time.Millisecond
}

func (c Config) LLMTotalTimeout() time.Duration {
	return time.Duration(c.LLMTotalTimeoutMS) * time.Millisecond
}

func (c Config) TTSFirstChunkTimeout() time.Duration {
	return time.Duration(c.TTSFirstChunkTimeoutMS) * time.Millisecond
}

func (c Config) RetrievalBudget() time.Duration {
	return time.Duration(c.RetrievalBudgetMS) * time.Millisecond
}

func (c Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleTimeoutS) * time.Second
}

func (c Config) PreRoll() time.Duration {
	return time.Duration(c.PreRollMS) * time.Millisecond
}

func (c Config) VADMinSpeech() time.Duration {
	return time.Duration(c.VADMinSpeechMS) * time.Millisecond
}

func (c Config) VADMinSilence() time.Duration {
	return time.Duration(c.VADMinSilenceMS) * time.Millisecond
}
