package config

import (
	"os"
	"testing"

	"github.com/matryer/is"
)

func TestDefault(t *testing.T) {
	is := is.New(t)

	cfg := Default()

	is.Equal(cfg.VADThresholdOn, 0.5)
	is.Equal(cfg.VADThresholdOff, 0.35)
	is.Equal(cfg.PreRollMS, 500)
	is.Equal(cfg.PreTTSBufferingLevel, BufferingMedium)
	is.Equal(cfg.RAGTopK, 5)
	is.Equal(cfg.HistoryMaxTokens, 4096)
	is.Equal(cfg.SessionIdleTimeoutS, 30)
}

func TestFromEnv_Overrides(t *testing.T) {
	is := is.New(t)

	os.Setenv("VAD_THRESHOLD_ON", "0.6")
	os.Setenv("RAG_TOP_K", "8")
	os.Setenv("PRE_TTS_BUFFERING_LEVEL", "HIGH")
	defer func() {
		os.Unsetenv("VAD_THRESHOLD_ON")
		os.Unsetenv("RAG_TOP_K")
		os.Unsetenv("PRE_TTS_BUFFERING_LEVEL")
	}()

	cfg, err := FromEnv()
	is.NoErr(err)

	is.Equal(cfg.VADThresholdOn, 0.6)
	is.Equal(cfg.RAGTopK, 8)
	is.Equal(cfg.PreTTSBufferingLevel, BufferingHigh)
	// untouched fields keep defaults
	is.Equal(cfg.VADThresholdOff, 0.35)
}

func TestFromEnv_InvalidInt(t *testing.T) {
	is := is.New(t)

	os.Setenv("RAG_TOP_K", "not-a-number")
	defer os.Unsetenv("RAG_TOP_K")

	_, err := FromEnv()
	is.True(err != nil)
}

func TestFromEnv_InvalidBufferingLevel(t *testing.T) {
	is := is.New(t)

	os.Setenv("PRE_TTS_BUFFERING_LEVEL", "EXTREME")
	defer os.Unsetenv("PRE_TTS_BUFFERING_LEVEL")

	_, err := FromEnv()
	is.True(err != nil)
}

func TestDurationHelpers(t *testing.T) {
	is := is.New(t)

	cfg := Default()
	is.Equal(cfg.STTFinalTimeout().Milliseconds(), int64(2000))
	is.Equal(cfg.LLMFirstTokenTimeout().Milliseconds(), int64(2500))
	is.Equal(cfg.SessionIdleTimeout().Seconds(), float64(30))
}
