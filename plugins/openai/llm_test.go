package openai

import (
	"testing"

	"github.com/matryer/is"
)

func TestNewLLM_SetsModel(t *testing.T) {
	is := is.New(t)

	l := NewLLM("test-key", "gpt-4o")
	is.Equal(l.model, "gpt-4o")
	is.True(l.client != nil)
}

func TestNewLLM_DefaultsAreWiredByRegistry(t *testing.T) {
	is := is.New(t)

	// plugin.go's init() falls back to defaultChatModel when config omits
	// "model"; exercise the same helper directly here.
	is.Equal(stringFromConfig(map[string]any{}, "model", defaultChatModel), defaultChatModel)
	is.Equal(stringFromConfig(map[string]any{"model": "gpt-4-turbo"}, "model", defaultChatModel), "gpt-4-turbo")
}
