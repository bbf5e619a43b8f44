package silero

import (
	"fmt"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// TokenCounter counts tokens with a HuggingFace tokenizer.json, the same
// loading path pkg/turn's ONNXDetector.loadTokenizer uses
// (pretrained.FromFile), so chathistory and internal/retrieval estimate
// budgets against the real model vocabulary instead of a word-count guess.
type TokenCounter struct {
	tk *tokenizer.Tokenizer
}

// NewTokenCounter loads the tokenizer.json at path.
func NewTokenCounter(path string) (*TokenCounter, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("silero: load tokenizer: %w", err)
	}
	return &TokenCounter{tk: tk}, nil
}

// Count implements chathistory.TokenCounter and internal/retrieval's
// TokenCounter (identical one-method shape, satisfied structurally).
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	encoding, err := c.tk.EncodeSingle(text, false)
	if err != nil {
		return len(strings.Fields(text))
	}
	return len(encoding.GetIds())
}

// WhitespaceTokenCounter is the fallback counter used when no
// tokenizer.json asset is configured, matching the teacher's own pattern
// of degrading gracefully rather than failing hard when a model asset is
// missing (plugins/silero/plugin.go's Register falling back instead of
// crashing when ONNX load fails).
type WhitespaceTokenCounter struct{}

func (WhitespaceTokenCounter) Count(text string) int { return len(strings.Fields(text)) }
