package openai

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/matryer/is"
)

func TestNewEmbedding_SetsModel(t *testing.T) {
	is := is.New(t)

	e := NewEmbedding("test-key", "text-embedding-3-large")
	is.Equal(e.model, openai.EmbeddingModel("text-embedding-3-large"))
	is.True(e.client != nil)
}
