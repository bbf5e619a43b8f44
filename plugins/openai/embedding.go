package openai

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/voicecore/pkg/provider"
)

var errEmptyEmbeddingResponse = errors.New("no embedding data returned")

// Embedding adapts OpenAI's embeddings endpoint to provider.Embedding. The
// teacher has no equivalent — §6/§7's retrieval module needs one, so this
// follows the same client/model-string shape as LLM and STT above.
type Embedding struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewEmbedding(apiKey, model string) *Embedding {
	return &Embedding{client: openai.NewClient(apiKey), model: openai.EmbeddingModel(model)}
}

func (e *Embedding) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, provider.WrapRecoverable(err, "openai embeddings")
	}
	if len(resp.Data) == 0 {
		return nil, provider.WrapRecoverable(errEmptyEmbeddingResponse, "openai embeddings")
	}
	return resp.Data[0].Embedding, nil
}
