package openai

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/voicecore/pkg/provider"
)

// LLM adapts OpenAI's chat completions API to provider.LLM, grounded on the
// teacher's GPTLLM.ChatStream (same client, same CreateChatCompletionStream
// call), trimmed to the streaming-only surface §6 requires.
type LLM struct {
	client *openai.Client
	model  string
}

func NewLLM(apiKey, model string) *LLM {
	return &LLM{client: openai.NewClient(apiKey), model: model}
}

func (l *LLM) Stream(ctx context.Context, params provider.ChatParams) (provider.TokenStream, error) {
	messages := make([]openai.ChatCompletionMessage, len(params.Messages))
	for i, m := range params.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Text}
	}

	req := openai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		Stream:      true,
	}

	stream, err := l.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, provider.WrapRecoverable(err, "openai chat stream open")
	}
	return &tokenStream{stream: stream}, nil
}

type tokenStream struct {
	stream *openai.ChatCompletionStream
	closed bool
}

// Next pulls response chunks until one carries non-empty delta content,
// since OpenAI's stream can emit role-only or empty-delta chunks (e.g. the
// first chunk, or tool-call deltas) that don't correspond to a token.
func (s *tokenStream) Next(ctx context.Context) (string, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		default:
		}

		resp, err := s.stream.Recv()
		if err != nil {
			if err == io.EOF {
				return "", false, nil
			}
			return "", false, provider.WrapRecoverable(err, "openai chat stream recv")
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if token := resp.Choices[0].Delta.Content; token != "" {
			return token, true, nil
		}
	}
}

func (s *tokenStream) Close() error {
	if !s.closed {
		s.closed = true
		s.stream.Close()
	}
	return nil
}
