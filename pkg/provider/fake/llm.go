package fake

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/voicecore/pkg/provider"
)

// LLM yields Tokens (already split, so tests control fragment boundaries
// precisely) from a single scripted response, honoring ctx cancellation at
// every Next call the way a real streaming provider would.
type LLM struct {
	Tokens []string
	Err    error

	// FirstTokenDelay, when set, blocks the first Next call for the given
	// duration (or until ctx is cancelled/closed), simulating a slow or
	// hung provider for exercising LLMFirstTokenTimeout.
	FirstTokenDelay time.Duration
}

// NewLLM splits response on spaces, re-appending a trailing space to each
// token except the last so buffering-policy tests see realistic word
// boundaries.
func NewLLM(response string) *LLM {
	words := strings.Fields(response)
	tokens := make([]string, len(words))
	for i, w := range words {
		if i < len(words)-1 {
			tokens[i] = w + " "
		} else {
			tokens[i] = w
		}
	}
	return &LLM{Tokens: tokens}
}

func (f *LLM) Stream(ctx context.Context, params provider.ChatParams) (provider.TokenStream, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &llmStream{tokens: f.Tokens, firstTokenDelay: f.FirstTokenDelay, closed: make(chan struct{})}, nil
}

type llmStream struct {
	tokens          []string
	idx             int
	firstTokenDelay time.Duration
	closeOnce       sync.Once
	closed          chan struct{}
}

func (s *llmStream) Next(ctx context.Context) (string, bool, error) {
	if s.idx == 0 && s.firstTokenDelay > 0 {
		select {
		case <-time.After(s.firstTokenDelay):
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-s.closed:
			return "", false, ctx.Err()
		}
	}

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	default:
	}
	if s.idx >= len(s.tokens) {
		return "", false, nil
	}
	t := s.tokens[s.idx]
	s.idx++
	return t, true, nil
}

func (s *llmStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
