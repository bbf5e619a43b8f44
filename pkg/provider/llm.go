package provider

import "context"

// Role mirrors §3's ConversationHistory role enum.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of chat history or prompt content.
type Message struct {
	Role Role
	Text string
}

// ChatParams configures an LLM streaming request (§6:
// `stream(messages, temperature, max_tokens) -> iterator<token>`).
type ChatParams struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// LLM is the large-language-model provider contract (§6).
type LLM interface {
	// Stream begins a streaming chat completion. The returned TokenStream
	// honours ctx cancellation at every yield (§5 suspension points).
	Stream(ctx context.Context, params ChatParams) (TokenStream, error)
}

// TokenStream is a lazy ordered finite sequence of text tokens with
// cancellation (§9 design note: "callbacks and streaming iterators").
type TokenStream interface {
	// Next blocks for the next token. Returns (“”, false, nil) when the
	// stream is exhausted, and ctx.Err() if ctx was cancelled first.
	Next(ctx context.Context) (token string, ok bool, err error)

	// Close releases the underlying provider connection. Safe to call more
	// than once.
	Close() error
}
