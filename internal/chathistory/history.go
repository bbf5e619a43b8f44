// Package chathistory implements ConversationHistory (§3): an ordered,
// bounded sequence of chat turns. Mutated only by the owning EventLoop at
// THINKING→SPEAKING completion or on INTERRUPTED; reads and writes are not
// safe for concurrent use from outside that single goroutine, matching the
// teacher's session-owns-its-state-exclusively pattern in agents/session.go.
package chathistory

import (
	"github.com/chriscow/voicecore/pkg/provider"
)

// History is the bounded turn sequence backing one session's chat prompt
// assembly. The system message is always turn zero and is never evicted.
type History struct {
	system   provider.Message
	turns    []provider.Message
	counter  TokenCounter
	maxTurns int
	maxToks  int
}

// TokenCounter estimates the token cost of a message's text, used to
// enforce HISTORY_MAX_TOKENS. Satisfied by plugins/silero's tokenizer-backed
// counter in production and by a whitespace-split estimate in tests.
type TokenCounter interface {
	Count(text string) int
}

// New creates a History seeded with the agent's system prompt.
func New(systemPrompt string, counter TokenCounter, maxTurns, maxTokens int) *History {
	return &History{
		system:   provider.Message{Role: provider.RoleSystem, Text: systemPrompt},
		counter:  counter,
		maxTurns: maxTurns,
		maxToks:  maxTokens,
	}
}

// Append adds one user/assistant turn and evicts from the front (oldest
// first) until both bounds are satisfied. The system message is exempt from
// eviction (§3).
func (h *History) Append(role provider.Role, text string) {
	h.turns = append(h.turns, provider.Message{Role: role, Text: text})
	h.evict()
}

// Messages returns the system message followed by all retained turns, ready
// to hand to an LLM ChatParams.Messages.
func (h *History) Messages() []provider.Message {
	out := make([]provider.Message, 0, len(h.turns)+1)
	out = append(out, h.system)
	out = append(out, h.turns...)
	return out
}

// Len returns the number of non-system turns currently retained.
func (h *History) Len() int { return len(h.turns) }

func (h *History) evict() {
	for len(h.turns) > h.maxTurns || h.tokenTotal() > h.maxToks {
		if len(h.turns) == 0 {
			return
		}
		h.turns = h.turns[1:]
	}
}

func (h *History) tokenTotal() int {
	total := h.counter.Count(h.system.Text)
	for _, t := range h.turns {
		total += h.counter.Count(t.Text)
	}
	return total
}
