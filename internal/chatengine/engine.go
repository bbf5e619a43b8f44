// Package chatengine implements ChatEngine (§4.6): turn assembly (system +
// retrieval + bounded history + user turn), streaming LLM cancellation, and
// the pre-TTS buffering policy that decides when to flush text fragments
// downstream to TTSStream.
package chatengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chriscow/voicecore/internal/config"
	"github.com/chriscow/voicecore/internal/retrieval"
	"github.com/chriscow/voicecore/pkg/provider"
)

// fallbackPhrase is spoken in place of the assistant's reply when the LLM
// misses its first-token deadline (§4.2 Timeouts).
const fallbackPhrase = "one moment, please"

// errFirstTokenTimeout marks a nextWithDeadline timeout so Run can tell it
// apart from a real stream error or ctx cancellation.
var errFirstTokenTimeout = errors.New("chatengine: llm first token timed out")

// History is the subset of internal/chathistory.History the engine needs,
// kept as an interface so tests can supply a minimal fake without building
// a real tokenizer.
type History interface {
	Messages() []provider.Message
}

// Retriever is the subset of internal/retrieval.Engine used here.
type Retriever interface {
	Retrieve(ctx context.Context, query string, filter provider.VectorFilter) (chunks []retrieval.RetrievedChunk, degraded bool)
}

// MetricsRecorder is the subset of session.Metrics the engine reports
// degraded-mode counters through, kept as an interface (rather than an
// import of internal/session) to avoid a cycle with the package that
// constructs Engine.
type MetricsRecorder interface {
	RecordRetrievalDegraded()
	RecordLLMFallbackUsed()
}

// Fragment is one flushed piece of assistant text, in order, ready to push
// to TTSStream.
type Fragment struct {
	Text        string
	IsFirst     bool
	IsTurnFinal bool
}

// Engine drives one turn: retrieval, prompt assembly, streaming
// completion, and pre-TTS buffering. Stateless across turns; callers
// construct one per session and call Run per turn.
type Engine struct {
	llm       provider.LLM
	retriever Retriever       // nil when the agent has no RAG configured
	metrics   MetricsRecorder // nil in tests that don't care about counters
	cfg       config.Config
	log       *slog.Logger
}

// New builds an Engine. retriever and metrics may be nil.
func New(llm provider.LLM, retriever Retriever, cfg config.Config, metrics MetricsRecorder, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{llm: llm, retriever: retriever, cfg: cfg, metrics: metrics, log: log}
}

// Run assembles the prompt for userText against hist, issues a streaming
// completion, and emits Fragments on the returned channel as the
// configured buffering policy flushes them. The channel is closed when the
// turn completes or ctx is cancelled (barge-in). The returned builder
// accumulates the text of every fragment sent on the channel, so once the
// channel is closed it holds the full reply, or after a cancellation only
// the prefix that was handed downstream; tokens still held in the pre-TTS
// buffer are not included.
func (e *Engine) Run(ctx context.Context, systemPrompt string, hist History, userText string) (<-chan Fragment, *strings.Builder) {
	out := make(chan Fragment, 8)
	assembled := &strings.Builder{}

	go func() {
		defer close(out)

		var chunks []retrieval.RetrievedChunk
		if e.retriever != nil {
			retrCtx, cancel := retrieval.Deadline(ctx, e.cfg.RetrievalBudget())
			var degraded bool
			chunks, degraded = e.retriever.Retrieve(retrCtx, userText, nil)
			cancel()
			if degraded {
				e.log.Warn("retrieval degraded for turn")
				if e.metrics != nil {
					e.metrics.RecordRetrievalDegraded()
				}
			}
		}

		messages := assemble(systemPrompt, chunks, hist, userText)

		// llmCtx bounds the whole streamed completion (§4.2 Timeouts: "LLM
		// total: 20000 ms"). The stream's own Next implementations only check
		// ctx cancellation opportunistically between blocking reads (see
		// plugins/openai/llm.go), but the underlying HTTP client's request
		// context is set from this same ctx at Stream-call time, so
		// cancelling it here still unblocks an in-flight Recv.
		llmCtx, cancelLLM := context.WithTimeout(ctx, e.cfg.LLMTotalTimeout())
		defer cancelLLM()

		stream, err := e.llm.Stream(llmCtx, provider.ChatParams{Messages: messages})
		if err != nil {
			e.log.Error("llm stream failed to open", slog.Any("error", err))
			return
		}
		defer stream.Close()

		buf := newBuffer(e.cfg.PreTTSBufferingLevel)
		first := true
		gotFirstToken := false

		for {
			var token string
			var ok bool
			var err error
			if !gotFirstToken {
				token, ok, err = nextWithDeadline(llmCtx, stream, e.cfg.LLMFirstTokenTimeout())
			} else {
				token, ok, err = stream.Next(llmCtx)
			}
			if err != nil {
				if errors.Is(err, errFirstTokenTimeout) {
					e.log.Warn("llm first token timed out, using fallback phrase")
					if e.metrics != nil {
						e.metrics.RecordLLMFallbackUsed()
					}
					if emit(ctx, out, fallbackPhrase, &first, true) {
						assembled.WriteString(fallbackPhrase)
					}
					return
				}
				if llmCtx.Err() != nil {
					return // barge-in, total timeout, or session teardown; not an error
				}
				e.log.Warn("llm stream error", slog.Any("error", err))
				break
			}
			if !ok {
				break
			}
			gotFirstToken = true

			if fragment, flush := buf.Push(token); flush {
				if !emit(ctx, out, fragment, &first, false) {
					return
				}
				assembled.WriteString(fragment)
			}
		}

		if fragment, ok := buf.Flush(); ok {
			if emit(ctx, out, fragment, &first, true) {
				assembled.WriteString(fragment)
			}
		} else {
			// still signal turn completion even with no residual text
			emit(ctx, out, "", &first, true)
		}
	}()

	return out, assembled
}

// nextWithDeadline races stream.Next against timeout, used only for the
// first token of a turn (§4.2 Timeouts: "LLM first-token: 2500 ms"). A
// plain context.WithTimeout around ctx isn't enough on its own: TokenStream
// implementations check ctx.Done() opportunistically before each blocking
// read, not concurrently with it, so a deadline tighter than the read
// itself wouldn't fire until the read happened to return anyway. Closing
// the stream on timeout is what actually unblocks a hung read.
func nextWithDeadline(ctx context.Context, stream provider.TokenStream, timeout time.Duration) (string, bool, error) {
	type result struct {
		token string
		ok    bool
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		token, ok, err := stream.Next(ctx)
		resCh <- result{token, ok, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-resCh:
		return r.token, r.ok, r.err
	case <-timer.C:
		stream.Close()
		return "", false, errFirstTokenTimeout
	}
}

func emit(ctx context.Context, out chan<- Fragment, text string, first *bool, isTurnFinal bool) bool {
	if text == "" && !isTurnFinal {
		return true
	}
	fr := Fragment{Text: text, IsFirst: *first, IsTurnFinal: isTurnFinal}
	*first = false
	select {
	case out <- fr:
		return true
	case <-ctx.Done():
		return false
	}
}

// assemble builds the full message list: system + retrieval block + bounded
// history + current user turn (§4.6 step 2).
func assemble(systemPrompt string, chunks []retrieval.RetrievedChunk, hist History, userText string) []provider.Message {
	messages := hist.Messages()
	if len(messages) == 0 || messages[0].Role != provider.RoleSystem {
		messages = append([]provider.Message{{Role: provider.RoleSystem, Text: systemPrompt}}, messages...)
	}

	if len(chunks) > 0 {
		var sb strings.Builder
		sb.WriteString("Relevant context:\n")
		for _, c := range chunks {
			fmt.Fprintf(&sb, "- %s\n", c.Text)
		}
		messages = append(messages, provider.Message{Role: provider.RoleSystem, Text: sb.String()})
	}

	messages = append(messages, provider.Message{Role: provider.RoleUser, Text: userText})
	return messages
}
