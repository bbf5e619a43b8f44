package chatengine

import (
	"context"
	"testing"
	"time"

	"github.com/chriscow/voicecore/internal/config"
	"github.com/chriscow/voicecore/internal/retrieval"
	"github.com/chriscow/voicecore/pkg/provider"
	"github.com/chriscow/voicecore/pkg/provider/fake"
	"github.com/matryer/is"
)

type fakeHistory struct{ msgs []provider.Message }

func (h fakeHistory) Messages() []provider.Message { return h.msgs }

type fakeMetrics struct {
	retrievalDegraded int
	llmFallbackUsed   int
}

func (m *fakeMetrics) RecordRetrievalDegraded() { m.retrievalDegraded++ }
func (m *fakeMetrics) RecordLLMFallbackUsed()   { m.llmFallbackUsed++ }

func TestEngine_StreamsFragments(t *testing.T) {
	is := is.New(t)

	llm := fake.NewLLM("Hello there. How are you?")
	cfg := config.Default()
	cfg.PreTTSBufferingLevel = config.BufferingHigh

	e := New(llm, nil, cfg, nil, nil)
	hist := fakeHistory{msgs: []provider.Message{{Role: provider.RoleSystem, Text: "sys"}}}

	out, assembled := e.Run(context.Background(), "sys", hist, "hi")

	var fragments []Fragment
	for fr := range out {
		fragments = append(fragments, fr)
	}

	is.True(len(fragments) >= 2) // at least two sentences flushed
	is.True(fragments[0].IsFirst)
	is.True(fragments[len(fragments)-1].IsTurnFinal)
	is.Equal(assembled.String(), "Hello there. How are you?")
}

func TestEngine_CancellationStopsStream(t *testing.T) {
	is := is.New(t)

	llm := fake.NewLLM("one two three four five six seven eight")
	cfg := config.Default()
	cfg.PreTTSBufferingLevel = config.BufferingNone

	e := New(llm, nil, cfg, nil, nil)
	hist := fakeHistory{}

	ctx, cancel := context.WithCancel(context.Background())
	out, _ := e.Run(ctx, "sys", hist, "hi")

	// read one fragment then cancel; channel must close promptly
	first := <-out
	is.True(first.IsFirst)
	cancel()

	done := make(chan struct{})
	go func() {
		for range out {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("channel did not close after cancellation")
	}
}

func TestEngine_EmptyRetrievalStillCompletes(t *testing.T) {
	is := is.New(t)

	llm := fake.NewLLM("answer")
	vs := &fake.VectorStore{}
	emb := &fake.Embedding{Vector: []float32{0.1}}
	retriever := retrieval.New(emb, vs, nil, wordCounterStub{}, nil, retrieval.Config{}, nil)

	cfg := config.Default()
	e := New(llm, retriever, cfg, nil, nil)
	hist := fakeHistory{}

	out, assembled := e.Run(context.Background(), "sys", hist, "hi")
	for range out {
	}
	is.Equal(assembled.String(), "answer")
}

type wordCounterStub struct{}

func (wordCounterStub) Count(text string) int { return len(text) }

func TestEngine_RetrievalEmbedFailureRecordsDegraded(t *testing.T) {
	is := is.New(t)

	llm := fake.NewLLM("answer")
	vs := &fake.VectorStore{}
	emb := &fake.Embedding{Err: errTransient}
	retriever := retrieval.New(emb, vs, nil, wordCounterStub{}, nil, retrieval.Config{}, nil)

	metrics := &fakeMetrics{}
	cfg := config.Default()
	e := New(llm, retriever, cfg, metrics, nil)
	hist := fakeHistory{}

	out, assembled := e.Run(context.Background(), "sys", hist, "hi")
	for range out {
	}

	is.Equal(assembled.String(), "answer")
	is.Equal(metrics.retrievalDegraded, 1)
}

func TestEngine_LLMFirstTokenTimeoutEmitsFallback(t *testing.T) {
	is := is.New(t)

	llm := fake.NewLLM("hello there")
	llm.FirstTokenDelay = 50 * time.Millisecond

	cfg := config.Default()
	cfg.LLMFirstTokenTimeoutMS = 10
	cfg.PreTTSBufferingLevel = config.BufferingNone

	metrics := &fakeMetrics{}
	e := New(llm, nil, cfg, metrics, nil)
	hist := fakeHistory{}

	out, assembled := e.Run(context.Background(), "sys", hist, "hi")

	var fragments []Fragment
	for fr := range out {
		fragments = append(fragments, fr)
	}

	is.Equal(len(fragments), 1)
	is.Equal(fragments[0].Text, fallbackPhrase)
	is.True(fragments[0].IsTurnFinal)
	is.Equal(assembled.String(), fallbackPhrase)
	is.Equal(metrics.llmFallbackUsed, 1)
}

var errTransient = provider.WrapRecoverable(context.DeadlineExceeded, "test: embed failed")
