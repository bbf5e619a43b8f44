package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chriscow/voicecore/pkg/provider"
	"github.com/chriscow/voicecore/pkg/provider/fake"
	"github.com/matryer/is"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(strings.Fields(text))
}

func TestEngine_RanksByScoreDescending(t *testing.T) {
	is := is.New(t)

	vs := &fake.VectorStore{Candidates: []provider.VectorCandidate{
		{Text: "low", SourceID: "a", Score: 0.2},
		{Text: "high", SourceID: "b", Score: 0.9},
		{Text: "mid", SourceID: "c", Score: 0.5},
	}}
	emb := &fake.Embedding{Vector: []float32{0.1, 0.2}}

	e := New(emb, vs, nil, wordCounter{}, nil, Config{TopK: 3, DenseCandidates: 3}, nil)
	chunks, degraded := e.Retrieve(context.Background(), "query", nil)

	is.True(!degraded)
	is.Equal(len(chunks), 3)
	is.Equal(chunks[0].Text, "high")
	is.Equal(chunks[1].Text, "mid")
	is.Equal(chunks[2].Text, "low")
	is.Equal(chunks[0].Rank, 1)
	is.Equal(chunks[1].Rank, 2)
	is.Equal(chunks[2].Rank, 3)
}

func TestEngine_TopKTrim(t *testing.T) {
	is := is.New(t)

	vs := &fake.VectorStore{Candidates: []provider.VectorCandidate{
		{Text: "a", SourceID: "1", Score: 0.9},
		{Text: "b", SourceID: "2", Score: 0.8},
		{Text: "c", SourceID: "3", Score: 0.7},
	}}
	emb := &fake.Embedding{Vector: []float32{0.1}}

	e := New(emb, vs, nil, wordCounter{}, nil, Config{TopK: 2, DenseCandidates: 3}, nil)
	chunks, degraded := e.Retrieve(context.Background(), "query", nil)

	is.True(!degraded)
	is.Equal(len(chunks), 2)
}

func TestEngine_TokenBudgetDropsFromBottom(t *testing.T) {
	is := is.New(t)

	vs := &fake.VectorStore{Candidates: []provider.VectorCandidate{
		{Text: "one two three", SourceID: "1", Score: 0.9},
		{Text: "four five six", SourceID: "2", Score: 0.8},
		{Text: "seven eight nine", SourceID: "3", Score: 0.7},
	}}
	emb := &fake.Embedding{Vector: []float32{0.1}}

	// budget of 6 tokens only fits the top two 3-word chunks
	e := New(emb, vs, nil, wordCounter{}, nil, Config{TopK: 3, DenseCandidates: 3, TokenBudget: 6}, nil)
	chunks, degraded := e.Retrieve(context.Background(), "query", nil)

	is.True(!degraded)
	is.Equal(len(chunks), 2)
	is.Equal(chunks[0].Text, "one two three")
	is.Equal(chunks[1].Text, "four five six")
}

func TestEngine_EmbedFailureDegrades(t *testing.T) {
	is := is.New(t)

	emb := &fake.Embedding{Err: errors.New("embed down")}
	vs := &fake.VectorStore{}

	e := New(emb, vs, nil, wordCounter{}, nil, Config{}, nil)
	chunks, degraded := e.Retrieve(context.Background(), "query", nil)

	is.True(degraded)
	is.Equal(len(chunks), 0)
}

func TestEngine_DedupesBySourceAndText(t *testing.T) {
	is := is.New(t)

	dup := provider.VectorCandidate{Text: "same", SourceID: "x", Score: 0.5}
	vs := &fake.VectorStore{Candidates: []provider.VectorCandidate{dup}}
	lex := &fake.LexicalSearch{Candidates: []provider.VectorCandidate{dup}}
	emb := &fake.Embedding{Vector: []float32{0.1}}

	e := New(emb, vs, lex, wordCounter{}, nil, Config{TopK: 5, DenseCandidates: 5, LexicalCandidates: 5}, nil)
	chunks, degraded := e.Retrieve(context.Background(), "query", nil)

	is.True(!degraded)
	is.Equal(len(chunks), 1)
}

func TestQueryCache_LocalRoundTrip(t *testing.T) {
	is := is.New(t)

	c := NewQueryCache(nil, time.Minute, nil)
	key := NormalizeQuery("  Hello   World  ")
	is.Equal(key, "hello world")

	_, ok := c.Get(context.Background(), key)
	is.True(!ok)

	c.Set(context.Background(), key, []RetrievedChunk{{Text: "cached", SourceID: "s"}})
	got, ok := c.Get(context.Background(), key)
	is.True(ok)
	is.Equal(got[0].Text, "cached")
}
