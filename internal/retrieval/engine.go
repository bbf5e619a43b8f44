// Package retrieval implements RetrievalEngine (§4.6 sub-component): embed
// the query, fetch dense (and optional lexical) candidates, rank, and trim
// to a token-bounded top_k, with an optional query cache for
// ultra_low_latency agents.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/chriscow/voicecore/pkg/provider"
)

// RetrievedChunk is one ranked, surviving retrieval result handed to
// ChatEngine's prompt assembly.
type RetrievedChunk struct {
	Text     string  `json:"text"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

// TokenCounter estimates token cost, shared contract with
// internal/chathistory so both packages can be backed by the same
// tokenizer instance.
type TokenCounter interface {
	Count(text string) int
}

// Config parameterizes one agent's retrieval behavior (§4.6, §6 defaults).
type Config struct {
	TopK             int
	DenseCandidates  int
	LexicalCandidates int
	TokenBudget      int // default 2048, per §4.6
	UltraLowLatency  bool
}

// Engine runs the embed -> query -> rank -> trim pipeline for one agent's
// RAG configuration. Stateless apart from the optional cache, so a single
// Engine can be shared across sessions using the same RAGConfig.
type Engine struct {
	embedding provider.Embedding
	vectors   provider.VectorStore
	lexical   provider.LexicalSearch // may be nil
	counter   TokenCounter
	cache     *QueryCache // nil unless UltraLowLatency
	cfg       Config
	log       *slog.Logger
}

// New builds an Engine. lexical and cache may be nil.
func New(embedding provider.Embedding, vectors provider.VectorStore, lexical provider.LexicalSearch, counter TokenCounter, cache *QueryCache, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if cfg.TokenBudget == 0 {
		cfg.TokenBudget = 2048
	}
	return &Engine{
		embedding: embedding,
		vectors:   vectors,
		lexical:   lexical,
		counter:   counter,
		cache:     cache,
		cfg:       cfg,
		log:       log,
	}
}

// Retrieve runs the full pipeline for one user query, honoring the caller's
// deadline (ChatEngine enforces RETRIEVAL_BUDGET_MS via ctx). Returns
// degraded=true with zero chunks whenever the budget expires or the
// embedding or vector-store call fails, per §4.6's "on timeout, proceed
// with zero chunks (degraded; log)". A failed lexical search is only
// logged: the dense candidates are ranked alone and degraded stays false.
func (e *Engine) Retrieve(ctx context.Context, query string, filter provider.VectorFilter) (chunks []RetrievedChunk, degraded bool) {
	if e.cfg.UltraLowLatency && e.cache != nil {
		key := NormalizeQuery(query)
		if cached, ok := e.cache.Get(ctx, key); ok {
			return cached, false
		}
		defer func() {
			if !degraded {
				e.cache.Set(ctx, key, chunks)
			}
		}()
	}

	embedding, err := e.embedding.Embed(ctx, query)
	if err != nil {
		e.log.Warn("retrieval embed failed", slog.Any("error", err))
		return nil, true
	}
	if ctx.Err() != nil {
		return nil, true
	}

	dense, err := e.vectors.Query(ctx, embedding, e.denseCandidates(), filter)
	if err != nil {
		e.log.Warn("retrieval vector query failed", slog.Any("error", err))
		return nil, true
	}

	var candidates []provider.VectorCandidate
	candidates = append(candidates, dense...)

	if e.lexical != nil {
		lex, err := e.lexical.Search(ctx, query, e.lexicalCandidates(), filter)
		if err != nil {
			e.log.Warn("retrieval lexical search failed", slog.Any("error", err))
		} else {
			candidates = append(candidates, lex...)
		}
	}

	if ctx.Err() != nil {
		return nil, true
	}

	ranked := rank(candidates)
	return trimToBudget(ranked, e.topK(), e.cfg.TokenBudget, e.counter), false
}

func (e *Engine) denseCandidates() int {
	if e.cfg.DenseCandidates > 0 {
		return e.cfg.DenseCandidates
	}
	return 24
}

func (e *Engine) lexicalCandidates() int {
	if e.cfg.LexicalCandidates > 0 {
		return e.cfg.LexicalCandidates
	}
	return 24
}

func (e *Engine) topK() int {
	if e.cfg.TopK > 0 {
		return e.cfg.TopK
	}
	return 5
}

// rank sorts candidates by score descending, ties broken by source id for
// determinism, and dedupes by (source id, text).
func rank(candidates []provider.VectorCandidate) []provider.VectorCandidate {
	seen := make(map[string]bool, len(candidates))
	deduped := candidates[:0:0]
	for _, c := range candidates {
		key := c.SourceID + "\x00" + c.Text
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, c)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].Score != deduped[j].Score {
			return deduped[i].Score > deduped[j].Score
		}
		return deduped[i].SourceID < deduped[j].SourceID
	})
	return deduped
}

// trimToBudget keeps the top topK candidates, then drops from the bottom
// until the remaining text fits tokenBudget (§4.6: "dropping from the
// bottom to fit a token budget of 2048").
func trimToBudget(ranked []provider.VectorCandidate, topK, tokenBudget int, counter TokenCounter) []RetrievedChunk {
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	chunks := make([]RetrievedChunk, len(ranked))
	for i, c := range ranked {
		chunks[i] = RetrievedChunk{Text: c.Text, SourceID: c.SourceID, Score: c.Score, Rank: i + 1}
	}

	total := 0
	tokens := make([]int, len(chunks))
	for i, c := range chunks {
		tokens[i] = counter.Count(c.Text)
		total += tokens[i]
	}

	for total > tokenBudget && len(chunks) > 0 {
		last := len(chunks) - 1
		total -= tokens[last]
		chunks = chunks[:last]
		tokens = tokens[:last]
	}
	return chunks
}

// Deadline is a convenience for callers enforcing RETRIEVAL_BUDGET_MS.
func Deadline(parent context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, budget)
}
