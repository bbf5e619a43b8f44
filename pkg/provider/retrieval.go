package provider

import "context"

// Embedding is the embedding-model provider contract (§6: `embed(text) ->
// vector`).
type Embedding interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorFilter narrows a vector store query, e.g. to a single knowledge base
// or document set. Left opaque to the core; providers interpret it.
type VectorFilter map[string]string

// VectorCandidate is one dense- or lexical-search hit returned by a vector
// store query, before RetrievalEngine re-ranks and trims it into a
// RetrievedChunk.
type VectorCandidate struct {
	Text     string
	SourceID string
	Score    float64
}

// VectorStore is the vector-store provider contract (§6: `query(embedding,
// top_k, filters) -> chunks`).
type VectorStore interface {
	Query(ctx context.Context, embedding []float32, topK int, filter VectorFilter) ([]VectorCandidate, error)
}

// LexicalSearch is an optional sparse/keyword candidate source combined with
// dense vector results (§4.6: "optionally combine with a lexical candidate
// set of the same size").
type LexicalSearch interface {
	Search(ctx context.Context, query string, topK int, filter VectorFilter) ([]VectorCandidate, error)
}
