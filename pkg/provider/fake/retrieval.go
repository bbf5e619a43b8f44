package fake

import (
	"context"

	"github.com/chriscow/voicecore/pkg/provider"
)

// Embedding returns a fixed vector regardless of input text.
type Embedding struct {
	Vector []float32
	Err    error
}

func (f *Embedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Vector, nil
}

// VectorStore returns a fixed candidate set regardless of the query
// embedding, truncated to topK.
type VectorStore struct {
	Candidates []provider.VectorCandidate
	Err        error
}

func (f *VectorStore) Query(ctx context.Context, embedding []float32, topK int, filter provider.VectorFilter) ([]provider.VectorCandidate, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if topK < len(f.Candidates) {
		return f.Candidates[:topK], nil
	}
	return f.Candidates, nil
}

// LexicalSearch mirrors VectorStore for the optional sparse candidate set.
type LexicalSearch struct {
	Candidates []provider.VectorCandidate
	Err        error
}

func (f *LexicalSearch) Search(ctx context.Context, query string, topK int, filter provider.VectorFilter) ([]provider.VectorCandidate, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if topK < len(f.Candidates) {
		return f.Candidates[:topK], nil
	}
	return f.Candidates, nil
}
