// Package pgvector implements pkg/provider.VectorStore and
// pkg/provider.LexicalSearch against a PostgreSQL table with the pgvector
// extension. Grounded on MrWong99-glyphoxa's pkg/memory/postgres package
// (github.com/jackc/pgx/v5 + github.com/pgvector/pgvector-go), which is not
// the teacher repo but is the pack's only example of a vector-backed
// retrieval store and the closest analogue to §6/§7's VectorStore/
// LexicalSearch contracts.
package pgvector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	vectorlib "github.com/pgvector/pgvector-go"

	"github.com/chriscow/voicecore/pkg/provider"
)

// Store is a pgvector-backed VectorStore/LexicalSearch, grounded on
// SemanticIndexImpl's pool-holding shape and its cosine-distance query.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and returns a Store. Callers must call Migrate
// before first use against a fresh database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// Pool exposes the underlying connection pool for callers that need to run
// migrations or maintenance queries outside the VectorStore/LexicalSearch
// surface.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// IndexChunk upserts one pre-embedded chunk, grounded on
// SemanticIndexImpl.IndexChunk's ON CONFLICT upsert shape.
func (s *Store) IndexChunk(ctx context.Context, id, sourceID, text string, embedding []float32) error {
	const q = `
		INSERT INTO chunks (id, source_id, content, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
		    source_id = EXCLUDED.source_id,
		    content   = EXCLUDED.content,
		    embedding = EXCLUDED.embedding`

	vec := vectorlib.NewVector(embedding)
	if _, err := s.pool.Exec(ctx, q, id, sourceID, text, vec); err != nil {
		return fmt.Errorf("pgvector: index chunk: %w", err)
	}
	return nil
}

// Query implements provider.VectorStore. It finds the topK chunks whose
// embeddings are closest (cosine distance, via pgvector's <=> operator) to
// embedding, optionally restricted by filter["source_id"].
//
// Grounded on SemanticIndexImpl.Search: same dynamic WHERE-clause-building
// pattern over a parameterised query, trimmed to the one filter key
// provider.VectorFilter's opaque map needs here.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int, filter provider.VectorFilter) ([]provider.VectorCandidate, error) {
	queryVec := vectorlib.NewVector(embedding)

	args := []any{queryVec}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if sourceID := filter["source_id"]; sourceID != "" {
		conditions = append(conditions, "source_id = "+next(sourceID))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT content, source_id, 1 - (embedding <=> $1) AS score
		FROM   chunks
		%s
		ORDER  BY embedding <=> $1
		LIMIT  %s`, whereClause, limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: query: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (provider.VectorCandidate, error) {
		var c provider.VectorCandidate
		if err := row.Scan(&c.Text, &c.SourceID, &c.Score); err != nil {
			return provider.VectorCandidate{}, err
		}
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pgvector: scan rows: %w", err)
	}
	if results == nil {
		results = []provider.VectorCandidate{}
	}
	return results, nil
}

// Search implements provider.LexicalSearch via Postgres full-text search
// over the same chunks table, ranked with ts_rank. §4.6 calls for an
// "optionally combine with a lexical candidate set of the same size" —
// this is that sparse candidate source.
func (s *Store) Search(ctx context.Context, query string, topK int, filter provider.VectorFilter) ([]provider.VectorCandidate, error) {
	args := []any{query}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"to_tsvector('english', content) @@ plainto_tsquery('english', $1)"}
	if sourceID := filter["source_id"]; sourceID != "" {
		conditions = append(conditions, "source_id = "+next(sourceID))
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT content, source_id,
		       ts_rank(to_tsvector('english', content), plainto_tsquery('english', $1)) AS score
		FROM   chunks
		WHERE  %s
		ORDER  BY score DESC
		LIMIT  %s`, strings.Join(conditions, " AND "), limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: lexical search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (provider.VectorCandidate, error) {
		var c provider.VectorCandidate
		if err := row.Scan(&c.Text, &c.SourceID, &c.Score); err != nil {
			return provider.VectorCandidate{}, err
		}
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pgvector: scan rows: %w", err)
	}
	if results == nil {
		results = []provider.VectorCandidate{}
	}
	return results, nil
}
