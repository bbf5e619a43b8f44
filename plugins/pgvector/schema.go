package pgvector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlChunks returns the chunks table DDL with the embedding dimension
// substituted, grounded on the teacher pack's ddlL2 (same
// CREATE EXTENSION IF NOT EXISTS vector + vector(%d) column + HNSW index
// shape, trimmed to this store's simpler id/source_id/content schema).
func ddlChunks(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
    id         TEXT  PRIMARY KEY,
    source_id  TEXT  NOT NULL DEFAULT '',
    content    TEXT  NOT NULL,
    embedding  vector(%d)
);

CREATE INDEX IF NOT EXISTS idx_chunks_source_id
    ON chunks (source_id);

CREATE INDEX IF NOT EXISTS idx_chunks_embedding
    ON chunks USING hnsw (embedding vector_cosine_ops);

CREATE INDEX IF NOT EXISTS idx_chunks_fts
    ON chunks USING GIN (to_tsvector('english', content));
`, embeddingDimensions)
}

// Migrate creates the chunks table and its indexes if they don't already
// exist. embeddingDimensions must match the configured Embedding
// provider's output size (e.g. 1536 for OpenAI text-embedding-3-small).
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlChunks(embeddingDimensions)); err != nil {
		return fmt.Errorf("pgvector: migrate: %w", err)
	}
	return nil
}
