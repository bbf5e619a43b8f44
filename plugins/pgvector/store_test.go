package pgvector_test

import (
	"context"
	"os"
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/voicecore/plugins/pgvector"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if VOICECORE_TEST_POSTGRES_DSN is not set — grounded on the pack's
// own postgres.testDSN helper, which gates its pgvector integration tests
// the same way rather than requiring a live database for every run.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("VOICECORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOICECORE_TEST_POSTGRES_DSN not set — skipping pgvector integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *pgvector.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	store, err := pgvector.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(store.Close)

	if _, err := store.Pool().Exec(ctx, "DROP TABLE IF EXISTS chunks CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if err := pgvector.Migrate(ctx, store.Pool(), testEmbeddingDim); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return store
}

func TestStore_IndexAndQuery(t *testing.T) {
	is := is.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	is.NoErr(store.IndexChunk(ctx, "chunk-1", "doc-a", "the blacksmith forges swords", []float32{1, 0, 0, 0}))
	is.NoErr(store.IndexChunk(ctx, "chunk-2", "doc-a", "the tavern serves ale", []float32{0, 1, 0, 0}))

	results, err := store.Query(ctx, []float32{1, 0, 0, 0}, 1, nil)
	is.NoErr(err)
	is.Equal(len(results), 1)
	is.Equal(results[0].SourceID, "doc-a")
	is.True(results[0].Text == "the blacksmith forges swords")
}

func TestStore_QueryFiltersBySourceID(t *testing.T) {
	is := is.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	is.NoErr(store.IndexChunk(ctx, "chunk-1", "doc-a", "alpha", []float32{1, 0, 0, 0}))
	is.NoErr(store.IndexChunk(ctx, "chunk-2", "doc-b", "beta", []float32{1, 0, 0, 0}))

	results, err := store.Query(ctx, []float32{1, 0, 0, 0}, 10, map[string]string{"source_id": "doc-b"})
	is.NoErr(err)
	is.Equal(len(results), 1)
	is.Equal(results[0].SourceID, "doc-b")
}

func TestStore_Search_LexicalMatch(t *testing.T) {
	is := is.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	is.NoErr(store.IndexChunk(ctx, "chunk-1", "doc-a", "the dragon sleeps in the mountain", []float32{0, 0, 0, 1}))
	is.NoErr(store.IndexChunk(ctx, "chunk-2", "doc-a", "the river flows to the sea", []float32{0, 0, 1, 0}))

	results, err := store.Search(ctx, "dragon mountain", 5, nil)
	is.NoErr(err)
	is.True(len(results) >= 1)
	is.Equal(results[0].SourceID, "doc-a")
}
