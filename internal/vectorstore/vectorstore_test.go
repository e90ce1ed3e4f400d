package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-assistant/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewInMemory("test")
	require.NoError(t, err)
	return store
}

func sample(id, source string) models.Chunk {
	return models.Chunk{
		ID:        id,
		Content:   "content of " + id,
		Source:    source,
		CreatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local),
		Operator:  "tester",
	}
}

func TestInsertLengthMismatch(t *testing.T) {
	store := openTestStore(t)
	err := store.Insert(context.Background(),
		[]models.Chunk{sample("c1", "a.txt")},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	)
	assert.Error(t, err)
}

func TestQueryOrdersBySimilarity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx,
		[]models.Chunk{sample("c1", "a.txt"), sample("c2", "a.txt"), sample("c3", "b.txt")},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	))

	results, err := store.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	// Metadata round-trips from the collection.
	assert.Equal(t, "a.txt", results[0].Chunk.Source)
	assert.Equal(t, "tester", results[0].Chunk.Operator)
	assert.Equal(t, 2026, results[0].Chunk.CreatedAt.Year())
}

func TestQueryClampsKToCollectionSize(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx,
		[]models.Chunk{sample("c1", "a.txt")},
		[][]float32{{1, 0, 0}},
	))

	results, err := store.Query(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestQueryEmptyCollection(t *testing.T) {
	store := openTestStore(t)
	results, err := store.Query(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteByID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx,
		[]models.Chunk{sample("c1", "a.txt"), sample("c2", "a.txt")},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	))

	require.NoError(t, store.Delete(ctx, "c1"))
	assert.Equal(t, 1, store.Count())
}

func TestDeleteBySource(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx,
		[]models.Chunk{sample("c1", "a.txt"), sample("c2", "b.txt")},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	))

	require.NoError(t, store.DeleteBySource(ctx, "a.txt"))
	assert.Equal(t, 1, store.Count())

	results, err := store.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].Chunk.ID)
}

func TestClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx,
		[]models.Chunk{sample("c1", "a.txt")},
		[][]float32{{1, 0, 0}},
	))

	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, 0, store.Count())

	// The recreated collection accepts new inserts.
	require.NoError(t, store.Insert(ctx,
		[]models.Chunk{sample("c2", "b.txt")},
		[][]float32{{0, 1, 0}},
	))
	assert.Equal(t, 1, store.Count())
}
