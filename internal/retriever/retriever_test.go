package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-assistant/internal/models"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

type fakeCorpus struct {
	rev      uint64
	chunks   []models.Chunk
	semantic []models.ScoredChunk
	allErr   error
	queryErr error
	allCalls int
}

func (f *fakeCorpus) Query(_ context.Context, _ []float32, k int) ([]models.ScoredChunk, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.semantic) > k {
		return f.semantic[:k], nil
	}
	return f.semantic, nil
}

func (f *fakeCorpus) All(_ context.Context) ([]models.Chunk, error) {
	f.allCalls++
	if f.allErr != nil {
		return nil, f.allErr
	}
	return f.chunks, nil
}

func (f *fakeCorpus) Revision() uint64 { return f.rev }

func chunk(id, content string) models.Chunk {
	return models.Chunk{ID: id, Content: content, Source: "doc.txt"}
}

func scored(id, content string, score float64) models.ScoredChunk {
	return models.ScoredChunk{Chunk: chunk(id, content), Score: score}
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	corpus := &fakeCorpus{rev: 1}
	r := New(&fakeEmbedder{}, corpus, 3, 0.7, 0.3)

	results, err := r.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveEmbedderErrorPropagates(t *testing.T) {
	boom := errors.New("embed down")
	r := New(&fakeEmbedder{err: boom}, &fakeCorpus{rev: 1}, 3, 0.7, 0.3)

	_, err := r.Retrieve(context.Background(), "anything")
	assert.ErrorIs(t, err, boom)
}

func TestRetrieveSemanticErrorPropagates(t *testing.T) {
	boom := errors.New("vector store down")
	r := New(&fakeEmbedder{}, &fakeCorpus{rev: 1, queryErr: boom}, 3, 0.7, 0.3)

	_, err := r.Retrieve(context.Background(), "anything")
	assert.ErrorIs(t, err, boom)
}

func TestRetrieveDegradesToSemanticOnSnapshotError(t *testing.T) {
	corpus := &fakeCorpus{
		rev:      1,
		allErr:   errors.New("catalog down"),
		semantic: []models.ScoredChunk{scored("a", "warranty terms", 0.9)},
	}
	r := New(&fakeEmbedder{}, corpus, 3, 0.7, 0.3)

	results, err := r.Retrieve(context.Background(), "warranty")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Chunk.ID)
}

func TestRetrieveFusesBothLists(t *testing.T) {
	corpus := &fakeCorpus{
		rev: 1,
		chunks: []models.Chunk{
			chunk("a", "warranty covers the battery"),
			chunk("b", "shipping takes five days"),
		},
		semantic: []models.ScoredChunk{
			scored("b", "shipping takes five days", 0.8),
			scored("a", "warranty covers the battery", 0.5),
		},
	}
	r := New(&fakeEmbedder{}, corpus, 3, 0.7, 0.3)

	results, err := r.Retrieve(context.Background(), "warranty")
	require.NoError(t, err)
	require.Len(t, results, 2)
	// b leads on semantic score alone; a picks up the full lexical
	// weight on top of its semantic share and overtakes it.
	// a: 0.7*(0.5/0.8) + 0.3*1.0 = 0.7375, b: 0.7*1.0 = 0.7.
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.Equal(t, "b", results[1].Chunk.ID)
	assert.InDelta(t, 0.7375, results[0].Score, 1e-9)
	assert.InDelta(t, 0.7, results[1].Score, 1e-9)
}

func TestRetrieveCapsAtFanOut(t *testing.T) {
	corpus := &fakeCorpus{
		rev: 1,
		semantic: []models.ScoredChunk{
			scored("a", "one", 0.9),
			scored("b", "two", 0.8),
			scored("c", "three", 0.7),
		},
	}
	r := New(&fakeEmbedder{}, corpus, 2, 0.7, 0.3)

	results, err := r.Retrieve(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestLexicalIndexCachedPerRevision(t *testing.T) {
	corpus := &fakeCorpus{
		rev:    1,
		chunks: []models.Chunk{chunk("a", "warranty covers the battery")},
	}
	r := New(&fakeEmbedder{}, corpus, 3, 0.7, 0.3)
	ctx := context.Background()

	_, err := r.Retrieve(ctx, "warranty")
	require.NoError(t, err)
	_, err = r.Retrieve(ctx, "battery")
	require.NoError(t, err)
	assert.Equal(t, 1, corpus.allCalls, "same revision must reuse the index")

	corpus.rev = 2
	_, err = r.Retrieve(ctx, "warranty")
	require.NoError(t, err)
	assert.Equal(t, 2, corpus.allCalls, "new revision must rebuild")
}

func TestFailedRebuildNotRetriedWithinRevision(t *testing.T) {
	corpus := &fakeCorpus{rev: 1, allErr: errors.New("catalog down")}
	r := New(&fakeEmbedder{}, corpus, 3, 0.7, 0.3)
	ctx := context.Background()

	_, err := r.Retrieve(ctx, "warranty")
	require.NoError(t, err)
	_, err = r.Retrieve(ctx, "warranty")
	require.NoError(t, err)
	assert.Equal(t, 1, corpus.allCalls)
}

func TestFuseTieBreaksBySemanticRank(t *testing.T) {
	semantic := []models.ScoredChunk{
		scored("a", "one", 0.5),
		scored("b", "two", 0.5),
	}
	fused := fuse(semantic, nil, 0.7, 0.3)
	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].Chunk.ID)
	assert.Equal(t, "b", fused[1].Chunk.ID)
}

func TestFuseMissingListContributesZero(t *testing.T) {
	semantic := []models.ScoredChunk{scored("a", "one", 0.9)}
	lexResults := []models.ScoredChunk{scored("b", "two", 2.5)}

	fused := fuse(semantic, lexResults, 0.7, 0.3)
	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].Chunk.ID)
	assert.InDelta(t, 0.7, fused[0].Score, 1e-9)
	assert.InDelta(t, 0.3, fused[1].Score, 1e-9)
}

func TestFuseMonotonicInBothScores(t *testing.T) {
	semantic := []models.ScoredChunk{
		scored("hi", "stronger everywhere", 0.9),
		scored("lo", "weaker everywhere", 0.4),
	}
	lexResults := []models.ScoredChunk{
		scored("hi", "stronger everywhere", 3.0),
		scored("lo", "weaker everywhere", 1.0),
	}
	fused := fuse(semantic, lexResults, 0.7, 0.3)
	require.Len(t, fused, 2)
	assert.Equal(t, "hi", fused[0].Chunk.ID)
	assert.Greater(t, fused[0].Score, fused[1].Score)
}

func TestDefaultsApplied(t *testing.T) {
	r := New(&fakeEmbedder{}, &fakeCorpus{rev: 1}, 0, 0, 0)
	assert.Equal(t, 3, r.fanOut)
	assert.Equal(t, DefaultSemanticWeight, r.semW)
	assert.Equal(t, DefaultLexicalWeight, r.lexW)
}
