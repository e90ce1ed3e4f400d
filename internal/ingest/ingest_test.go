package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-assistant/internal/chunker"
	"knowledge-assistant/internal/dedup"
	"knowledge-assistant/internal/models"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeStore struct {
	err    error
	adds   int
	chunks []models.Chunk
}

func (f *fakeStore) Add(_ context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if f.err != nil {
		return f.err
	}
	if len(chunks) != len(vectors) {
		return errors.New("chunk/vector length mismatch")
	}
	f.adds++
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func newService(t *testing.T, embedder *fakeEmbedder, store *fakeStore) *Service {
	t.Helper()
	ledger, err := dedup.NewLedger(filepath.Join(t.TempDir(), "fingerprints.txt"))
	require.NoError(t, err)
	splitter := chunker.New(50, 10, 30, nil)
	return New(ledger, splitter, embedder, store, "tester")
}

func TestIngestTextAddsChunks(t *testing.T) {
	store := &fakeStore{}
	svc := newService(t, &fakeEmbedder{}, store)

	text := "The warranty period is one year.\n\nShipping takes three business days from the warehouse.\n\nReturns are accepted within thirty days of delivery."
	result := svc.IngestText(context.Background(), text, "faq.txt")

	assert.Equal(t, models.IngestAdded, result.Status)
	assert.Greater(t, result.Chunks, 1)
	assert.Equal(t, 1, store.adds)
	for _, c := range store.chunks {
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, "faq.txt", c.Source)
		assert.Equal(t, "tester", c.Operator)
		assert.False(t, c.CreatedAt.IsZero())
	}
}

func TestIngestTextSkipsDuplicate(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{}
	svc := newService(t, embedder, store)
	ctx := context.Background()

	text := "The warranty period is one year."
	first := svc.IngestText(ctx, text, "faq.txt")
	require.Equal(t, models.IngestAdded, first.Status)

	second := svc.IngestText(ctx, text, "faq-copy.txt")
	assert.Equal(t, models.IngestSkipped, second.Status)
	assert.Equal(t, 1, store.adds)
	assert.Equal(t, 1, embedder.calls)
}

func TestIngestTextEmptyContentFails(t *testing.T) {
	store := &fakeStore{}
	svc := newService(t, &fakeEmbedder{}, store)

	result := svc.IngestText(context.Background(), "   \n\t ", "empty.txt")
	assert.Equal(t, models.IngestFailed, result.Status)
	assert.Equal(t, 0, store.adds)
}

func TestIngestTextEmbedFailureIsRetryable(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{err: errors.New("embedding service down")}
	svc := newService(t, embedder, store)
	ctx := context.Background()

	text := "The warranty period is one year."
	result := svc.IngestText(ctx, text, "faq.txt")
	assert.Equal(t, models.IngestFailed, result.Status)
	assert.Equal(t, 0, store.adds)

	// A failed attempt must not poison the dedup ledger.
	embedder.err = nil
	retry := svc.IngestText(ctx, text, "faq.txt")
	assert.Equal(t, models.IngestAdded, retry.Status)
	assert.Equal(t, 1, store.adds)
}

func TestIngestTextStoreFailureIsRetryable(t *testing.T) {
	store := &fakeStore{err: errors.New("store down")}
	svc := newService(t, &fakeEmbedder{}, store)
	ctx := context.Background()

	text := "The warranty period is one year."
	result := svc.IngestText(ctx, text, "faq.txt")
	assert.Equal(t, models.IngestFailed, result.Status)

	store.err = nil
	retry := svc.IngestText(ctx, text, "faq.txt")
	assert.Equal(t, models.IngestAdded, retry.Status)
}

func TestIngestFilesBatchIndependence(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("Shipping takes three business days."), 0o644))
	unsupported := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(unsupported, []byte{0x89, 0x50}, 0o644))
	missing := filepath.Join(dir, "missing.md")

	store := &fakeStore{}
	svc := newService(t, &fakeEmbedder{}, store)

	summary := svc.IngestFiles(context.Background(), []string{unsupported, missing, good})
	require.Len(t, summary.Results, 3)

	added, skipped, failed := summary.Counts()
	assert.Equal(t, 1, added)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, 2, failed)

	// Source names are the base file name, not the full path.
	assert.Equal(t, "good.txt", summary.Results[2].Source)
	assert.Equal(t, models.IngestAdded, summary.Results[2].Status)
}
