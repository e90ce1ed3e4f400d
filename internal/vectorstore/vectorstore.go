// Package vectorstore wraps the chromem-go collection holding chunk
// embeddings.
package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/philippgille/chromem-go"

	"knowledge-assistant/internal/models"
)

const compress = false

// Store owns one chromem collection.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
}

// New opens (or creates) a persistent database under persistDir and the
// named collection inside it.
func New(persistDir, collectionName string) (*Store, error) {
	db, err := chromem.NewPersistentDB(persistDir, compress)
	if err != nil {
		return nil, fmt.Errorf("opening vector database: %w", err)
	}
	return open(db, collectionName)
}

// NewInMemory builds a throwaway store, used by tests.
func NewInMemory(collectionName string) (*Store, error) {
	return open(chromem.NewDB(), collectionName)
}

func open(db *chromem.DB, collectionName string) (*Store, error) {
	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", collectionName, err)
	}
	return &Store{db: db, collection: c, name: collectionName}, nil
}

// Insert stores chunks with their precomputed embeddings. Both slices
// must be the same length.
func (s *Store) Insert(ctx context.Context, chunks []models.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("got %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Metadata:  c.Metadata(),
			Embedding: embeddings[i],
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Query runs a nearest-neighbor search. k is clamped to the collection
// size; an empty collection yields no results rather than an error.
func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error) {
	count := s.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	out := make([]models.ScoredChunk, len(results))
	for i, r := range results {
		out[i] = models.ScoredChunk{
			Chunk: chunkFromResult(r),
			Score: float64(r.Similarity),
		}
	}
	return out, nil
}

// Delete removes documents by id.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	return nil
}

// DeleteBySource removes every document ingested from the given source.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	if err := s.collection.Delete(ctx, map[string]string{"source": source}, nil); err != nil {
		return fmt.Errorf("deleting documents for source %s: %w", source, err)
	}
	return nil
}

// Clear drops and recreates the collection.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("dropping collection: %w", err)
	}
	c, err := s.db.GetOrCreateCollection(s.name, nil, nil)
	if err != nil {
		return fmt.Errorf("recreating collection: %w", err)
	}
	s.collection = c
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count() int {
	return s.collection.Count()
}

func chunkFromResult(r chromem.Result) models.Chunk {
	createdAt, _ := time.ParseInLocation(models.TimeFormat, r.Metadata["create_time"], time.Local)
	return models.Chunk{
		ID:        r.ID,
		Content:   r.Content,
		Source:    r.Metadata["source"],
		CreatedAt: createdAt,
		Operator:  r.Metadata["operator"],
	}
}
