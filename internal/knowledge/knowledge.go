// Package knowledge combines the vector index and the chunk catalog
// behind one store, keeping both in step on every mutation.
package knowledge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"knowledge-assistant/internal/docstore"
	"knowledge-assistant/internal/models"
	"knowledge-assistant/internal/vectorstore"
)

// Stats summarizes the stored corpus.
type Stats struct {
	Chunks  int
	Sources []string
}

// Store fronts the vector index and the catalog. Mutations bump the
// revision counter, which the retriever watches to invalidate its
// lexical index.
type Store struct {
	mu      sync.Mutex
	vectors *vectorstore.Store
	catalog *docstore.Store
	rev     atomic.Uint64
}

// New wraps the two stores. The revision starts at 1 so that a consumer
// holding revision zero always sees the first state as fresh.
func New(vectors *vectorstore.Store, catalog *docstore.Store) *Store {
	s := &Store{vectors: vectors, catalog: catalog}
	s.rev.Store(1)
	return s
}

// Revision returns a counter that changes whenever the corpus mutates.
func (s *Store) Revision() uint64 {
	return s.rev.Load()
}

// Add stores chunks and their embeddings in both the vector index and
// the catalog.
func (s *Store) Add(ctx context.Context, chunks []models.Chunk, embeddings [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.vectors.Insert(ctx, chunks, embeddings); err != nil {
		return err
	}
	if err := s.catalog.Add(ctx, chunks); err != nil {
		// The catalog is the corpus snapshot; a vector-only write would
		// leave lexical retrieval blind to these chunks and a retry would
		// re-insert them under fresh ids. Roll the vector insert back so
		// the two stores stay in step.
		log.Error().Err(err).Msg("Catalog insert failed after vector insert, rolling back")
		ids := make([]string, len(chunks))
		for i, c := range chunks {
			ids[i] = c.ID
		}
		if delErr := s.vectors.Delete(ctx, ids...); delErr != nil {
			log.Error().Err(delErr).Msg("Removing chunks from vector index failed")
		}
		return err
	}
	s.rev.Add(1)
	return nil
}

// Query runs a nearest-neighbor search against the vector index.
func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error) {
	return s.vectors.Query(ctx, embedding, k)
}

// All returns the full corpus snapshot from the catalog.
func (s *Store) All(ctx context.Context) ([]models.Chunk, error) {
	return s.catalog.All(ctx)
}

// DocumentsBySource lists the chunks of one source document.
func (s *Store) DocumentsBySource(ctx context.Context, source string) ([]models.Chunk, error) {
	return s.catalog.BySource(ctx, source)
}

// DeleteByID removes a single chunk from both stores.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.vectors.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.catalog.Delete(ctx, id); err != nil {
		return err
	}
	s.rev.Add(1)
	return nil
}

// DeleteBySource removes every chunk of a source document from both stores.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.vectors.DeleteBySource(ctx, source); err != nil {
		return err
	}
	if err := s.catalog.DeleteBySource(ctx, source); err != nil {
		return err
	}
	s.rev.Add(1)
	return nil
}

// Clear empties both stores.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.vectors.Clear(ctx); err != nil {
		return err
	}
	if err := s.catalog.Clear(ctx); err != nil {
		return err
	}
	s.rev.Add(1)
	return nil
}

// Stats reports the chunk count and the distinct sources.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	count, err := s.catalog.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	sources, err := s.catalog.Sources(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Chunks: count, Sources: sources}, nil
}
