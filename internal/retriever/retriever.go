// Package retriever fuses semantic nearest-neighbor results with
// lexical BM25 rankings into one relevance-ordered list.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"knowledge-assistant/internal/lexical"
	"knowledge-assistant/internal/models"
)

// Corpus is the slice of the knowledge store the retriever depends on.
// Revision must change whenever the stored corpus mutates and must never
// be zero, so a retriever that has built nothing yet always rebuilds.
type Corpus interface {
	Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error)
	All(ctx context.Context) ([]models.Chunk, error)
	Revision() uint64
}

// Default fusion weights.
const (
	DefaultSemanticWeight = 0.7
	DefaultLexicalWeight  = 0.3
)

// Retriever answers hybrid retrieval queries. The lexical index is
// rebuilt lazily on the first retrieval after a corpus mutation; the
// read-write lock serializes that rebuild against concurrent queries.
type Retriever struct {
	embedder embeddings.Embedder
	corpus   Corpus
	fanOut   int
	semW     float64
	lexW     float64

	mu       sync.RWMutex
	lex      *lexical.Index // nil when the corpus is empty or a rebuild failed
	builtRev uint64         // corpus revision the index was built from; 0 = never
}

// New builds a Retriever. Non-positive fanOut falls back to 3; weights
// that are both zero fall back to the defaults.
func New(embedder embeddings.Embedder, corpus Corpus, fanOut int, semanticWeight, lexicalWeight float64) *Retriever {
	if fanOut <= 0 {
		fanOut = 3
	}
	if semanticWeight == 0 && lexicalWeight == 0 {
		semanticWeight = DefaultSemanticWeight
		lexicalWeight = DefaultLexicalWeight
	}
	return &Retriever{
		embedder: embedder,
		corpus:   corpus,
		fanOut:   fanOut,
		semW:     semanticWeight,
		lexW:     lexicalWeight,
	}
}

// Retrieve returns the top fanOut fused results for the query. An empty
// corpus yields an empty result, not an error. Embedding or vector-index
// failures propagate; lexical failures only degrade the ranking.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.ScoredChunk, error) {
	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	semantic, err := r.corpus.Query(ctx, embedding, 2*r.fanOut)
	if err != nil {
		return nil, fmt.Errorf("semantic query: %w", err)
	}

	var lexResults []models.ScoredChunk
	if ix := r.lexicalIndex(ctx); ix != nil {
		lexResults = ix.Search(query, 2*r.fanOut)
	}

	fused := fuse(semantic, lexResults, r.semW, r.lexW)
	if len(fused) > r.fanOut {
		fused = fused[:r.fanOut]
	}
	return fused, nil
}

// lexicalIndex returns the BM25 index for the current corpus revision,
// rebuilding it if a mutation happened since the last build. A failed
// rebuild is remembered for the revision so retrieval degrades to
// semantic-only instead of re-attempting on every query.
func (r *Retriever) lexicalIndex(ctx context.Context) *lexical.Index {
	rev := r.corpus.Revision()

	r.mu.RLock()
	if r.builtRev == rev {
		ix := r.lex
		r.mu.RUnlock()
		return ix
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.builtRev == rev {
		return r.lex
	}

	r.lex = nil
	r.builtRev = rev

	chunks, err := r.corpus.All(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Corpus snapshot failed, retrieval degrades to semantic-only")
		return nil
	}
	ix, err := lexical.Build(chunks)
	if err != nil {
		log.Warn().Err(err).Msg("Lexical index rebuild failed, retrieval degrades to semantic-only")
		return nil
	}
	r.lex = ix
	log.Debug().Int("chunks", ix.Len()).Uint64("revision", rev).Msg("Rebuilt lexical index")
	return ix
}

type fusedEntry struct {
	chunk   models.Chunk
	score   float64
	semRank int
	lexRank int
}

const unranked = 1 << 30

// fuse combines the two ranked lists by weighted score. Scores of each
// list are normalized by that list's maximum so the weights act on
// comparable ranges; an item missing from a list contributes zero for
// it. Ties are broken by semantic rank, then lexical rank.
func fuse(semantic, lexResults []models.ScoredChunk, semW, lexW float64) []models.ScoredChunk {
	entries := make(map[string]*fusedEntry)
	order := make([]string, 0, len(semantic)+len(lexResults))

	add := func(sc models.ScoredChunk, weight, max float64, rank int, isSemantic bool) {
		e, ok := entries[sc.Chunk.ID]
		if !ok {
			e = &fusedEntry{chunk: sc.Chunk, semRank: unranked, lexRank: unranked}
			entries[sc.Chunk.ID] = e
			order = append(order, sc.Chunk.ID)
		}
		norm := 0.0
		if max > 0 {
			norm = sc.Score / max
		}
		e.score += weight * norm
		if isSemantic {
			e.semRank = rank
		} else {
			e.lexRank = rank
		}
	}

	semMax := maxScore(semantic)
	for i, sc := range semantic {
		add(sc, semW, semMax, i, true)
	}
	lexMax := maxScore(lexResults)
	for i, sc := range lexResults {
		add(sc, lexW, lexMax, i, false)
	}

	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := entries[order[a]], entries[order[b]]
		if ea.score != eb.score {
			return ea.score > eb.score
		}
		if ea.semRank != eb.semRank {
			return ea.semRank < eb.semRank
		}
		return ea.lexRank < eb.lexRank
	})

	out := make([]models.ScoredChunk, 0, len(order))
	for _, id := range order {
		e := entries[id]
		out = append(out, models.ScoredChunk{Chunk: e.chunk, Score: e.score})
	}
	return out
}

func maxScore(list []models.ScoredChunk) float64 {
	max := 0.0
	for _, sc := range list {
		if sc.Score > max {
			max = sc.Score
		}
	}
	return max
}
