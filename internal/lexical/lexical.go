// Package lexical provides an in-memory BM25 index built from the
// current corpus snapshot. It is rebuilt after store mutations and only
// ever queried, never persisted.
package lexical

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"

	"knowledge-assistant/internal/models"
)

// BM25 constants, standard values.
const (
	k1 = 1.2
	b  = 0.75
)

// ErrEmptyCorpus is returned when there is nothing to index. Callers are
// expected to degrade to semantic-only retrieval.
var ErrEmptyCorpus = errors.New("lexical: empty corpus")

type indexedDoc struct {
	chunk  models.Chunk
	tf     map[string]int
	length int
}

// Index answers keyword-overlap ranking queries over a fixed snapshot.
type Index struct {
	docs   []indexedDoc
	df     map[string]int
	avgLen float64
}

// Build tokenizes every chunk and computes the term statistics.
func Build(chunks []models.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}
	ix := &Index{df: make(map[string]int)}
	totalLen := 0
	for _, c := range chunks {
		tokens := Tokenize(c.Content)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t := range tf {
			ix.df[t]++
		}
		ix.docs = append(ix.docs, indexedDoc{chunk: c, tf: tf, length: len(tokens)})
		totalLen += len(tokens)
	}
	ix.avgLen = float64(totalLen) / float64(len(ix.docs))
	if ix.avgLen == 0 {
		return nil, ErrEmptyCorpus
	}
	return ix, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	return len(ix.docs)
}

// Search scores all documents against the query with BM25 and returns
// the top k chunks with a positive score, highest first. Ordering is
// deterministic: score, then original corpus order.
func (ix *Index) Search(query string, k int) []models.ScoredChunk {
	terms := Tokenize(query)
	if len(terms) == 0 || k <= 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(terms))
	n := float64(len(ix.docs))

	scores := make([]float64, len(ix.docs))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		df, ok := ix.df[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		for i := range ix.docs {
			tf := float64(ix.docs[i].tf[term])
			if tf == 0 {
				continue
			}
			norm := 1 - b + b*float64(ix.docs[i].length)/ix.avgLen
			scores[i] += idf * tf * (k1 + 1) / (tf + k1*norm)
		}
	}

	order := make([]int, 0, len(ix.docs))
	for i, s := range scores {
		if s > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, c int) bool {
		return scores[order[a]] > scores[order[c]]
	})
	if len(order) > k {
		order = order[:k]
	}

	out := make([]models.ScoredChunk, 0, len(order))
	for _, i := range order {
		out = append(out, models.ScoredChunk{Chunk: ix.docs[i].chunk, Score: scores[i]})
	}
	return out
}

// Tokenize lowercases the text and emits word tokens. Latin letters and
// digits group into words; each Han character is its own token so that
// Chinese queries overlap without word segmentation.
func Tokenize(text string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}
