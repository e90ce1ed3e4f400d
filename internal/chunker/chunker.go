// Package chunker splits document text into overlapping segments along
// semantic boundaries so that retrieval works on bounded, self-contained
// pieces.
package chunker

import "strings"

const (
	DefaultChunkSize     = 1024
	DefaultChunkOverlap  = 100
	DefaultMaxSplitChars = 1000
)

// DefaultSeparators lists boundary markers from highest to lowest
// priority: paragraph break, line break, sentence-ending punctuation,
// clause punctuation. CJK punctuation is included because the corpus
// contains Chinese documents.
var DefaultSeparators = []string{
	"\n\n", "\n",
	"。", "？", "！", ". ", "? ", "! ",
	"；", "，", "、", "; ", ", ", "：", ":",
}

// Splitter performs recursive boundary-aware splitting. Lengths are
// counted in runes, not bytes, so multi-byte scripts chunk predictably.
type Splitter struct {
	chunkSize     int
	overlap       int
	separators    []string
	maxSplitChars int
}

// New builds a Splitter. Out-of-range values fall back to defaults; an
// overlap that would not leave room for new content is shrunk to a
// quarter of the chunk size.
func New(chunkSize, overlap, maxSplitChars int, separators []string) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	if maxSplitChars <= 0 {
		maxSplitChars = DefaultMaxSplitChars
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Splitter{
		chunkSize:     chunkSize,
		overlap:       overlap,
		separators:    separators,
		maxSplitChars: maxSplitChars,
	}
}

// Split returns the chunks of text in document order. Empty (or
// whitespace-only) input yields no chunks. Input at or below the
// short-circuit threshold is returned whole as a single chunk.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if runeLen(text) <= s.maxSplitChars {
		return []string{text}
	}
	return s.split(text, s.separators)
}

// split breaks text at the highest-priority separator present, recurses
// into any piece still over the chunk size with the remaining separators,
// and merges the resulting units back into overlapping chunks. When no
// separator applies, the text is hard-cut.
func (s *Splitter) split(text string, separators []string) []string {
	if runeLen(text) <= s.chunkSize {
		return []string{text}
	}

	sep := ""
	var rest []string
	for i, candidate := range separators {
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}
	if sep == "" {
		return s.hardCut(text)
	}

	var units []string
	for _, piece := range strings.SplitAfter(text, sep) {
		if piece == "" {
			continue
		}
		if runeLen(piece) > s.chunkSize {
			units = append(units, s.split(piece, rest)...)
			continue
		}
		units = append(units, piece)
	}
	return s.merge(units)
}

// merge packs units into chunks of at most chunkSize runes, carrying the
// tail of each emitted chunk into the next one as overlap.
func (s *Splitter) merge(units []string) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	for _, unit := range units {
		unitLen := runeLen(unit)
		if curLen > 0 && curLen+unitLen > s.chunkSize {
			emitted := cur.String()
			chunks = append(chunks, emitted)

			tail := tailRunes(emitted, s.overlap)
			if runeLen(tail)+unitLen > s.chunkSize {
				tail = tailRunes(tail, s.chunkSize-unitLen)
			}
			cur.Reset()
			cur.WriteString(tail)
			curLen = runeLen(tail)
		}
		cur.WriteString(unit)
		curLen += unitLen
	}
	if curLen > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// hardCut slices text into fixed windows of chunkSize runes, stepping by
// chunkSize-overlap so adjacent windows share the configured overlap.
func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func runeLen(s string) int {
	return len([]rune(s))
}

// tailRunes returns the last n runes of s, or all of s if it is shorter.
func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
