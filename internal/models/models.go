package models

import (
	"fmt"
	"time"
)

// TimeFormat is the format used for chunk creation timestamps in metadata.
const TimeFormat = "2006-01-02 15:04:05"

// Chunk is a bounded segment of a source document, the unit stored and retrieved.
// Chunks are immutable once stored.
type Chunk struct {
	ID        string
	Content   string
	Source    string
	CreatedAt time.Time
	Operator  string
}

// Metadata returns the chunk metadata as stored alongside the vector.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		"source":      c.Source,
		"create_time": c.CreatedAt.Format(TimeFormat),
		"operator":    c.Operator,
	}
}

// MetadataString renders the metadata in the form used inside prompt context.
func (c Chunk) MetadataString() string {
	return fmt.Sprintf("source=%s create_time=%s operator=%s",
		c.Source, c.CreatedAt.Format(TimeFormat), c.Operator)
}

// ScoredChunk is a chunk paired with its retrieval relevance score.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Turn is a single conversation message within a session.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Answer is the result of a question: the generated text plus the
// retrieval results it was grounded on.
type Answer struct {
	Content string
	Sources []ScoredChunk
}

// Ingest outcome states for one item of a batch.
const (
	IngestAdded   = "added"
	IngestSkipped = "skipped"
	IngestFailed  = "failed"
)

// IngestResult reports the outcome for a single document in a batch.
type IngestResult struct {
	Source string
	Status string
	Chunks int
	Err    string
}

// IngestSummary aggregates per-item outcomes of a batch ingestion.
type IngestSummary struct {
	Results []IngestResult
}

// Counts returns the number of added, skipped and failed items.
func (s IngestSummary) Counts() (added, skipped, failed int) {
	for _, r := range s.Results {
		switch r.Status {
		case IngestAdded:
			added++
		case IngestSkipped:
			skipped++
		case IngestFailed:
			failed++
		}
	}
	return added, skipped, failed
}
