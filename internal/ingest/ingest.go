// Package ingest orchestrates adding documents to the knowledge base:
// deduplicate, chunk, embed, store, record the fingerprint.
package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"knowledge-assistant/internal/chunker"
	"knowledge-assistant/internal/dedup"
	"knowledge-assistant/internal/helper"
	"knowledge-assistant/internal/models"
	"knowledge-assistant/internal/parser"
)

// Store is the slice of the knowledge store ingestion needs.
type Store interface {
	Add(ctx context.Context, chunks []models.Chunk, embeddings [][]float32) error
}

// Service runs the ingestion pipeline.
type Service struct {
	ledger   *dedup.Ledger
	splitter *chunker.Splitter
	embedder embeddings.Embedder
	store    Store
	operator string
}

// New wires the pipeline stages together.
func New(ledger *dedup.Ledger, splitter *chunker.Splitter, embedder embeddings.Embedder, store Store, operator string) *Service {
	return &Service{
		ledger:   ledger,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		operator: operator,
	}
}

// IngestText adds one document's text under the given source name. The
// outcome is reported in the result, never as a panic or a silent drop:
// duplicates are skipped (the normal idempotence path), empty content
// and pipeline failures come back as failed items.
func (s *Service) IngestText(ctx context.Context, text, source string) models.IngestResult {
	if strings.TrimSpace(text) == "" {
		return models.IngestResult{Source: source, Status: models.IngestFailed, Err: "empty content"}
	}
	if s.ledger.IsDuplicate(text) {
		log.Info().Str("source", source).Msg("Content already present, skipped")
		return models.IngestResult{Source: source, Status: models.IngestSkipped}
	}

	pieces := s.splitter.Split(text)
	if len(pieces) == 0 {
		return models.IngestResult{Source: source, Status: models.IngestFailed, Err: "no chunks produced"}
	}

	now := time.Now()
	chunks := make([]models.Chunk, len(pieces))
	for i, piece := range pieces {
		id, err := helper.GenerateUUID()
		if err != nil {
			return models.IngestResult{Source: source, Status: models.IngestFailed, Err: err.Error()}
		}
		chunks[i] = models.Chunk{
			ID:        id,
			Content:   piece,
			Source:    source,
			CreatedAt: now,
			Operator:  s.operator,
		}
	}

	texts := make([]string, len(pieces))
	copy(texts, pieces)
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		log.Error().Err(err).Str("source", source).Msg("Embedding failed")
		return models.IngestResult{Source: source, Status: models.IngestFailed, Err: err.Error()}
	}

	if err := s.store.Add(ctx, chunks, vectors); err != nil {
		log.Error().Err(err).Str("source", source).Msg("Storing chunks failed")
		return models.IngestResult{Source: source, Status: models.IngestFailed, Err: err.Error()}
	}

	// Recorded only after the insert succeeded, so a failed ingestion
	// can be retried without tripping the duplicate check.
	if err := s.ledger.Record(text); err != nil {
		log.Error().Err(err).Str("source", source).Msg("Recording fingerprint failed")
		return models.IngestResult{Source: source, Status: models.IngestFailed, Err: err.Error()}
	}

	log.Info().Str("source", source).Int("chunks", len(chunks)).Msg("Content loaded into knowledge base")
	return models.IngestResult{Source: source, Status: models.IngestAdded, Chunks: len(chunks)}
}

// IngestFiles parses and ingests each file independently: one file's
// failure never aborts the rest of the batch.
func (s *Service) IngestFiles(ctx context.Context, paths []string) models.IngestSummary {
	var summary models.IngestSummary
	for _, path := range paths {
		if !parser.Supported(path) {
			summary.Results = append(summary.Results, models.IngestResult{
				Source: path, Status: models.IngestFailed, Err: "unsupported file format",
			})
			continue
		}
		text, err := parser.Parse(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Parsing failed")
			summary.Results = append(summary.Results, models.IngestResult{
				Source: path, Status: models.IngestFailed, Err: err.Error(),
			})
			continue
		}
		summary.Results = append(summary.Results, s.IngestText(ctx, text, filepath.Base(path)))
	}

	added, skipped, failed := summary.Counts()
	log.Info().Int("added", added).Int("skipped", skipped).Int("failed", failed).Msg("Batch ingestion finished")
	return summary
}
