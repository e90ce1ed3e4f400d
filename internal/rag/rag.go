// Package rag answers questions: it retrieves grounding evidence,
// assembles the prompt with the session's history, streams the model
// response and persists the finished turn.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"knowledge-assistant/internal/history"
	"knowledge-assistant/internal/llmservice"
	"knowledge-assistant/internal/models"
)

// Retriever is the hybrid retrieval dependency.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.ScoredChunk, error)
}

// Service is the query-side orchestrator.
type Service struct {
	retriever Retriever
	generator llmservice.Generator
	history   history.Store
}

// New wires the query pipeline.
func New(retriever Retriever, generator llmservice.Generator, hist history.Store) *Service {
	return &Service{retriever: retriever, generator: generator, history: hist}
}

// Ask answers the question for the session. Fragments are forwarded to
// stream as they arrive (stream may be nil). The answer carries the
// retrieval results it was grounded on. Question and response are
// appended to the session's history only once the stream has completed;
// an interrupted stream persists nothing.
func (s *Service) Ask(ctx context.Context, sessionID, question string, stream llmservice.StreamFunc) (models.Answer, error) {
	turns, err := s.history.Load(ctx, sessionID)
	if err != nil {
		return models.Answer{}, fmt.Errorf("loading history: %w", err)
	}

	// Retrieval sees only the current question, never the history.
	sources, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return models.Answer{}, fmt.Errorf("retrieving context: %w", err)
	}
	if len(sources) == 0 {
		log.Info().Str("session", sessionID).Msg("No grounding available for question")
	}

	messages := buildMessages(sources, turns, question)
	content, err := s.generator.Generate(ctx, messages, stream)
	if err != nil {
		return models.Answer{}, fmt.Errorf("generating answer: %w", err)
	}

	err = s.history.Append(ctx, sessionID,
		models.Turn{Role: models.RoleUser, Content: question},
		models.Turn{Role: models.RoleAssistant, Content: content},
	)
	if err != nil {
		// The caller already has the streamed answer; the persistence
		// failure still must not pass silently.
		log.Error().Err(err).Str("session", sessionID).Msg("Appending history failed")
		return models.Answer{Content: content, Sources: sources}, fmt.Errorf("persisting history: %w", err)
	}

	return models.Answer{Content: content, Sources: sources}, nil
}

// ClearSession resets the session's conversation history.
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	return s.history.Clear(ctx, sessionID)
}

// buildMessages assembles the generation request in fixed order: the
// grounding system instruction with the formatted context, the session
// history, then the new question.
func buildMessages(sources []models.ScoredChunk, turns []models.Turn, question string) []llms.MessageContent {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem,
			fmt.Sprintf(models.SystemPromptTemplate, formatContext(sources))),
	}
	for _, t := range turns {
		switch t.Role {
		case models.RoleUser:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, t.Content))
		case models.RoleAssistant:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, t.Content))
		}
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman,
		fmt.Sprintf(models.QuestionTemplate, question)))
	return messages
}

// formatContext renders the retrieved chunks for the prompt, or the
// fixed fallback sentence when retrieval came back empty.
func formatContext(sources []models.ScoredChunk) string {
	if len(sources) == 0 {
		return models.NoContextFallback
	}
	parts := make([]string, len(sources))
	for i, sc := range sources {
		parts[i] = fmt.Sprintf(models.ContextChunkTemplate, sc.Chunk.Content, sc.Chunk.MetadataString())
	}
	return strings.Join(parts, "\n")
}
