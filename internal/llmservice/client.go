// Package llmservice is the generation gateway: it turns an assembled
// prompt into a streamed model response.
package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"knowledge-assistant/internal/config"
)

// StreamFunc receives response fragments as they arrive. Returning an
// error cancels the stream.
type StreamFunc func(ctx context.Context, fragment string) error

// Generator produces a grounded response for an assembled prompt. When
// stream is non-nil it is called for every fragment; the returned string
// is always the complete accumulated response.
type Generator interface {
	Generate(ctx context.Context, messages []llms.MessageContent, stream StreamFunc) (string, error)
}

// Client is the langchaingo-backed Generator.
type Client struct {
	llm llms.Model
}

var _ Generator = (*Client)(nil)

// NewClient builds the chat model client for the configured provider.
func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	log.Debug().
		Str("provider", llmConfig.Provider).
		Str("base_url", llmConfig.BaseURL).
		Str("chat_model", llmConfig.Model).
		Msg("Initializing chat model")

	switch llmConfig.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama chat model: %w", err)
		}
		return &Client{llm: llm}, nil
	case "openai", "":
		llm, err := openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing openai chat model: %w", err)
		}
		return &Client{llm: llm}, nil
	default:
		return nil, fmt.Errorf("unknown chat provider: %s", llmConfig.Provider)
	}
}

// Generate runs the chat completion. With a stream callback the response
// is accumulated fragment by fragment; an error from the model or from
// the callback aborts the call and nothing of the partial text is
// returned as a result.
func (c *Client) Generate(ctx context.Context, messages []llms.MessageContent, stream StreamFunc) (string, error) {
	var opts []llms.CallOption
	var accumulated strings.Builder
	if stream != nil {
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			accumulated.Write(chunk)
			return stream(ctx, string(chunk))
		}))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	if stream != nil && accumulated.Len() > 0 {
		return accumulated.String(), nil
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}
