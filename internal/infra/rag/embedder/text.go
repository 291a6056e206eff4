// Package embedder provides text and image embedder adapters for the dual
// embedding index.
package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yanqian/ai-helloworld/internal/infra/llm/chatgpt"
)

// ChatGPTTextEmbedder embeds text via an OpenAI-compatible embeddings
// endpoint.
type ChatGPTTextEmbedder struct {
	client    *chatgpt.Client
	model     string
	dimension int
	logger    *slog.Logger
}

// NewChatGPTTextEmbedder constructs a ChatGPTTextEmbedder.
func NewChatGPTTextEmbedder(client *chatgpt.Client, model string, dimension int, logger *slog.Logger) *ChatGPTTextEmbedder {
	return &ChatGPTTextEmbedder{
		client:    client,
		model:     strings.TrimSpace(model),
		dimension: dimension,
		logger:    logger.With("component", "rag.embedder.text"),
	}
}

// Embed returns the embedding vector for a single text input.
func (e *ChatGPTTextEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{Model: e.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("text embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("text embed: empty response")
	}
	return resp.Data[0].Embedding, nil
}

// Dimension returns the configured vector dimension.
func (e *ChatGPTTextEmbedder) Dimension() int { return e.dimension }
