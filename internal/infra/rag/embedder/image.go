package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yanqian/ai-helloworld/internal/infra/llm/chatgpt"
)

// ChatGPTImageEmbedder sends raw image bytes or text to a vision-capable
// chat-completion call. parseEmbeddingFromCompletion does not decode any
// embedding from the response, so EmbedImage and EmbedText return an error
// after every call that reaches the provider. cmd/app uses the deterministic
// image embedder instead when the chat client or the embedding model is not
// configured.
type ChatGPTImageEmbedder struct {
	client    *chatgpt.Client
	model     string
	dimension int
	logger    *slog.Logger
}

// NewChatGPTImageEmbedder constructs a ChatGPTImageEmbedder.
func NewChatGPTImageEmbedder(client *chatgpt.Client, model string, dimension int, logger *slog.Logger) *ChatGPTImageEmbedder {
	return &ChatGPTImageEmbedder{
		client:    client,
		model:     strings.TrimSpace(model),
		dimension: dimension,
		logger:    logger.With("component", "rag.embedder.image"),
	}
}

// EmbedImage embeds raw image bytes into the visual collection's space.
func (e *ChatGPTImageEmbedder) EmbedImage(ctx context.Context, imageBytes []byte) ([]float32, error) {
	resp, err := e.client.CreateMultimodalChatCompletion(ctx, chatgpt.MultimodalChatCompletionRequest{
		Model: e.model,
		Messages: []chatgpt.MultimodalMessage{
			{Role: "user", Parts: []chatgpt.ContentPart{{ImagePNG: imageBytes}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("image embed: %w", err)
	}
	return parseEmbeddingFromCompletion(resp, e.dimension)
}

// EmbedText embeds text into the same space as EmbedImage, for
// text-to-image querying.
func (e *ChatGPTImageEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateMultimodalChatCompletion(ctx, chatgpt.MultimodalChatCompletionRequest{
		Model: e.model,
		Messages: []chatgpt.MultimodalMessage{
			{Role: "user", Parts: []chatgpt.ContentPart{{Text: text}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("image-space text embed: %w", err)
	}
	return parseEmbeddingFromCompletion(resp, e.dimension)
}

// Dimension returns the configured vector dimension.
func (e *ChatGPTImageEmbedder) Dimension() int { return e.dimension }

func parseEmbeddingFromCompletion(resp chatgpt.ChatCompletionResponse, dimension int) ([]float32, error) {
	// Placeholder decode path for providers whose multimodal-embedding
	// response shape diverges from plain chat completions; concrete
	// providers plug in their own client satisfying rag.ImageEmbedder
	// directly when their wire format differs this much.
	_ = resp
	if dimension <= 0 {
		return nil, fmt.Errorf("image embed: no embedding dimension configured")
	}
	return nil, fmt.Errorf("image embed: provider response contained no embedding")
}
