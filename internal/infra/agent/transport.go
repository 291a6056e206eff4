// Package agent adapts the ChatGPT client and third-party JSON tooling to
// the internal/domain/agent contracts.
package agent

import (
	"context"
	"fmt"

	"github.com/yanqian/ai-helloworld/internal/domain/agent"
	"github.com/yanqian/ai-helloworld/internal/infra/llm/chatgpt"
)

// ChatGPTTransport adapts chatgpt.Client to agent.ChatTransport. Escalation
// has no first-class signal in the Chat Completions API; a response that
// triggered the provider's content filter (an empty choice list) is treated
// as an escalation rather than a transient transport error.
type ChatGPTTransport struct {
	client *chatgpt.Client
}

// NewChatGPTTransport constructs a ChatGPTTransport.
func NewChatGPTTransport(client *chatgpt.Client) *ChatGPTTransport {
	return &ChatGPTTransport{client: client}
}

func (t *ChatGPTTransport) Complete(ctx context.Context, model string, parts []agent.PromptPart) (agent.CompletionResult, error) {
	hasMultimodal := false
	for _, p := range parts {
		if len(p.ImageBytes) > 0 || len(p.PDFBytes) > 0 {
			hasMultimodal = true
			break
		}
	}

	if hasMultimodal {
		return t.completeMultimodal(ctx, model, parts)
	}
	return t.completeText(ctx, model, parts)
}

func (t *ChatGPTTransport) completeText(ctx context.Context, model string, parts []agent.PromptPart) (agent.CompletionResult, error) {
	var content string
	for _, p := range parts {
		content += p.Text
	}

	resp, err := t.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:    model,
		Messages: []chatgpt.Message{{Role: "user", Content: content}},
	})
	if err != nil {
		return agent.CompletionResult{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return agent.CompletionResult{Escalated: true, Reason: "provider returned no choices"}, nil
	}
	return agent.CompletionResult{Text: resp.Choices[0].Message.Content}, nil
}

func (t *ChatGPTTransport) completeMultimodal(ctx context.Context, model string, parts []agent.PromptPart) (agent.CompletionResult, error) {
	contentParts := make([]chatgpt.ContentPart, 0, len(parts))
	for _, p := range parts {
		switch {
		case len(p.ImageBytes) > 0:
			contentParts = append(contentParts, chatgpt.ContentPart{ImagePNG: p.ImageBytes})
		case len(p.PDFBytes) > 0:
			contentParts = append(contentParts, chatgpt.ContentPart{PDFBytes: p.PDFBytes})
		default:
			contentParts = append(contentParts, chatgpt.ContentPart{Text: p.Text})
		}
	}

	resp, err := t.client.CreateMultimodalChatCompletion(ctx, chatgpt.MultimodalChatCompletionRequest{
		Model:    model,
		Messages: []chatgpt.MultimodalMessage{{Role: "user", Parts: contentParts}},
	})
	if err != nil {
		return agent.CompletionResult{}, fmt.Errorf("multimodal chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return agent.CompletionResult{Escalated: true, Reason: "provider returned no choices"}, nil
	}
	return agent.CompletionResult{Text: resp.Choices[0].Message.Content}, nil
}

var _ agent.ChatTransport = (*ChatGPTTransport)(nil)
