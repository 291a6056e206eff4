package chatgpt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ContentPart is one piece of a multimodal message: text, an inline image,
// or an inline PDF. Order is preserved in the assembled request.
type ContentPart struct {
	Text     string
	ImagePNG []byte
	PDFBytes []byte
}

// multimodalContentJSON mirrors the OpenAI-compatible content-parts array.
// The exact wire shape is provider-specific; this follows the common
// "type"+nested-url convention.
type multimodalContentJSON struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLJSON `json:"image_url,omitempty"`
	FileURL  *imageURLJSON `json:"file_url,omitempty"`
}

type imageURLJSON struct {
	URL string `json:"url"`
}

// MultimodalMessage is one chat message whose content may mix text, inline
// images, and inline PDFs.
type MultimodalMessage struct {
	Role  string
	Parts []ContentPart
}

// MultimodalChatCompletionRequest is the payload for a vision-capable call.
type MultimodalChatCompletionRequest struct {
	Model       string
	Messages    []MultimodalMessage
	Temperature float32
}

type rawMultimodalRequest struct {
	Model       string `json:"model"`
	Messages    []rawMultimodalMessage `json:"messages"`
	Temperature float32 `json:"temperature,omitempty"`
}

type rawMultimodalMessage struct {
	Role    string                   `json:"role"`
	Content []multimodalContentJSON `json:"content"`
}

// CreateMultimodalChatCompletion performs a chat completion where message
// content may contain inline images and PDFs alongside text, preserving the
// order the caller supplied. It reuses the client's JSON chat-completion
// transport and response shape.
func (c *Client) CreateMultimodalChatCompletion(ctx context.Context, req MultimodalChatCompletionRequest) (ChatCompletionResponse, error) {
	raw := rawMultimodalRequest{Model: req.Model, Temperature: req.Temperature}
	for _, msg := range req.Messages {
		parts := make([]multimodalContentJSON, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			switch {
			case len(p.ImagePNG) > 0:
				parts = append(parts, multimodalContentJSON{
					Type:     "image_url",
					ImageURL: &imageURLJSON{URL: dataURL("image/png", p.ImagePNG)},
				})
			case len(p.PDFBytes) > 0:
				parts = append(parts, multimodalContentJSON{
					Type:    "file_url",
					FileURL: &imageURLJSON{URL: dataURL("application/pdf", p.PDFBytes)},
				})
			default:
				parts = append(parts, multimodalContentJSON{Type: "text", Text: p.Text})
			}
		}
		raw.Messages = append(raw.Messages, rawMultimodalMessage{Role: msg.Role, Content: parts})
	}

	return c.doMultimodal(ctx, raw)
}

func (c *Client) doMultimodal(ctx context.Context, raw rawMultimodalRequest) (ChatCompletionResponse, error) {
	var out ChatCompletionResponse

	payload, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("encode multimodal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return out, fmt.Errorf("build multimodal request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return out, fmt.Errorf("request multimodal completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return out, fmt.Errorf("multimodal request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("read multimodal response: %w", err)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode multimodal response: %w", err)
	}
	return out, nil
}

func dataURL(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
