// Package chunker splits page text into token-budgeted, overlapping pieces.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/yanqian/ai-helloworld/internal/domain/rag"
)

// TikTokenChunker splits text by paragraph then by token budget, using a
// cl100k_base tokenizer to size chunks and carry overlap between them.
type TikTokenChunker struct {
	MaxTokens int
	Overlap   int
	encoder   *tiktoken.Tiktoken
}

// New constructs a chunker with the given token budget and overlap. A
// non-positive maxTokens defaults to 1000; a negative overlap is treated as 0.
func New(maxTokens, overlap int) *TikTokenChunker {
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &TikTokenChunker{MaxTokens: maxTokens, Overlap: overlap, encoder: enc}
}

// ChunkText splits one page's text into overlapping, token-budgeted chunks.
func (c *TikTokenChunker) ChunkText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	maxRunes := c.MaxTokens * 5 // conservative guard against token inflation (e.g. long base64 runs)
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })

	var (
		current      strings.Builder
		currentRunes int
		out          []string
	)

	flush := func() {
		content := strings.TrimSpace(current.String())
		current.Reset()
		currentRunes = 0
		if content == "" {
			return
		}
		out = append(out, content)
	}

	for _, part := range parts {
		for _, word := range strings.Fields(part) {
			wordRunes := utf8.RuneCountInString(word)

			if wordRunes > maxRunes {
				pieces := splitLongWord(word, maxRunes)
				for i, piece := range pieces {
					if currentRunes+utf8.RuneCountInString(piece) > maxRunes {
						flush()
					}
					current.WriteString(piece)
					current.WriteString(" ")
					currentRunes += utf8.RuneCountInString(piece) + 1
					if i < len(pieces)-1 {
						flush()
					}
				}
				continue
			}

			if currentRunes+wordRunes > maxRunes || c.countTokens(current.String()+word) >= c.MaxTokens {
				flush()
				if c.Overlap > 0 && len(out) > 0 {
					overlap := c.tailTokens(out[len(out)-1], c.Overlap)
					current.WriteString(overlap)
					currentRunes = utf8.RuneCountInString(overlap)
				}
			}
			current.WriteString(word)
			current.WriteString(" ")
			currentRunes += wordRunes + 1
		}
		current.WriteString("\n")
		currentRunes++
	}
	if current.Len() > 0 {
		flush()
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

func (c *TikTokenChunker) countTokens(text string) int {
	if text == "" {
		return 0
	}
	if c.encoder != nil {
		return len(c.encoder.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

func (c *TikTokenChunker) tailTokens(text string, limit int) string {
	if limit <= 0 || text == "" {
		return ""
	}
	if c.encoder != nil {
		ids := c.encoder.Encode(text, nil, nil)
		if len(ids) <= limit {
			return text + " "
		}
		return c.encoder.Decode(ids[len(ids)-limit:]) + " "
	}
	words := strings.Fields(text)
	if len(words) <= limit {
		return text + " "
	}
	return strings.Join(words[len(words)-limit:], " ") + " "
}

func splitLongWord(word string, maxRunes int) []string {
	if maxRunes <= 0 || utf8.RuneCountInString(word) <= maxRunes {
		return []string{word}
	}
	runes := []rune(word)
	var parts []string
	for i := 0; i < len(runes); i += maxRunes {
		end := i + maxRunes
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[i:end]))
	}
	return parts
}

var _ rag.Chunker = (*TikTokenChunker)(nil)
