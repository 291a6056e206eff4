package formpipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	maxContextExcerpts = 5
	maxExcerptChars    = 500
)

// buildDocumentContextSection formats retrieved chunks into the solver
// prompt's "Document Context" block, following agent_service.py's
// context_info assembly: up to 5 text excerpts (each truncated to 500
// chars, prefixed by source label) plus a note when images were retrieved.
func buildDocumentContextSection(ctx RetrievalContext) string {
	var lines []string

	if len(ctx.TextChunks) > 0 {
		lines = append(lines, fmt.Sprintf("Retrieved %d relevant text sections from your documents:", len(ctx.TextChunks)))
		excerpts := ctx.TextChunks
		if len(excerpts) > maxContextExcerpts {
			excerpts = excerpts[:maxContextExcerpts]
		}
		for i, chunk := range excerpts {
			content := chunk.Content
			if len(content) > maxExcerptChars {
				content = content[:maxExcerptChars]
			}
			lines = append(lines, fmt.Sprintf("%d. From %s:\n%s\n", i+1, chunk.SourceLabel, content))
		}
	}

	if len(ctx.ImageChunks) > 0 {
		lines = append(lines, fmt.Sprintf("Retrieved %d relevant image(s) from your documents (shown below).", len(ctx.ImageChunks)))
	}

	if len(lines) == 0 {
		return "No relevant context retrieved from documents."
	}
	return strings.Join(lines, "\n")
}

// buildSolverPrompt assembles the phase-2 solver prompt in a fixed order:
// session instructions, personal instructions, document context, then the
// question's question_data as JSON.
func buildSolverPrompt(clipboardText, personalInstructions string, ctx RetrievalContext, qd QuestionData) string {
	clip := clipboardText
	if strings.TrimSpace(clip) == "" {
		clip = "No session instructions provided"
	}
	instructions := personalInstructions
	if strings.TrimSpace(instructions) == "" {
		instructions = "No personal instructions provided."
	}

	questionJSON, _ := json.MarshalIndent(qd, "", "  ")

	return fmt.Sprintf(`Analyze the following form question and provide an appropriate solution/answer.

Session Instructions (highest priority):
%s

Personal Instructions:
%s

Document Context:
%s

----------------------------------------

Form Question:
`+"```json\n%s\n```"+`

Provide only the solution/answer as plain text. Do not include explanations unless necessary.
`, clip, instructions, buildDocumentContextSection(ctx), string(questionJSON))
}

// retrievalImages flattens a RetrievalContext's image chunks into a plain
// byte-slice list for attachment to the solver call.
func retrievalImages(ctx RetrievalContext) [][]byte {
	if len(ctx.ImageChunks) == 0 {
		return nil
	}
	images := make([][]byte, 0, len(ctx.ImageChunks))
	for _, img := range ctx.ImageChunks {
		images = append(images, img.ImageBytes)
	}
	return images
}
