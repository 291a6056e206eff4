package formpipeline

import (
	"fmt"
	"regexp"
	"strings"
)

var runsOfWhitespace = regexp.MustCompile(`[ \t]+`)

// normalizeQuestions trims labels, collapses internal whitespace runs in
// inline labels (but preserves paragraph breaks in multi-line
// descriptions), and synthesizes a stable group id for any question
// missing one.
func normalizeQuestions(questions []Question) []Question {
	out := make([]Question, len(questions))
	counter := 0
	for i, q := range questions {
		q.QuestionData.Question = normalizeInlineLabel(q.QuestionData.Question)
		q.QuestionData.RAGContext = normalizeInlineLabel(q.QuestionData.RAGContext)
		q.QuestionData.SolvingHint = normalizeMultilineDescription(q.QuestionData.SolvingHint)
		for j, opt := range q.QuestionData.AvailableOptions {
			q.QuestionData.AvailableOptions[j] = normalizeInlineLabel(opt)
		}

		if strings.TrimSpace(q.GroupID) == "" {
			if sel := strings.TrimSpace(q.InteractionData.PrimarySelector); sel != "" {
				q.GroupID = sel
			} else {
				q.GroupID = fmt.Sprintf("question-%d", counter)
				counter++
			}
		}
		out[i] = q
	}
	return out
}

// normalizeInlineLabel trims whitespace and collapses internal runs of
// spaces/tabs, but leaves newlines alone (labels may legitimately be built
// from multiple concatenated DOM text nodes).
func normalizeInlineLabel(s string) string {
	return strings.TrimSpace(runsOfWhitespace.ReplaceAllString(s, " "))
}

// normalizeMultilineDescription trims and collapses horizontal whitespace
// per line while preserving paragraph breaks (blank lines).
func normalizeMultilineDescription(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = normalizeInlineLabel(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
