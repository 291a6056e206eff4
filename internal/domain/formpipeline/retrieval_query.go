package formpipeline

import "strings"

const maxQueryOptions = 10

// buildRetrievalQuery composes a semantic RAG search query from a
// question's question_data: rag_context first (section headers, topics),
// then the question text, then up to 10 available options, all trimmed and
// space-joined. Falls back to a fixed literal when nothing survives.
func buildRetrievalQuery(q QuestionData) string {
	var phrases []string
	addText := func(s string) {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			phrases = append(phrases, trimmed)
		}
	}

	addText(q.RAGContext)
	addText(q.Question)

	options := q.AvailableOptions
	if len(options) > maxQueryOptions {
		options = options[:maxQueryOptions]
	}
	for _, opt := range options {
		addText(opt)
	}

	query := strings.TrimSpace(strings.Join(phrases, " "))
	if query == "" {
		return "form question context"
	}
	return query
}
