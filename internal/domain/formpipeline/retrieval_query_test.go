package formpipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildRetrievalQueryOrdersAndLimitsOptions(t *testing.T) {
	options := make([]string, 15)
	for i := range options {
		options[i] = strings.Repeat("x", 1) + string(rune('a'+i))
	}
	qd := QuestionData{
		RAGContext:       "Personal Details",
		Question:         "What is your nationality?",
		AvailableOptions: options,
	}

	query := buildRetrievalQuery(qd)
	require.True(t, strings.HasPrefix(query, "Personal Details What is your nationality?"))

	for _, opt := range options[:10] {
		require.Contains(t, query, opt)
	}
	for _, opt := range options[10:] {
		require.NotContains(t, query, opt)
	}
}

func TestBuildRetrievalQueryFallsBackWhenEmpty(t *testing.T) {
	require.Equal(t, "form question context", buildRetrievalQuery(QuestionData{}))
}

func TestBuildRetrievalQueryTrimsWhitespace(t *testing.T) {
	qd := QuestionData{Question: "   Your age?   "}
	require.Equal(t, "Your age?", buildRetrievalQuery(qd))
}
