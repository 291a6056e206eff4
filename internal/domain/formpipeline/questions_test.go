package formpipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeQuestionsCollapsesInlineWhitespace(t *testing.T) {
	questions := []Question{
		{
			ID: "q1",
			QuestionData: QuestionData{
				Question:         "  What   is\tyour    name?  ",
				RAGContext:       "Section  1",
				SolvingHint:      "Line one\n\n  Line   two  ",
				AvailableOptions: []string{"  Yes  ", "No   thanks"},
			},
		},
	}

	out := normalizeQuestions(questions)
	require.Len(t, out, 1)
	require.Equal(t, "What is your name?", out[0].QuestionData.Question)
	require.Equal(t, "Section 1", out[0].QuestionData.RAGContext)
	require.Equal(t, "Line one\n\nLine two", out[0].QuestionData.SolvingHint)
	require.Equal(t, []string{"Yes", "No thanks"}, out[0].QuestionData.AvailableOptions)
}

func TestNormalizeQuestionsSynthesizesGroupID(t *testing.T) {
	questions := []Question{
		{ID: "a", InteractionData: InteractionData{PrimarySelector: "#field-a"}},
		{ID: "b"},
		{ID: "c"},
	}

	out := normalizeQuestions(questions)
	require.Equal(t, "#field-a", out[0].GroupID)
	require.Equal(t, "question-0", out[1].GroupID)
	require.Equal(t, "question-1", out[2].GroupID)
}

func TestNormalizeQuestionsPreservesExistingGroupID(t *testing.T) {
	questions := []Question{{ID: "a", GroupID: "existing-group"}}
	out := normalizeQuestions(questions)
	require.Equal(t, "existing-group", out[0].GroupID)
}
