package formpipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeAnalyzeInputNormalizesWhitespace(t *testing.T) {
	in := AnalyzeInput{
		HTML:                 "line1\r\nline2\r\tline3\n\n\n\nline4   ",
		VisibleText:          "a\fb",
		ClipboardText:        "  keep me  ",
		PersonalInstructions: "step 1\n\nstep 2\t\tindented",
	}

	out := SanitizeAnalyzeInput(in)

	require.Equal(t, "line1\nline2\n line3\n\nline4", out.HTML)
	require.Equal(t, "a b", out.VisibleText)
	require.Equal(t, "keep me", out.ClipboardText)
	require.Equal(t, "step 1\n\nstep 2  indented", out.PersonalInstructions)
}

func TestSanitizeAnalyzeInputCollapsesLongBlankRuns(t *testing.T) {
	in := AnalyzeInput{HTML: "a\n\n\n\n\n\nb"}
	out := SanitizeAnalyzeInput(in)
	require.Equal(t, "a\n\nb", out.HTML)
}
