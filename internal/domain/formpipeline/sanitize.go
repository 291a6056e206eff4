package formpipeline

import (
	"regexp"
	"strings"
)

var runOfBlankLines = regexp.MustCompile(`\n{3,}`)

// sanitizeText normalizes raw HTML, visible page text, and clipboard text:
// CRLF→LF, tabs/form-feeds→space, runs of 3+ newlines collapsed to 2, then
// trimmed.
func sanitizeText(s string) string {
	s = normalizeLineEndingsAndWhitespace(s)
	s = runOfBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// sanitizePersonalInstructions applies the same line-ending and whitespace
// normalization but preserves newlines as given — personal instructions are
// often structured as a list and their paragraph breaks are meaningful.
func sanitizePersonalInstructions(s string) string {
	return strings.TrimSpace(normalizeLineEndingsAndWhitespace(s))
}

func normalizeLineEndingsAndWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\f", " ")
	return s
}

// SanitizeAnalyzeInput normalizes every free-text field of a raw request
// body before it reaches phase 1.
func SanitizeAnalyzeInput(in AnalyzeInput) AnalyzeInput {
	in.HTML = sanitizeText(in.HTML)
	in.VisibleText = sanitizeText(in.VisibleText)
	in.ClipboardText = sanitizeText(in.ClipboardText)
	in.PersonalInstructions = sanitizePersonalInstructions(in.PersonalInstructions)
	return in
}
