// Package agent implements the LLM agent runner: a uniform retry/repair
// contract wrapped around a single model call, with structured and
// unstructured variants the orchestrator builds on.
package agent

// PromptPart is one piece of a prompt: text, an inline PDF, or an inline
// image. Order is preserved when assembled into the underlying transport
// call.
type PromptPart struct {
	Text       string
	PDFBytes   []byte
	ImageBytes []byte
}

// Text builds a single-part text-only prompt, the common case.
func Text(s string) []PromptPart {
	return []PromptPart{{Text: s}}
}

// RunStatus is the outcome of a Runner invocation.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusError   RunStatus = "error"
)

// StructuredResult is returned by Runner.RunStructured.
type StructuredResult struct {
	Status RunStatus
	// Output is the parsed JSON value: schema-validated when validation
	// succeeds, the raw parsed value when validation fails but parsing
	// did not (spec's "fall back to the raw parsed JSON" rule).
	Output  map[string]any
	Message string
}

// UnstructuredResult is returned by Runner.RunUnstructured.
type UnstructuredResult struct {
	Status  RunStatus
	Text    string
	Message string
}
