package agent

import "context"

// CompletionResult is one model turn: either a final text response, or an
// escalation signal meaning the model declined to answer.
type CompletionResult struct {
	Text      string
	Escalated bool
	Reason    string
}

// ChatTransport performs a single model call. Implementations adapt a
// concrete LLM client (chat-completion, multimodal, or otherwise) behind
// this contract; Runner never talks to a provider directly.
type ChatTransport interface {
	Complete(ctx context.Context, model string, parts []PromptPart) (CompletionResult, error)
}

// JSONRepairer attempts to fix malformed JSON text into parseable JSON.
type JSONRepairer interface {
	Repair(malformed string) (string, error)
}

// SchemaValidator validates a decoded JSON value against a named schema.
type SchemaValidator interface {
	Validate(schemaName string, value any) error
}
