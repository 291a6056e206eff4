package formpipeline

import (
	"context"
	"time"
)

// RequestRepository persists FormRequest rows.
type RequestRepository interface {
	Create(ctx context.Context, r FormRequest) (FormRequest, error)
	GetByID(ctx context.Context, id string) (FormRequest, bool, error)
	GetActiveForUser(ctx context.Context, userID string) (FormRequest, bool, error)
	UpdateStatus(ctx context.Context, id string, status RequestStatus, errorMessage string) error
	SetFieldsDetected(ctx context.Context, id string, count int) error
	Delete(ctx context.Context, id string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// ProgressRepository persists the append-only progress event log.
type ProgressRepository interface {
	Log(ctx context.Context, event ProgressEvent) error
	List(ctx context.Context, requestID string) ([]ProgressEvent, error)
}

// ActionRepository persists FormAction rows.
type ActionRepository interface {
	SaveAll(ctx context.Context, actions []FormAction) error
	GetByRequest(ctx context.Context, requestID string) ([]FormAction, error)
}

// ParserAgent runs phase 1: structured extraction of form questions.
type ParserAgent interface {
	ParseFormStructure(ctx context.Context, model string, in AnalyzeInput) ([]Question, error)
}

// SolverAgent runs phase 2: one unstructured call per question.
type SolverAgent interface {
	Solve(ctx context.Context, model string, prompt string, images [][]byte) (string, error)
}

// ActionAgent runs phase 3: structured conversion of a batch of
// question/solution pairs into raw actions.
type ActionAgent interface {
	GenerateActions(ctx context.Context, model string, batch []QuestionSolution) ([]RawAction, error)
}

// RetrievalContext is what retrieval hands back to the solver prompt builder.
type RetrievalContext struct {
	TextChunks  []RetrievedText
	ImageChunks []RetrievedImage
}

// RetrievedText is one text-collection hit formatted for prompt assembly.
type RetrievedText struct {
	SourceLabel string
	Content     string
}

// RetrievedImage is one image-collection hit formatted for prompt assembly.
type RetrievedImage struct {
	SourceLabel string
	ImageBytes  []byte
}

// Retriever abstracts document retrieval for the orchestrator.
type Retriever interface {
	Retrieve(ctx context.Context, query, userID string, topK int) RetrievalContext
}

// ProgressCallback is invoked as phase 2 completes each question.
type ProgressCallback func(ctx context.Context, questionNumber, totalQuestions int, questionID string, success bool)

// CancelSignal is the cross-instance half of cooperative cancellation: the
// instance running a request's goroutine may differ from the instance that
// receives the cancel HTTP call, so the orchestrator polls this alongside
// ctx.Err() at each phase boundary of a run. A nil CancelSignal (single-instance
// deployments) makes that check a no-op.
type CancelSignal interface {
	Request(ctx context.Context, requestID string) error
	IsCancelled(ctx context.Context, requestID string) bool
	Clear(ctx context.Context, requestID string) error
}
