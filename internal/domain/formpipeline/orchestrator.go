package formpipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yanqian/ai-helloworld/internal/domain/rag"
)

const (
	solverConcurrency = 10
	actionBatchSize   = 10
	defaultRAGTopK    = 10
)

// OrchestratorConfig tunes the pipeline's retrieval volume. The phase-2
// and phase-3 fan-out widths are the fixed constants above.
type OrchestratorConfig struct {
	RAGTopK int
}

// Orchestrator runs Parse → Solve → Act over one FormRequest.
type Orchestrator struct {
	cfg       OrchestratorConfig
	parser    ParserAgent
	solver    SolverAgent
	actioner  ActionAgent
	retriever Retriever
	requests  RequestRepository
	progress  ProgressRepository
	actions   ActionRepository
	cancel    CancelSignal
	logger    *slog.Logger
}

// NewOrchestrator constructs an Orchestrator. cancel may be nil, in which
// case cross-instance cancellation is skipped and only ctx.Err() is checked.
func NewOrchestrator(cfg OrchestratorConfig, parser ParserAgent, solver SolverAgent, actioner ActionAgent, retriever Retriever, requests RequestRepository, progress ProgressRepository, actions ActionRepository, cancel CancelSignal, logger *slog.Logger) *Orchestrator {
	if cfg.RAGTopK <= 0 {
		cfg.RAGTopK = defaultRAGTopK
	}
	return &Orchestrator{
		cfg: cfg, parser: parser, solver: solver, actioner: actioner, retriever: retriever,
		requests: requests, progress: progress, actions: actions, cancel: cancel,
		logger: logger.With("component", "formpipeline.orchestrator"),
	}
}

// Run drives one request through all three phases. Callers wrap it in the
// RunFunc closure that Manager.Schedule executes in its own goroutine; it
// never returns an error
// across its boundary — every failure is reflected through the request's
// status and progress log.
func (o *Orchestrator) Run(ctx context.Context, req FormRequest, in AnalyzeInput) {
	in = SanitizeAnalyzeInput(in)
	o.emit(ctx, req.ID, "inputs_sanitized", "Inputs sanitized", pct(5), nil)

	if o.cancelledNow(ctx, req.ID) {
		return
	}

	profile := ProfileFor(in.Quality)

	if err := o.requests.UpdateStatus(ctx, req.ID, StatusProcessingStep1, ""); err != nil {
		o.logger.Error("update status to processing_step_1 failed", "request_id", req.ID, "err", err)
	}
	o.emit(ctx, req.ID, "parser_started", "Parsing form structure", pct(10), nil)

	questions, err := o.parser.ParseFormStructure(ctx, profile.ParserModel, in)
	if err != nil {
		o.fail(ctx, req.ID, "parser_failed", "Failed to parse form structure")
		return
	}
	questions = normalizeQuestions(questions)

	if len(questions) == 0 {
		_ = o.requests.SetFieldsDetected(ctx, req.ID, 0)
		o.emit(ctx, req.ID, "no_questions", "No form fields detected", pct(100), nil)
		o.complete(ctx, req.ID, 0)
		return
	}
	o.emit(ctx, req.ID, "parser_completed", fmt.Sprintf("Parsed %d question(s)", len(questions)), pct(40), map[string]any{"questions": len(questions)})

	if o.cancelledNow(ctx, req.ID) {
		return
	}

	if err := o.requests.UpdateStatus(ctx, req.ID, StatusProcessingStep2, ""); err != nil {
		o.logger.Error("update status to processing_step_2 failed", "request_id", req.ID, "err", err)
	}
	o.emit(ctx, req.ID, "solutions_started", "Generating solutions", pct(50), nil)

	pairs := o.solvePhase(ctx, req, in, profile, questions)
	if o.cancelledNow(ctx, req.ID) {
		return
	}

	successCount := 0
	for _, p := range pairs {
		if p.Success {
			successCount++
		}
	}
	o.emit(ctx, req.ID, "solutions_completed", fmt.Sprintf("%d/%d solutions generated", successCount, len(pairs)), pct(80), map[string]any{"total": len(pairs), "success": successCount})

	if o.cancelledNow(ctx, req.ID) {
		return
	}

	o.emit(ctx, req.ID, "actions_started", "Generating browser actions", pct(85), nil)
	rawActions, allBatchesFailed := o.actionsPhase(ctx, profile, pairs)
	if allBatchesFailed {
		o.fail(ctx, req.ID, "actions_failed", "Failed to generate actions")
		return
	}
	o.emit(ctx, req.ID, "actions_generated", fmt.Sprintf("%d raw action(s) generated", len(rawActions)), pct(90), map[string]any{"actions": len(rawActions)})

	stored := PostProcessActions(rawActions)
	if err := o.actions.SaveAll(ctx, stored); err != nil {
		o.logger.Error("save actions failed", "request_id", req.ID, "err", err)
	}
	o.emit(ctx, req.ID, "actions_saved", fmt.Sprintf("%d action(s) saved", len(stored)), nil, map[string]any{"actions": len(stored)})

	o.complete(ctx, req.ID, len(questions))
}

// solvePhase runs phase 2: one task per question under a semaphore of
// width solverConcurrency. Phase boundaries are barriers — Run does not
// proceed to phase 3 until every task here has returned or the context was
// cancelled.
func (o *Orchestrator) solvePhase(ctx context.Context, req FormRequest, in AnalyzeInput, profile ModelProfile, questions []Question) []QuestionSolution {
	n := len(questions)
	pairs := make([]QuestionSolution, n)
	sem := semaphore.NewWeighted(solverConcurrency)
	var wg sync.WaitGroup
	var completed int64

	for idx, q := range questions {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(idx int, q Question) {
			defer wg.Done()
			defer sem.Release(1)

			solution, success := o.solveOne(ctx, req, in, profile, q)
			pairs[idx] = QuestionSolution{Question: q, Solution: solution, Success: success}

			done := atomic.AddInt64(&completed, 1)
			percent := 50 + int(done)*25/n
			if percent > 75 {
				percent = 75
			}
			o.emit(ctx, req.ID, "solutions_progress", fmt.Sprintf("Solved question %d/%d", done, n), &percent, map[string]any{
				"question_number": done, "total_questions": n, "question_id": q.ID, "success": success,
			})
		}(idx, q)
	}
	wg.Wait()
	return pairs
}

func (o *Orchestrator) solveOne(ctx context.Context, req FormRequest, in AnalyzeInput, profile ModelProfile, q Question) (string, bool) {
	query := buildRetrievalQuery(q.QuestionData)
	retrieved := o.retriever.Retrieve(ctx, query, req.UserID, o.cfg.RAGTopK)
	prompt := buildSolverPrompt(in.ClipboardText, in.PersonalInstructions, retrieved, q.QuestionData)
	images := retrievalImages(retrieved)

	text, err := o.solver.Solve(ctx, profile.SolverModel, prompt, images)
	if err != nil {
		o.logger.Warn("solver failed for question", "request_id", req.ID, "question_id", q.ID, "err", err)
		return "Error: Failed to generate solution", false
	}
	return text, true
}

// actionsPhase runs phase 3: batches of actionBatchSize question/solution
// pairs, processed concurrently with no additional cap (batching itself
// bounds LLM concurrency). A batch whose agent call fails degrades to zero
// actions for that batch, matching the per-batch try/except in the
// original agent service; allBatchesFailed is true only when every batch
// failed, which is treated as a PhaseFailure.
func (o *Orchestrator) actionsPhase(ctx context.Context, profile ModelProfile, pairs []QuestionSolution) ([]RawAction, bool) {
	batches := chunkSolutions(pairs, actionBatchSize)
	if len(batches) == 0 {
		return nil, false
	}

	results := make([][]RawAction, len(batches))
	failures := make([]bool, len(batches))
	var wg sync.WaitGroup

	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []QuestionSolution) {
			defer wg.Done()
			actions, err := o.actioner.GenerateActions(ctx, profile.ActionModel, batch)
			if err != nil {
				o.logger.Error("action batch failed", "batch", i, "err", err)
				failures[i] = true
				return
			}
			results[i] = actions
		}(i, batch)
	}
	wg.Wait()

	allFailed := true
	var combined []RawAction
	for i := range batches {
		if !failures[i] {
			allFailed = false
		}
		combined = append(combined, results[i]...)
	}
	return combined, allFailed
}

func chunkSolutions(pairs []QuestionSolution, size int) [][]QuestionSolution {
	if len(pairs) == 0 {
		return nil
	}
	var batches [][]QuestionSolution
	for i := 0; i < len(pairs); i += size {
		end := i + size
		if end > len(pairs) {
			end = len(pairs)
		}
		batches = append(batches, pairs[i:end])
	}
	return batches
}

func (o *Orchestrator) fail(ctx context.Context, requestID, stage, message string) {
	if err := o.requests.UpdateStatus(ctx, requestID, StatusFailed, message); err != nil {
		o.logger.Error("update status to failed failed", "request_id", requestID, "err", err)
	}
	o.emit(ctx, requestID, stage, message, nil, nil)
	o.emit(ctx, requestID, "failed", message, nil, nil)
	o.clearCancelFlag(requestID)
}

func (o *Orchestrator) complete(ctx context.Context, requestID string, fieldsDetected int) {
	_ = o.requests.SetFieldsDetected(ctx, requestID, fieldsDetected)
	if err := o.requests.UpdateStatus(ctx, requestID, StatusCompleted, ""); err != nil {
		o.logger.Error("update status to completed failed", "request_id", requestID, "err", err)
	}
	o.emit(ctx, requestID, "completed", "Request completed", pct(100), nil)
	o.clearCancelFlag(requestID)
}

// clearCancelFlag best-effort clears the cross-instance flag once a request
// reaches a terminal state, using a background context since ctx may already
// be cancelled.
func (o *Orchestrator) clearCancelFlag(requestID string) {
	if o.cancel == nil {
		return
	}
	if err := o.cancel.Clear(context.Background(), requestID); err != nil {
		o.logger.Warn("failed to clear cancel flag", "request_id", requestID, "err", err)
	}
}

// cancelledNow checks the cooperative-cancellation suspension point: if the
// context was cancelled, it emits the cancelled stage (status is left as-is,
// per spec's "does not update status to failed unless the shutdown path
// requires it") and reports true so Run can return immediately.
func (o *Orchestrator) cancelledNow(ctx context.Context, requestID string) bool {
	if ctx.Err() == nil && !o.crossInstanceCancelled(ctx, requestID) {
		return false
	}
	o.emit(context.Background(), requestID, "cancelled", "Request cancelled", nil, nil)
	o.clearCancelFlag(requestID)
	return true
}

func (o *Orchestrator) crossInstanceCancelled(ctx context.Context, requestID string) bool {
	if o.cancel == nil {
		return false
	}
	return o.cancel.IsCancelled(ctx, requestID)
}

func (o *Orchestrator) emit(ctx context.Context, requestID, stage, message string, progress *int, payload map[string]any) {
	if err := o.progress.Log(ctx, ProgressEvent{
		RequestID: requestID,
		Stage:     stage,
		Message:   message,
		Progress:  progress,
		Payload:   payload,
		CreatedAt: time.Now(),
	}); err != nil {
		o.logger.Warn("failed to log progress event", "request_id", requestID, "stage", stage, "err", err)
	}
}

func pct(v int) *int {
	return &v
}

// RetrieverFromRAG adapts a rag.RetrievalService into the Retriever
// interface this package's orchestrator depends on, keeping formpipeline
// decoupled from the rag package's concrete result shapes.
type RetrieverFromRAG struct {
	Service *rag.RetrievalService
	TopK    int
}

func (r RetrieverFromRAG) Retrieve(ctx context.Context, query, userID string, topK int) RetrievalContext {
	if topK <= 0 {
		topK = r.TopK
	}
	result := r.Service.Retrieve(ctx, query, userID, topK)

	out := RetrievalContext{}
	for _, t := range result.TextChunks {
		out.TextChunks = append(out.TextChunks, RetrievedText{SourceLabel: t.SourceLabel, Content: t.Content})
	}
	for _, img := range result.ImageChunks {
		out.ImageChunks = append(out.ImageChunks, RetrievedImage{SourceLabel: img.SourceLabel, ImageBytes: img.ImageBytes})
	}
	return out
}
