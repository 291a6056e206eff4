package formpipeline

import (
	"context"
	"sync"
	"time"
)

// fakeRequestRepository is an in-memory RequestRepository test double.
type fakeRequestRepository struct {
	mu       sync.Mutex
	byID     map[string]FormRequest
	activeFn func(userID string) (FormRequest, bool, error)
}

func newFakeRequestRepository() *fakeRequestRepository {
	return &fakeRequestRepository{byID: make(map[string]FormRequest)}
}

func (f *fakeRequestRepository) Create(ctx context.Context, r FormRequest) (FormRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[r.ID] = r
	return r, nil
}

func (f *fakeRequestRepository) GetByID(ctx context.Context, id string) (FormRequest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	return r, ok, nil
}

func (f *fakeRequestRepository) GetActiveForUser(ctx context.Context, userID string) (FormRequest, bool, error) {
	if f.activeFn != nil {
		return f.activeFn(userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.byID {
		if r.UserID != userID {
			continue
		}
		for _, s := range ActiveStatuses {
			if r.Status == s {
				return r, true, nil
			}
		}
	}
	return FormRequest{}, false, nil
}

func (f *fakeRequestRepository) UpdateStatus(ctx context.Context, id string, status RequestStatus, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.byID[id]
	r.Status = status
	r.ErrorMessage = errorMessage
	f.byID[id] = r
	return nil
}

func (f *fakeRequestRepository) SetFieldsDetected(ctx context.Context, id string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.byID[id]
	r.FieldsDetected = count
	f.byID[id] = r
	return nil
}

func (f *fakeRequestRepository) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

func (f *fakeRequestRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, r := range f.byID {
		if r.CreatedAt.Before(cutoff) {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeRequestRepository) status(id string) RequestStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Status
}

// fakeProgressRepository is an in-memory ProgressRepository test double.
type fakeProgressRepository struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (f *fakeProgressRepository) Log(ctx context.Context, event ProgressEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeProgressRepository) List(ctx context.Context, requestID string) ([]ProgressEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ProgressEvent
	for _, e := range f.events {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeProgressRepository) stages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Stage
	}
	return out
}

// fakeActionRepository is an in-memory ActionRepository test double.
type fakeActionRepository struct {
	mu      sync.Mutex
	saved   []FormAction
	saveErr error
}

func (f *fakeActionRepository) SaveAll(ctx context.Context, actions []FormAction) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, actions...)
	return nil
}

func (f *fakeActionRepository) GetByRequest(ctx context.Context, requestID string) ([]FormAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []FormAction
	for _, a := range f.saved {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeParserAgent returns a fixed question list or error.
type fakeParserAgent struct {
	questions []Question
	err       error
}

func (f *fakeParserAgent) ParseFormStructure(ctx context.Context, model string, in AnalyzeInput) ([]Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

// fakeSolverAgent returns a fixed answer per call ("answer" when none is
// set) and never fails; failOnly is not consulted.
type fakeSolverAgent struct {
	mu       sync.Mutex
	calls    int
	failOnly map[string]bool
	answer   string
}

func (f *fakeSolverAgent) Solve(ctx context.Context, model, prompt string, images [][]byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.answer == "" {
		return "answer", nil
	}
	return f.answer, nil
}

// fakeActionAgent returns one FillText action per question/solution pair in
// the batch, or an error when failAlways is set.
type fakeActionAgent struct {
	mu         sync.Mutex
	calls      int
	failAlways bool
}

func (f *fakeActionAgent) GenerateActions(ctx context.Context, model string, batch []QuestionSolution) ([]RawAction, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failAlways {
		return nil, errFakeActionFailure
	}
	out := make([]RawAction, 0, len(batch))
	for _, p := range batch {
		out = append(out, RawAction{ActionType: "fillText", Selector: p.Question.InteractionData.PrimarySelector, Value: p.Solution})
	}
	return out, nil
}

var errFakeActionFailure = &fakeError{"action generation failed"}

type fakeError struct{ msg string }

func (e *fakeError) Error() string { return e.msg }

// fakeRetriever returns a fixed RetrievalContext regardless of query.
type fakeRetriever struct {
	ctx RetrievalContext
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query, userID string, topK int) RetrievalContext {
	return f.ctx
}

// fakeCancelSignal is an in-memory CancelSignal test double.
type fakeCancelSignal struct {
	mu        sync.Mutex
	cancelled map[string]bool
}

func newFakeCancelSignal() *fakeCancelSignal {
	return &fakeCancelSignal{cancelled: make(map[string]bool)}
}

func (f *fakeCancelSignal) Request(ctx context.Context, requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled[requestID] = true
	return nil
}

func (f *fakeCancelSignal) IsCancelled(ctx context.Context, requestID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[requestID]
}

func (f *fakeCancelSignal) Clear(ctx context.Context, requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cancelled, requestID)
	return nil
}
