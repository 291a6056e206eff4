package formpipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrActiveRequestExists is returned by Schedule when the user already has a
// non-terminal request (admission conflict).
var ErrActiveRequestExists = errors.New("an active form request already exists for this user")

// RunFunc is the orchestrator entry point a scheduled task executes.
type RunFunc func(ctx context.Context, req FormRequest)

type taskHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns the FormRequest lifecycle: create/advance/terminate records,
// admission control, cooperative cancellation via an in-process task
// registry, and periodic reaping of old records.
type Manager struct {
	requests RequestRepository
	progress ProgressRepository
	cancel   CancelSignal
	tasks    sync.Map // request id -> *taskHandle
	logger   *slog.Logger
}

// NewManager constructs a Manager. cancel may be nil in single-instance
// deployments, where the in-process task registry alone is sufficient.
func NewManager(requests RequestRepository, progress ProgressRepository, cancel CancelSignal, logger *slog.Logger) *Manager {
	return &Manager{requests: requests, progress: progress, cancel: cancel, logger: logger.With("component", "formpipeline.lifecycle")}
}

// Create assigns a uuid, sets status pending, and writes the first progress
// event.
func (m *Manager) Create(ctx context.Context, userID string) (FormRequest, error) {
	req := FormRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	req, err := m.requests.Create(ctx, req)
	if err != nil {
		return FormRequest{}, err
	}
	progressPct := 0
	if err := m.progress.Log(ctx, ProgressEvent{
		RequestID: req.ID,
		Stage:     "queued",
		Message:   "Request received and queued for processing",
		Progress:  &progressPct,
		CreatedAt: time.Now(),
	}); err != nil {
		m.logger.Warn("failed to log queued progress event", "request_id", req.ID, "err", err)
	}
	return req, nil
}

// Schedule enforces the one-active-request-per-user rule, creates the
// request, registers its cancellation handle, and launches run in its own
// goroutine under a cancellable context.
func (m *Manager) Schedule(ctx context.Context, userID string, run RunFunc) (FormRequest, error) {
	if _, exists, err := m.requests.GetActiveForUser(ctx, userID); err != nil {
		return FormRequest{}, err
	} else if exists {
		return FormRequest{}, ErrActiveRequestExists
	}

	req, err := m.Create(ctx, userID)
	if err != nil {
		return FormRequest{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	handle := &taskHandle{cancel: cancel, done: make(chan struct{})}
	m.tasks.Store(req.ID, handle)

	go func() {
		defer close(handle.done)
		defer m.tasks.Delete(req.ID)
		run(runCtx, req)
	}()

	return req, nil
}

// GetActive returns the most recent non-terminal request owned by userID.
func (m *Manager) GetActive(ctx context.Context, userID string) (FormRequest, bool, error) {
	return m.requests.GetActiveForUser(ctx, userID)
}

// Cancel signals cancellation to a running task. If the task is owned by
// this instance it waits for the local goroutine to terminate; otherwise it
// sets the cross-instance flag (if configured) so the owning instance picks
// it up at the next phase boundary of its run. Safe to call on a finished or unknown
// request id.
func (m *Manager) Cancel(ctx context.Context, requestID string) {
	v, ok := m.tasks.Load(requestID)
	if !ok {
		if m.cancel != nil {
			if err := m.cancel.Request(ctx, requestID); err != nil {
				m.logger.Warn("failed to set cross-instance cancel flag", "request_id", requestID, "err", err)
			}
		}
		return
	}
	handle := v.(*taskHandle)
	handle.cancel()
	<-handle.done
}

// Cleanup deletes requests older than the given age (cascading progress and
// actions in the backing store), returning the number removed. Intended to
// run on a daily schedule.
func (m *Manager) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	return m.requests.DeleteOlderThan(ctx, cutoff)
}
