package formpipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManagerCreateLogsQueuedEvent(t *testing.T) {
	requests := newFakeRequestRepository()
	progress := &fakeProgressRepository{}
	m := NewManager(requests, progress, nil, testLogger())

	req, err := m.Create(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, req.ID)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, []string{"queued"}, progress.stages())
}

func TestManagerScheduleRejectsWhenActiveRequestExists(t *testing.T) {
	requests := newFakeRequestRepository()
	progress := &fakeProgressRepository{}
	m := NewManager(requests, progress, nil, testLogger())

	_, err := requests.Create(context.Background(), FormRequest{ID: "existing", UserID: "user-1", Status: StatusProcessing})
	require.NoError(t, err)

	_, err = m.Schedule(context.Background(), "user-1", func(ctx context.Context, req FormRequest) {})
	require.ErrorIs(t, err, ErrActiveRequestExists)
}

func TestManagerScheduleRunsTaskAndCancelWaitsForCompletion(t *testing.T) {
	requests := newFakeRequestRepository()
	progress := &fakeProgressRepository{}
	m := NewManager(requests, progress, nil, testLogger())

	started := make(chan struct{})
	finished := make(chan struct{})
	req, err := m.Schedule(context.Background(), "user-1", func(ctx context.Context, req FormRequest) {
		close(started)
		<-ctx.Done()
		close(finished)
	})
	require.NoError(t, err)

	<-started
	m.Cancel(context.Background(), req.ID)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("expected task to observe cancellation and finish")
	}
}

func TestManagerCancelUnknownRequestSetsCrossInstanceFlag(t *testing.T) {
	requests := newFakeRequestRepository()
	progress := &fakeProgressRepository{}
	cancel := newFakeCancelSignal()
	m := NewManager(requests, progress, cancel, testLogger())

	m.Cancel(context.Background(), "unknown-id")
	require.True(t, cancel.IsCancelled(context.Background(), "unknown-id"))
}

func TestManagerCleanupDeletesOlderThanCutoff(t *testing.T) {
	requests := newFakeRequestRepository()
	progress := &fakeProgressRepository{}
	m := NewManager(requests, progress, nil, testLogger())

	old := FormRequest{ID: "old", UserID: "u", Status: StatusCompleted, CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := FormRequest{ID: "fresh", UserID: "u", Status: StatusCompleted, CreatedAt: time.Now()}
	_, _ = requests.Create(context.Background(), old)
	_, _ = requests.Create(context.Background(), fresh)

	n, err := m.Cleanup(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, ok, _ := requests.GetByID(context.Background(), "old")
	require.False(t, ok)
	_, ok, _ = requests.GetByID(context.Background(), "fresh")
	require.True(t, ok)
}
