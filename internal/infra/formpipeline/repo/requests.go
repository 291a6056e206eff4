// Package repo holds the Postgres adapters backing the form pipeline's
// persistence interfaces: form requests, their progress log, and the
// actions each one produces.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-helloworld/internal/domain/formpipeline"
)

// PostgresRequestRepository persists FormRequest rows in form_requests.
type PostgresRequestRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRequestRepository constructs the repository.
func NewPostgresRequestRepository(pool *pgxpool.Pool) *PostgresRequestRepository {
	return &PostgresRequestRepository{pool: pool}
}

func (r *PostgresRequestRepository) Create(ctx context.Context, req formpipeline.FormRequest) (formpipeline.FormRequest, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO form_requests (id, user_id, status, fields_detected, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, req.ID, req.UserID, req.Status, req.FieldsDetected, req.ErrorMessage, req.CreatedAt)
	if err != nil {
		return formpipeline.FormRequest{}, err
	}
	return req, nil
}

func (r *PostgresRequestRepository) GetByID(ctx context.Context, id string) (formpipeline.FormRequest, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, status, fields_detected, error_message, created_at, started_at, completed_at
		FROM form_requests
		WHERE id = $1
	`, id)
	return scanRequest(row)
}

// GetActiveForUser returns the most recently created non-terminal request
// for userID, matching the original's "one active request per user" check.
func (r *PostgresRequestRepository) GetActiveForUser(ctx context.Context, userID string) (formpipeline.FormRequest, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, status, fields_detected, error_message, created_at, started_at, completed_at
		FROM form_requests
		WHERE user_id = $1 AND status = ANY($2)
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, formpipeline.ActiveStatuses)
	return scanRequest(row)
}

// UpdateStatus transitions a request's status, stamping started_at the
// first time it leaves pending and completed_at when it reaches a terminal
// status (completed or failed).
func (r *PostgresRequestRepository) UpdateStatus(ctx context.Context, id string, status formpipeline.RequestStatus, errorMessage string) error {
	var errMsg *string
	if errorMessage != "" {
		errMsg = &errorMessage
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE form_requests
		SET status = $1,
			error_message = $2,
			started_at = CASE WHEN started_at IS NULL AND $1 <> $3 THEN NOW() ELSE started_at END,
			completed_at = CASE WHEN $1 IN ($4, $5) THEN NOW() ELSE completed_at END
		WHERE id = $6
	`, status, errMsg, formpipeline.StatusPending, formpipeline.StatusCompleted, formpipeline.StatusFailed, id)
	return err
}

func (r *PostgresRequestRepository) SetFieldsDetected(ctx context.Context, id string, count int) error {
	_, err := r.pool.Exec(ctx, `UPDATE form_requests SET fields_detected = $1 WHERE id = $2`, count, id)
	return err
}

func (r *PostgresRequestRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM form_requests WHERE id = $1`, id)
	return err
}

// DeleteOlderThan removes requests created before cutoff, cascading to their
// progress events and actions via the foreign keys' ON DELETE CASCADE, and
// returns how many requests were removed.
func (r *PostgresRequestRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM form_requests WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanRequest(row pgx.Row) (formpipeline.FormRequest, bool, error) {
	var req formpipeline.FormRequest
	var errMsg *string
	if err := row.Scan(&req.ID, &req.UserID, &req.Status, &req.FieldsDetected, &errMsg, &req.CreatedAt, &req.StartedAt, &req.CompletedAt); err != nil {
		if err == pgx.ErrNoRows {
			return formpipeline.FormRequest{}, false, nil
		}
		return formpipeline.FormRequest{}, false, err
	}
	if errMsg != nil {
		req.ErrorMessage = *errMsg
	}
	return req, true, nil
}

var _ formpipeline.RequestRepository = (*PostgresRequestRepository)(nil)

// PostgresProgressRepository persists the append-only progress event log in
// form_progress_events.
type PostgresProgressRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresProgressRepository constructs the repository.
func NewPostgresProgressRepository(pool *pgxpool.Pool) *PostgresProgressRepository {
	return &PostgresProgressRepository{pool: pool}
}

func (r *PostgresProgressRepository) Log(ctx context.Context, event formpipeline.ProgressEvent) error {
	var payload []byte
	if event.Payload != nil {
		var err error
		payload, err = json.Marshal(event.Payload)
		if err != nil {
			return err
		}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO form_progress_events (request_id, stage, message, progress, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.RequestID, event.Stage, event.Message, event.Progress, payload, event.CreatedAt)
	return err
}

// List returns every progress event for requestID in emission order, so
// pollers (or an SSE bridge) can replay the timeline from the start.
func (r *PostgresProgressRepository) List(ctx context.Context, requestID string) ([]formpipeline.ProgressEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, stage, message, progress, payload, created_at
		FROM form_progress_events
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []formpipeline.ProgressEvent
	for rows.Next() {
		var ev formpipeline.ProgressEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.RequestID, &ev.Stage, &ev.Message, &ev.Progress, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				return nil, err
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

var _ formpipeline.ProgressRepository = (*PostgresProgressRepository)(nil)
