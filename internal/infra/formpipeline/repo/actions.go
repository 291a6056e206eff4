package repo

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-helloworld/internal/domain/formpipeline"
)

// PostgresActionRepository persists FormAction rows in form_actions.
type PostgresActionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresActionRepository constructs the repository.
func NewPostgresActionRepository(pool *pgxpool.Pool) *PostgresActionRepository {
	return &PostgresActionRepository{pool: pool}
}

// SaveAll replaces requestID's action list atomically: phase 3 produces the
// full ordered set in one shot, so a stale partial set from a retried run
// must never linger alongside the new one.
func (r *PostgresActionRepository) SaveAll(ctx context.Context, actions []formpipeline.FormAction) error {
	if len(actions) == 0 {
		return nil
	}
	requestID := actions[0].RequestID

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM form_actions WHERE request_id = $1`, requestID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, a := range actions {
		value, err := json.Marshal(a.Value)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO form_actions (request_id, action_type, selector, value, label, question, order_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, a.RequestID, a.ActionType, a.Selector, value, a.Label, a.Question, a.OrderIndex)
	}
	br := tx.SendBatch(ctx, batch)
	for range actions {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PostgresActionRepository) GetByRequest(ctx context.Context, requestID string) ([]formpipeline.FormAction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT request_id, action_type, selector, value, label, question, order_index
		FROM form_actions
		WHERE request_id = $1
		ORDER BY order_index ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []formpipeline.FormAction
	for rows.Next() {
		var a formpipeline.FormAction
		var value []byte
		if err := rows.Scan(&a.RequestID, &a.ActionType, &a.Selector, &value, &a.Label, &a.Question, &a.OrderIndex); err != nil {
			return nil, err
		}
		if len(value) > 0 {
			if err := json.Unmarshal(value, &a.Value); err != nil {
				return nil, err
			}
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

var _ formpipeline.ActionRepository = (*PostgresActionRepository)(nil)
