package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-helloworld/internal/domain/rag"
)

// PostgresFileRepository persists File rows.
type PostgresFileRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresFileRepository constructs a PostgresFileRepository.
func NewPostgresFileRepository(pool *pgxpool.Pool) *PostgresFileRepository {
	return &PostgresFileRepository{pool: pool}
}

func (r *PostgresFileRepository) Create(ctx context.Context, f rag.File) (rag.File, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rag_files (id, user_id, filename, content_type, size_bytes, status, failure_reason, page_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, f.ID, f.UserID, f.Filename, f.ContentType, f.SizeBytes, string(f.Status), f.FailureReason, f.PageCount, f.CreatedAt, f.UpdatedAt)
	return f, err
}

func (r *PostgresFileRepository) GetByID(ctx context.Context, id string) (rag.File, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, filename, content_type, size_bytes, status, failure_reason, page_count, created_at, updated_at
		FROM rag_files WHERE id = $1
	`, id)
	var (
		f      rag.File
		status string
	)
	if err := row.Scan(&f.ID, &f.UserID, &f.Filename, &f.ContentType, &f.SizeBytes, &status, &f.FailureReason, &f.PageCount, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return rag.File{}, false, nil
		}
		return rag.File{}, false, err
	}
	f.Status = rag.FileStatus(status)
	return f, true, nil
}

func (r *PostgresFileRepository) UpdateStatus(ctx context.Context, id string, status rag.FileStatus, failureReason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE rag_files SET status = $1, failure_reason = $2, updated_at = NOW() WHERE id = $3
	`, string(status), failureReason, id)
	return err
}

func (r *PostgresFileRepository) UpdatePageCount(ctx context.Context, id string, pageCount int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE rag_files SET page_count = $1, updated_at = NOW() WHERE id = $2
	`, pageCount, id)
	return err
}

func (r *PostgresFileRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM rag_files WHERE id = $1`, id)
	return err
}

var _ rag.FileRepository = (*PostgresFileRepository)(nil)
