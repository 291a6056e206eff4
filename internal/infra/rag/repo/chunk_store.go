// Package repo persists chunks, files, and the two vector collections in
// Postgres using pgx and pgvector.
package repo

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-helloworld/internal/domain/rag"
)

// PostgresChunkRepository stores durable metadata and raw image bytes for
// every chunk, keyed by chunk id.
type PostgresChunkRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresChunkRepository constructs a PostgresChunkRepository.
func NewPostgresChunkRepository(pool *pgxpool.Pool, logger *slog.Logger) *PostgresChunkRepository {
	return &PostgresChunkRepository{pool: pool, logger: logger.With("component", "rag.repo.chunks")}
}

func (r *PostgresChunkRepository) InsertBatch(ctx context.Context, chunks []rag.DocumentChunk) error {
	batch := &pgx.Batch{}
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO rag_document_chunks (id, file_id, user_id, chunk_index, chunk_type, content, raw_content, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		`, c.ID, c.FileID, c.UserID, c.ChunkIndex, string(c.ChunkType), c.Content, c.RawContent, metadata)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// GetByIDs looks up chunks by id. Callers must tolerate fewer rows coming
// back than ids requested (e.g. after a concurrent delete); this is logged
// as potential integrity drift, not returned as an error.
func (r *PostgresChunkRepository) GetByIDs(ctx context.Context, ids []string) ([]rag.DocumentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, file_id, user_id, chunk_index, chunk_type, content, raw_content, metadata, created_at
		FROM rag_document_chunks
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	if len(chunks) != len(ids) {
		r.logger.Warn("chunk lookup returned fewer rows than requested", "requested", len(ids), "found", len(chunks))
	}
	return chunks, nil
}

func (r *PostgresChunkRepository) GetByFile(ctx context.Context, fileID string) ([]rag.DocumentChunk, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, file_id, user_id, chunk_index, chunk_type, content, raw_content, metadata, created_at
		FROM rag_document_chunks
		WHERE file_id = $1
		ORDER BY chunk_index ASC
	`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (r *PostgresChunkRepository) DeleteByFile(ctx context.Context, fileID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM rag_document_chunks WHERE file_id = $1`, fileID)
	return err
}

func scanChunks(rows pgx.Rows) ([]rag.DocumentChunk, error) {
	var chunks []rag.DocumentChunk
	for rows.Next() {
		var (
			c        rag.DocumentChunk
			typeStr  string
			metadata []byte
		)
		if err := rows.Scan(&c.ID, &c.FileID, &c.UserID, &c.ChunkIndex, &typeStr, &c.Content, &c.RawContent, &metadata, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ChunkType = rag.ChunkType(typeStr)
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &c.Metadata)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

var _ rag.ChunkRepository = (*PostgresChunkRepository)(nil)
