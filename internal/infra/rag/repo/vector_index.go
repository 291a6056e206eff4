package repo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/ai-helloworld/internal/domain/rag"
)

// placeholderCaption is embedded for IMAGE chunks whose OCR caption is
// empty, so the text collection always has something to embed.
const placeholderCaption = "[image with no recognizable text]"

// TextVectorIndex implements rag.TextIndex: one vector per chunk (TEXT
// content or IMAGE OCR caption), stored in a pgvector column.
type TextVectorIndex struct {
	pool     *pgxpool.Pool
	embedder rag.TextEmbedder
	logger   *slog.Logger
}

// NewTextVectorIndex constructs a TextVectorIndex.
func NewTextVectorIndex(pool *pgxpool.Pool, embedder rag.TextEmbedder, logger *slog.Logger) *TextVectorIndex {
	return &TextVectorIndex{pool: pool, embedder: embedder, logger: logger.With("component", "rag.repo.textindex")}
}

func (idx *TextVectorIndex) Upsert(ctx context.Context, chunks []rag.DocumentChunk) error {
	for _, c := range chunks {
		text := c.Content
		if strings.TrimSpace(text) == "" {
			text = placeholderCaption
		}
		vec, err := idx.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		_, err = idx.pool.Exec(ctx, `
			INSERT INTO rag_text_index (chunk_id, user_id, file_id, chunk_type, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (chunk_id) DO UPDATE SET embedding = EXCLUDED.embedding
		`, c.ID, c.UserID, c.FileID, string(c.ChunkType), pgvector.NewVector(vec))
		if err != nil {
			return fmt.Errorf("upsert text index row %s: %w", c.ID, err)
		}
	}
	return nil
}

func (idx *TextVectorIndex) Search(ctx context.Context, query, userID string, topK int, fileIDs []string) ([]rag.SearchHit, error) {
	vec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	sql := `
		SELECT chunk_id, (1.0 / (1.0 + (embedding <-> $1))) AS score
		FROM rag_text_index
		WHERE user_id = $2
	`
	args := []any{pgvector.NewVector(vec), userID}
	if len(fileIDs) > 0 {
		sql += ` AND file_id = ANY($3)`
		args = append(args, fileIDs)
	}
	sql += ` ORDER BY (embedding <-> $1) ASC LIMIT ` + strconv.Itoa(topK)

	rows, err := idx.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []rag.SearchHit
	for rows.Next() {
		var h rag.SearchHit
		if err := rows.Scan(&h.ChunkID, &h.Similarity); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (idx *TextVectorIndex) DeleteByFile(ctx context.Context, fileID string) error {
	_, err := idx.pool.Exec(ctx, `DELETE FROM rag_text_index WHERE file_id = $1`, fileID)
	return err
}

var _ rag.TextIndex = (*TextVectorIndex)(nil)

// ImageVectorIndex implements rag.ImageIndex: one vector per IMAGE chunk,
// produced by a multimodal embedder. A nil embedder degrades every
// operation to a no-op, since image embedding is optional at runtime.
type ImageVectorIndex struct {
	pool     *pgxpool.Pool
	embedder rag.ImageEmbedder
	logger   *slog.Logger
}

// NewImageVectorIndex constructs an ImageVectorIndex. embedder may be nil.
func NewImageVectorIndex(pool *pgxpool.Pool, embedder rag.ImageEmbedder, logger *slog.Logger) *ImageVectorIndex {
	return &ImageVectorIndex{pool: pool, embedder: embedder, logger: logger.With("component", "rag.repo.imageindex")}
}

func (idx *ImageVectorIndex) Upsert(ctx context.Context, chunks []rag.DocumentChunk) error {
	if idx.embedder == nil {
		return nil
	}
	for _, c := range chunks {
		if c.ChunkType != rag.ChunkTypeImage {
			continue
		}
		vec, err := idx.embedder.EmbedImage(ctx, c.RawContent)
		if err != nil {
			idx.logger.Warn("image embed failed, skipping visual index row", "chunk_id", c.ID, "err", err)
			continue
		}
		_, err = idx.pool.Exec(ctx, `
			INSERT INTO rag_image_index (chunk_id, user_id, file_id, embedding)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (chunk_id) DO UPDATE SET embedding = EXCLUDED.embedding
		`, c.ID, c.UserID, c.FileID, pgvector.NewVector(vec))
		if err != nil {
			return fmt.Errorf("upsert image index row %s: %w", c.ID, err)
		}
	}
	return nil
}

func (idx *ImageVectorIndex) Search(ctx context.Context, query, userID string, topK int, fileIDs []string) ([]rag.SearchHit, error) {
	if idx.embedder == nil {
		return nil, nil
	}
	vec, err := idx.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query in image space: %w", err)
	}

	sql := `
		SELECT chunk_id, (1.0 / (1.0 + (embedding <-> $1))) AS score
		FROM rag_image_index
		WHERE user_id = $2
	`
	args := []any{pgvector.NewVector(vec), userID}
	if len(fileIDs) > 0 {
		sql += ` AND file_id = ANY($3)`
		args = append(args, fileIDs)
	}
	sql += ` ORDER BY (embedding <-> $1) ASC LIMIT ` + strconv.Itoa(topK)

	rows, err := idx.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []rag.SearchHit
	for rows.Next() {
		var h rag.SearchHit
		if err := rows.Scan(&h.ChunkID, &h.Similarity); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (idx *ImageVectorIndex) DeleteByFile(ctx context.Context, fileID string) error {
	_, err := idx.pool.Exec(ctx, `DELETE FROM rag_image_index WHERE file_id = $1`, fileID)
	return err
}

var _ rag.ImageIndex = (*ImageVectorIndex)(nil)
