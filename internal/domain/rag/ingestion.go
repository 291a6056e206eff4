package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MaxFileSizeBytes is the upload size limit.
const MaxFileSizeBytes = 200 * 1024 * 1024

// AllowedContentTypes is the upload content-type whitelist.
var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// IngestionService handles the "upload → ingest" half of the file
// boundary: validate, persist the blob and a File row, then run the
// document processor and index the resulting chunks in the background
// (storage + repo + processor glued behind one entry point, background
// work handed off in a goroutine).
type IngestionService struct {
	storage    ObjectStorage
	files      FileRepository
	chunks     ChunkRepository
	textIndex  TextIndex
	imageIndex ImageIndex
	processor  *DocumentProcessor
	logger     *slog.Logger
}

// NewIngestionService constructs an IngestionService.
func NewIngestionService(storage ObjectStorage, files FileRepository, chunks ChunkRepository, textIndex TextIndex, imageIndex ImageIndex, processor *DocumentProcessor, logger *slog.Logger) *IngestionService {
	return &IngestionService{
		storage: storage, files: files, chunks: chunks,
		textIndex: textIndex, imageIndex: imageIndex, processor: processor,
		logger: logger.With("component", "rag.ingestion"),
	}
}

// Upload validates, stores the blob, creates the File row, and launches
// ingestion in its own goroutine so the HTTP call returns immediately.
func (s *IngestionService) Upload(ctx context.Context, userID, filename, contentType string, data []byte) (File, error) {
	if !AllowedContentTypes[contentType] {
		return File{}, fmt.Errorf("%w: unsupported content type %q", ErrUnsupportedFormat, contentType)
	}
	if len(data) == 0 {
		return File{}, fmt.Errorf("rag: empty file upload")
	}
	if int64(len(data)) > MaxFileSizeBytes {
		return File{}, fmt.Errorf("rag: file exceeds %d byte limit", MaxFileSizeBytes)
	}

	id := uuid.NewString()
	if _, err := s.storage.Put(ctx, id, data, contentType); err != nil {
		return File{}, fmt.Errorf("store file: %w", err)
	}

	now := time.Now()
	file := File{
		ID: id, UserID: userID, Filename: filename, ContentType: contentType,
		SizeBytes: int64(len(data)), Status: FileStatusPending,
		CreatedAt: now, UpdatedAt: now,
	}
	file, err := s.files.Create(ctx, file)
	if err != nil {
		return File{}, fmt.Errorf("create file record: %w", err)
	}

	go s.ingest(context.Background(), file, data)

	return file, nil
}

func (s *IngestionService) ingest(ctx context.Context, file File, data []byte) {
	if err := s.files.UpdateStatus(ctx, file.ID, FileStatusProcessing, ""); err != nil {
		s.logger.Error("update status to processing failed", "file_id", file.ID, "err", err)
	}

	chunks, pageCount, err := s.processor.Process(ctx, file.ID, file.UserID, file.ContentType, data)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			s.logger.Warn("unsupported format, skipping indexing", "file_id", file.ID, "err", err)
			if err := s.files.UpdateStatus(ctx, file.ID, FileStatusCompleted, ""); err != nil {
				s.logger.Error("update status to completed failed", "file_id", file.ID, "err", err)
			}
			return
		}
		s.logger.Error("document processing failed", "file_id", file.ID, "err", err)
		if err := s.files.UpdateStatus(ctx, file.ID, FileStatusFailed, err.Error()); err != nil {
			s.logger.Error("update status to failed failed", "file_id", file.ID, "err", err)
		}
		return
	}

	if pageCount != nil {
		if err := s.files.UpdatePageCount(ctx, file.ID, *pageCount); err != nil {
			s.logger.Warn("update page count failed", "file_id", file.ID, "err", err)
		}
	}

	if len(chunks) > 0 {
		if err := s.chunks.InsertBatch(ctx, chunks); err != nil {
			s.logger.Error("insert chunks failed", "file_id", file.ID, "err", err)
			if err := s.files.UpdateStatus(ctx, file.ID, FileStatusFailed, "failed to store chunks"); err != nil {
				s.logger.Error("update status to failed failed", "file_id", file.ID, "err", err)
			}
			return
		}
		if err := s.textIndex.Upsert(ctx, chunks); err != nil {
			s.logger.Error("text index upsert failed", "file_id", file.ID, "err", err)
		}
		if err := s.imageIndex.Upsert(ctx, chunks); err != nil {
			s.logger.Error("image index upsert failed", "file_id", file.ID, "err", err)
		}
	}

	if err := s.files.UpdateStatus(ctx, file.ID, FileStatusCompleted, ""); err != nil {
		s.logger.Error("update status to completed failed", "file_id", file.ID, "err", err)
	}
}

// DeleteFile removes a file's blob, chunks, vector entries, and metadata
// row. Ownership must be checked by the caller before invoking this.
func (s *IngestionService) DeleteFile(ctx context.Context, fileID string) error {
	if err := s.textIndex.DeleteByFile(ctx, fileID); err != nil {
		return fmt.Errorf("delete text index entries: %w", err)
	}
	if err := s.imageIndex.DeleteByFile(ctx, fileID); err != nil {
		return fmt.Errorf("delete image index entries: %w", err)
	}
	if err := s.chunks.DeleteByFile(ctx, fileID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.storage.Delete(ctx, fileID); err != nil {
		s.logger.Warn("delete blob failed", "file_id", fileID, "err", err)
	}
	return s.files.Delete(ctx, fileID)
}

// GetFile looks up one file, enforcing ownership.
func (s *IngestionService) GetFile(ctx context.Context, userID, fileID string) (File, bool, error) {
	file, found, err := s.files.GetByID(ctx, fileID)
	if err != nil || !found || file.UserID != userID {
		return File{}, false, err
	}
	return file, true, nil
}
