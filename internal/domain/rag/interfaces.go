package rag

import (
	"context"
	"io"
)

// SearchHit is a raw nearest-neighbour result from one vector collection,
// before it has been joined against the chunk store.
type SearchHit struct {
	ChunkID    string
	Similarity float64
}

// TextIndex embeds and searches the text collection: one vector per chunk,
// covering TEXT chunk content and IMAGE chunk OCR captions.
type TextIndex interface {
	// Upsert embeds and stores text for each chunk. Chunks with empty
	// content after substitution of the placeholder are still indexed.
	Upsert(ctx context.Context, chunks []DocumentChunk) error
	Search(ctx context.Context, query string, userID string, topK int, fileIDs []string) ([]SearchHit, error)
	DeleteByFile(ctx context.Context, fileID string) error
}

// ImageIndex embeds and searches the image collection: one vector per IMAGE
// chunk, produced by a multimodal embedding of the raw image bytes. Optional
// at runtime — if the underlying embedder is unavailable, Upsert silently
// accepts zero adds and Search returns zero results.
type ImageIndex interface {
	Upsert(ctx context.Context, chunks []DocumentChunk) error
	Search(ctx context.Context, query string, userID string, topK int, fileIDs []string) ([]SearchHit, error)
	DeleteByFile(ctx context.Context, fileID string) error
}

// TextEmbedder produces a fixed-dimension vector for arbitrary text.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ImageEmbedder produces a fixed-dimension vector for raw image bytes, and
// for text in the same embedding space (for text-to-image querying). A nil
// ImageEmbedder is a valid runtime configuration: the image collection then
// behaves as an always-empty no-op.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, imageBytes []byte) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ChunkRepository is the durable chunk store: keyed by chunk id, supports
// batch insert, lookup by id set, lookup by file (ordered by ChunkIndex),
// and delete by file.
type ChunkRepository interface {
	InsertBatch(ctx context.Context, chunks []DocumentChunk) error
	GetByIDs(ctx context.Context, ids []string) ([]DocumentChunk, error)
	GetByFile(ctx context.Context, fileID string) ([]DocumentChunk, error)
	DeleteByFile(ctx context.Context, fileID string) error
}

// FileRepository persists File rows.
type FileRepository interface {
	Create(ctx context.Context, f File) (File, error)
	GetByID(ctx context.Context, id string) (File, bool, error)
	UpdateStatus(ctx context.Context, id string, status FileStatus, failureReason string) error
	UpdatePageCount(ctx context.Context, id string, pageCount int) error
	Delete(ctx context.Context, id string) error
}

// Chunker splits page text into token-budgeted, overlapping chunks.
type Chunker interface {
	ChunkText(text string) []string
}

// OCR extracts a caption from raw image bytes. A failure is non-fatal to
// callers: it is logged and treated as an empty caption.
type OCR interface {
	Extract(ctx context.Context, imageBytes []byte) (string, error)
}

// ImageResizer downscales raw image bytes to fit within a bounding box and
// re-encodes as PNG.
type ImageResizer interface {
	Downscale(imageBytes []byte, maxWidth, maxHeight int) ([]byte, error)
}

// PDFExtractor reads ordered page text and embedded images from a PDF.
type PDFExtractor interface {
	Extract(pdfBytes []byte) (PDFDocument, error)
}

// PDFDocument is the parsed structure of one PDF.
type PDFDocument struct {
	PageCount int
	Pages     []PDFPage
}

// PDFPage carries one page's extracted text and embedded images.
type PDFPage struct {
	Text   string
	Images []PDFImage
}

// PDFImage is one embedded image extracted from a PDF page.
type PDFImage struct {
	Bytes  []byte
	Format string
}

// StoredObject captures persisted blob metadata.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}

// ObjectStorage abstracts the blob store a File's raw bytes live in
// (R2/S3/local), independent of the Postgres metadata row.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
