// Package rag implements document ingestion, dual-collection embedding,
// chunk storage and retrieval for the form analysis pipeline.
package rag

import "time"

// ChunkType distinguishes a text fragment from an image with an OCR caption.
type ChunkType string

const (
	ChunkTypeText  ChunkType = "TEXT"
	ChunkTypeImage ChunkType = "IMAGE"
)

// FileStatus tracks an uploaded file through ingestion.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

// File is a user-owned binary blob awaiting or having undergone ingestion.
type File struct {
	ID            string     `json:"id"`
	UserID        string     `json:"-"`
	Filename      string     `json:"filename"`
	ContentType   string     `json:"content_type"`
	SizeBytes     int64      `json:"size_bytes"`
	Status        FileStatus `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	PageCount     *int       `json:"page_count,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DocumentChunk is the unit of retrieval produced by the Document Processor.
//
// Its ID is identical to its identifier in the text index, and in the image
// index iff ChunkType is IMAGE.
type DocumentChunk struct {
	ID         string
	FileID     string
	UserID     string
	ChunkIndex int
	ChunkType  ChunkType
	Content    string // chunk text for TEXT, OCR caption for IMAGE
	RawContent []byte // downscaled PNG bytes, present iff ChunkType == IMAGE
	Metadata   map[string]any
	CreatedAt  time.Time
}

// TextChunkResult is one entry of a text-collection search.
type TextChunkResult struct {
	Content    string
	SourceLabel string
	FileID     string
	Similarity float64
}

// ImageChunkResult is one entry of an image-collection search.
type ImageChunkResult struct {
	ImageBytes  []byte
	OCRText     string
	SourceLabel string
	FileID      string
	Similarity  float64
	VisualMatch bool
}

// RetrievalResult is the joined output of the Retrieval Service.
type RetrievalResult struct {
	TextChunks  []TextChunkResult
	ImageChunks []ImageChunkResult
}
