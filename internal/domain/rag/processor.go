package rag

import (
	"context"
	"errors"
	"log/slog"
)

// ErrUnsupportedFormat is returned when a file's content type is neither a
// PDF nor one of the allowed image types. The caller marks the file
// completed and skips indexing; this is not treated as ingestion failure.
var ErrUnsupportedFormat = errors.New("rag: unsupported file format")

// ProcessorConfig bounds chunking and image downscaling.
type ProcessorConfig struct {
	MaxImageDimension int // both width and height bound, e.g. 1024
}

// DocumentProcessor splits one file into ordered text+image chunks,
// OCR'ing and downscaling images along the way.
type DocumentProcessor struct {
	chunker  Chunker
	ocr      OCR
	resizer  ImageResizer
	pdf      PDFExtractor
	cfg      ProcessorConfig
	logger   *slog.Logger
}

// NewDocumentProcessor constructs a DocumentProcessor.
func NewDocumentProcessor(chunker Chunker, ocr OCR, resizer ImageResizer, pdf PDFExtractor, cfg ProcessorConfig, logger *slog.Logger) *DocumentProcessor {
	return &DocumentProcessor{
		chunker: chunker,
		ocr:     ocr,
		resizer: resizer,
		pdf:     pdf,
		cfg:     cfg,
		logger:  logger.With("component", "rag.processor"),
	}
}

var imageContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Process dispatches on content type. It returns the ordered chunks and,
// for PDFs, the page count (nil for images).
func (p *DocumentProcessor) Process(ctx context.Context, fileID, userID, contentType string, data []byte) ([]DocumentChunk, *int, error) {
	switch {
	case contentType == "application/pdf":
		return p.processPDF(ctx, fileID, userID, data)
	case imageContentTypes[contentType]:
		chunks, err := p.processImage(ctx, fileID, userID, contentType, data)
		return chunks, nil, err
	default:
		return nil, nil, ErrUnsupportedFormat
	}
}

func (p *DocumentProcessor) processPDF(ctx context.Context, fileID, userID string, data []byte) ([]DocumentChunk, *int, error) {
	doc, err := p.pdf.Extract(data)
	if err != nil {
		return nil, nil, err
	}

	chunks := make([]DocumentChunk, 0, doc.PageCount*2)
	chunkIndex := 0

	for pageNum, page := range doc.Pages {
		if len(page.Text) > 0 {
			for i, text := range p.chunker.ChunkText(page.Text) {
				chunks = append(chunks, DocumentChunk{
					FileID:     fileID,
					UserID:     userID,
					ChunkIndex: chunkIndex,
					ChunkType:  ChunkTypeText,
					Content:    text,
					Metadata: map[string]any{
						"page":          pageNum + 1,
						"chunk_in_page": i,
						"total_pages":   doc.PageCount,
					},
				})
				chunkIndex++
			}
		}

		for imgIndex, img := range page.Images {
			chunk, err := p.buildImageChunk(ctx, fileID, userID, chunkIndex, img.Bytes)
			if err != nil {
				p.logger.Warn("failed to process embedded image", "page", pageNum, "image_index", imgIndex, "err", err)
				continue
			}
			chunk.Metadata = map[string]any{
				"page":            pageNum + 1,
				"image_index":     imgIndex,
				"total_pages":     doc.PageCount,
				"original_format": img.Format,
			}
			chunks = append(chunks, chunk)
			chunkIndex++
		}
	}

	pageCount := doc.PageCount
	return chunks, &pageCount, nil
}

func (p *DocumentProcessor) processImage(ctx context.Context, fileID, userID, contentType string, data []byte) ([]DocumentChunk, error) {
	chunk, err := p.buildImageChunk(ctx, fileID, userID, 0, data)
	if err != nil {
		return nil, err
	}
	chunk.Metadata = map[string]any{
		"content_type": contentType,
		"is_standalone": true,
	}
	return []DocumentChunk{chunk}, nil
}

func (p *DocumentProcessor) buildImageChunk(ctx context.Context, fileID, userID string, chunkIndex int, raw []byte) (DocumentChunk, error) {
	caption, err := p.ocr.Extract(ctx, raw)
	if err != nil {
		p.logger.Warn("ocr failed, continuing with empty caption", "err", err)
		caption = ""
	}

	dim := p.cfg.MaxImageDimension
	if dim <= 0 {
		dim = 1024
	}
	resized, err := p.resizer.Downscale(raw, dim, dim)
	if err != nil {
		p.logger.Warn("image downscale failed, storing original bytes", "err", err)
		resized = raw
	}

	return DocumentChunk{
		FileID:     fileID,
		UserID:     userID,
		ChunkIndex: chunkIndex,
		ChunkType:  ChunkTypeImage,
		Content:    caption,
		RawContent: resized,
	}, nil
}
