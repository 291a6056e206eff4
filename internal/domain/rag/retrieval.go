package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// RetrievalConfig bounds the retrieval fan-out.
type RetrievalConfig struct {
	MaxPreviewChars int
}

// RetrievalService runs a dual text+visual search, deduplicated by chunk
// id, joined against the chunk store, classified and ranked.
type RetrievalService struct {
	textIndex  TextIndex
	imageIndex ImageIndex
	chunks     ChunkRepository
	files      FileRepository
	logger     *slog.Logger
}

// NewRetrievalService constructs a RetrievalService.
func NewRetrievalService(textIndex TextIndex, imageIndex ImageIndex, chunks ChunkRepository, files FileRepository, logger *slog.Logger) *RetrievalService {
	return &RetrievalService{
		textIndex:  textIndex,
		imageIndex: imageIndex,
		chunks:     chunks,
		files:      files,
		logger:     logger.With("component", "rag.retrieval"),
	}
}

// Retrieve runs a dual text+image search and joins the hits. Any error
// along the way degrades to an empty result rather than propagating:
// retrieval failure must never abort the orchestrator's calling phase.
func (s *RetrievalService) Retrieve(ctx context.Context, query, userID string, topK int) RetrievalResult {
	result, err := s.retrieve(ctx, query, userID, topK)
	if err != nil {
		s.logger.Warn("retrieval degraded to empty result", "err", err)
		return RetrievalResult{TextChunks: []TextChunkResult{}, ImageChunks: []ImageChunkResult{}}
	}
	return result
}

func (s *RetrievalService) retrieve(ctx context.Context, query, userID string, topK int) (RetrievalResult, error) {
	if topK <= 0 {
		topK = 10
	}

	textHits, err := s.textIndex.Search(ctx, query, userID, topK, nil)
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("text search: %w", err)
	}

	imageTopK := topK / 2
	if imageTopK < 5 {
		imageTopK = 5
	}
	var imageHits []SearchHit
	if s.imageIndex != nil {
		imageHits, err = s.imageIndex.Search(ctx, query, userID, imageTopK, nil)
		if err != nil {
			return RetrievalResult{}, fmt.Errorf("image search: %w", err)
		}
	}

	textSim := make(map[string]float64, len(textHits))
	idSet := make(map[string]struct{}, len(textHits)+len(imageHits))
	for _, h := range textHits {
		textSim[h.ChunkID] = h.Similarity
		idSet[h.ChunkID] = struct{}{}
	}
	imageSim := make(map[string]float64, len(imageHits))
	for _, h := range imageHits {
		imageSim[h.ChunkID] = h.Similarity
		idSet[h.ChunkID] = struct{}{}
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	chunks, err := s.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("fetch chunks: %w", err)
	}

	fileCache := make(map[string]*File)
	result := RetrievalResult{TextChunks: []TextChunkResult{}, ImageChunks: []ImageChunkResult{}}

	for _, chunk := range chunks {
		filename := s.filenameFor(ctx, chunk.FileID, fileCache)

		tSim := textSim[chunk.ID]
		iSim := imageSim[chunk.ID]
		combined := tSim
		if iSim > combined {
			combined = iSim
		}

		page := "?"
		if v, ok := chunk.Metadata["page"]; ok {
			page = fmt.Sprintf("%v", v)
		}
		sourceLabel := fmt.Sprintf("%s (page %s)", filename, page)

		switch chunk.ChunkType {
		case ChunkTypeText:
			result.TextChunks = append(result.TextChunks, TextChunkResult{
				Content:     chunk.Content,
				SourceLabel: sourceLabel,
				FileID:      chunk.FileID,
				Similarity:  combined,
			})
		case ChunkTypeImage:
			result.ImageChunks = append(result.ImageChunks, ImageChunkResult{
				ImageBytes:  chunk.RawContent,
				OCRText:     chunk.Content,
				SourceLabel: sourceLabel,
				FileID:      chunk.FileID,
				Similarity:  combined,
				VisualMatch: iSim > 0,
			})
		default:
			s.logger.Warn("chunk has unknown type, skipping", "chunk_id", chunk.ID, "type", chunk.ChunkType)
		}
	}

	sort.Slice(result.TextChunks, func(i, j int) bool { return result.TextChunks[i].Similarity > result.TextChunks[j].Similarity })
	sort.Slice(result.ImageChunks, func(i, j int) bool { return result.ImageChunks[i].Similarity > result.ImageChunks[j].Similarity })

	return result, nil
}

func (s *RetrievalService) filenameFor(ctx context.Context, fileID string, cache map[string]*File) string {
	if fileID == "" {
		return "unknown file"
	}
	if f, ok := cache[fileID]; ok {
		if f == nil {
			return fmt.Sprintf("file:%s", fileID)
		}
		return f.Filename
	}
	file, found, err := s.files.GetByID(ctx, fileID)
	if err != nil || !found {
		cache[fileID] = nil
		return fmt.Sprintf("file:%s", fileID)
	}
	cache[fileID] = &file
	if file.Filename == "" {
		return fmt.Sprintf("file:%s", fileID)
	}
	return file.Filename
}
