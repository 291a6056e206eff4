package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRetrievalServiceJoinsAndRanksByCombinedSimilarity(t *testing.T) {
	textIndex := &fakeIndex{searchHits: []SearchHit{
		{ChunkID: "c1", Similarity: 0.5},
		{ChunkID: "c2", Similarity: 0.9},
	}}
	imageIndex := &fakeIndex{searchHits: []SearchHit{
		{ChunkID: "c3", Similarity: 0.7},
	}}
	chunks := newFakeChunkRepository()
	_ = chunks.InsertBatch(context.Background(), []DocumentChunk{
		{ID: "c1", FileID: "f1", ChunkType: ChunkTypeText, Content: "low score text", Metadata: map[string]any{"page": 1}},
		{ID: "c2", FileID: "f1", ChunkType: ChunkTypeText, Content: "high score text", Metadata: map[string]any{"page": 2}},
		{ID: "c3", FileID: "f2", ChunkType: ChunkTypeImage, Content: "caption", RawContent: []byte("img"), Metadata: map[string]any{"page": 1}},
	})
	files := newFakeFileRepository()
	_, _ = files.Create(context.Background(), File{ID: "f1", Filename: "doc.pdf"})
	_, _ = files.Create(context.Background(), File{ID: "f2", Filename: "scan.png"})

	svc := NewRetrievalService(textIndex, imageIndex, chunks, files, testLogger())

	result := svc.Retrieve(context.Background(), "query", "user-1", 10)
	require.Len(t, result.TextChunks, 2)
	require.Equal(t, "high score text", result.TextChunks[0].Content)
	require.Equal(t, "doc.pdf (page 2)", result.TextChunks[0].SourceLabel)
	require.Equal(t, "low score text", result.TextChunks[1].Content)

	require.Len(t, result.ImageChunks, 1)
	require.Equal(t, "scan.png (page 1)", result.ImageChunks[0].SourceLabel)
	require.True(t, result.ImageChunks[0].VisualMatch)
}

func TestRetrievalServiceDegradesToEmptyOnTextSearchError(t *testing.T) {
	textIndex := &fakeIndex{searchErr: errNotFound}
	svc := NewRetrievalService(textIndex, &fakeIndex{}, newFakeChunkRepository(), newFakeFileRepository(), testLogger())

	result := svc.Retrieve(context.Background(), "query", "user-1", 10)
	require.Empty(t, result.TextChunks)
	require.Empty(t, result.ImageChunks)
}

func TestRetrievalServiceNilImageIndexSkipsImageSearch(t *testing.T) {
	textIndex := &fakeIndex{searchHits: []SearchHit{{ChunkID: "c1", Similarity: 0.5}}}
	chunks := newFakeChunkRepository()
	_ = chunks.InsertBatch(context.Background(), []DocumentChunk{
		{ID: "c1", FileID: "f1", ChunkType: ChunkTypeText, Content: "text"},
	})
	files := newFakeFileRepository()
	_, _ = files.Create(context.Background(), File{ID: "f1", Filename: "doc.pdf"})

	svc := NewRetrievalService(textIndex, nil, chunks, files, testLogger())
	result := svc.Retrieve(context.Background(), "query", "user-1", 0)
	require.Len(t, result.TextChunks, 1)
}

func TestRetrievalServiceUnknownFileFallsBackToFileIDLabel(t *testing.T) {
	textIndex := &fakeIndex{searchHits: []SearchHit{{ChunkID: "c1", Similarity: 0.5}}}
	chunks := newFakeChunkRepository()
	_ = chunks.InsertBatch(context.Background(), []DocumentChunk{
		{ID: "c1", FileID: "missing-file", ChunkType: ChunkTypeText, Content: "text"},
	})
	svc := NewRetrievalService(textIndex, &fakeIndex{}, chunks, newFakeFileRepository(), testLogger())

	result := svc.Retrieve(context.Background(), "query", "user-1", 10)
	require.Len(t, result.TextChunks, 1)
	require.Contains(t, result.TextChunks[0].SourceLabel, "file:missing-file")
}
