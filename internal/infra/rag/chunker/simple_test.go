package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkTextEmptyReturnsNil(t *testing.T) {
	c := New(100, 10)
	require.Nil(t, c.ChunkText("   "))
}

func TestChunkTextShortTextIsOneChunk(t *testing.T) {
	c := New(1000, 200)
	chunks := c.ChunkText("The quick brown fox jumps over the lazy dog.")
	require.Len(t, chunks, 1)
	require.Contains(t, chunks[0], "quick brown fox")
}

func TestChunkTextSplitsLongTextIntoMultipleChunks(t *testing.T) {
	c := New(20, 0)
	words := make([]string, 200)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	chunks := c.ChunkText(text)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.NotEmpty(t, chunk)
	}
}

func TestChunkTextDefaultsNegativeOverlapToZero(t *testing.T) {
	c := New(100, -5)
	require.Equal(t, 0, c.Overlap)
}

func TestChunkTextDefaultsNonPositiveMaxTokensTo1000(t *testing.T) {
	c := New(0, 10)
	require.Equal(t, 1000, c.MaxTokens)
}

func TestSplitLongWordBreaksAtRuneBoundary(t *testing.T) {
	word := strings.Repeat("x", 25)
	pieces := splitLongWord(word, 10)
	require.Len(t, pieces, 3)
	require.Equal(t, 10, len(pieces[0]))
	require.Equal(t, 10, len(pieces[1]))
	require.Equal(t, 5, len(pieces[2]))
}
