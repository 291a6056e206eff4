package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministicTextEmbedderIsStableAndDimensioned(t *testing.T) {
	e := NewDeterministicTextEmbedder(16)
	require.Equal(t, 16, e.Dimension())

	v1, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Len(t, v1, 16)
}

func TestDeterministicTextEmbedderDiffersByInput(t *testing.T) {
	e := NewDeterministicTextEmbedder(16)
	v1, _ := e.Embed(context.Background(), "alpha")
	v2, _ := e.Embed(context.Background(), "beta")
	require.NotEqual(t, v1, v2)
}

func TestDeterministicTextEmbedderDefaultsDimension(t *testing.T) {
	e := NewDeterministicTextEmbedder(0)
	require.Equal(t, 32, e.Dimension())
}

func TestDeterministicImageEmbedderSharesSpaceWithText(t *testing.T) {
	e := NewDeterministicImageEmbedder(8)
	viaText, err := e.EmbedText(context.Background(), "shared-seed")
	require.NoError(t, err)
	viaImage, err := e.EmbedImage(context.Background(), []byte("shared-seed"))
	require.NoError(t, err)
	require.Equal(t, viaText, viaImage)
}

func TestDeterministicImageEmbedderDefaultsDimension(t *testing.T) {
	e := NewDeterministicImageEmbedder(-1)
	require.Equal(t, 32, e.Dimension())
}
