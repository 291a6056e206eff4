package embedder

import (
	"context"
	"hash/fnv"

	"github.com/yanqian/ai-helloworld/internal/domain/rag"
)

// DeterministicTextEmbedder avoids network calls by hashing text into a
// vector; used in tests and as an offline fallback.
type DeterministicTextEmbedder struct {
	dim int
}

// NewDeterministicTextEmbedder constructs the embedder.
func NewDeterministicTextEmbedder(dim int) *DeterministicTextEmbedder {
	if dim <= 0 {
		dim = 32
	}
	return &DeterministicTextEmbedder{dim: dim}
}

// Embed converts text into a pseudo-random but stable vector.
func (e *DeterministicTextEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return hashVector(text, e.dim), nil
}

// Dimension returns the configured vector dimension.
func (e *DeterministicTextEmbedder) Dimension() int { return e.dim }

// DeterministicImageEmbedder hashes image bytes (or text) into a vector in
// the same deterministic fashion, for tests.
type DeterministicImageEmbedder struct {
	dim int
}

// NewDeterministicImageEmbedder constructs the embedder.
func NewDeterministicImageEmbedder(dim int) *DeterministicImageEmbedder {
	if dim <= 0 {
		dim = 32
	}
	return &DeterministicImageEmbedder{dim: dim}
}

// EmbedImage hashes raw image bytes into a vector.
func (e *DeterministicImageEmbedder) EmbedImage(_ context.Context, imageBytes []byte) ([]float32, error) {
	return hashVector(string(imageBytes), e.dim), nil
}

// EmbedText hashes text into the same vector space as EmbedImage.
func (e *DeterministicImageEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return hashVector(text, e.dim), nil
}

// Dimension returns the configured vector dimension.
func (e *DeterministicImageEmbedder) Dimension() int { return e.dim }

func hashVector(seed string, dim int) []float32 {
	vector := make([]float32, dim)
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(seed))
	state := hash.Sum64()
	for j := 0; j < dim; j++ {
		state = state*1099511628211 + 1469598103934665603
		vector[j] = float32(state%997) / 997.0
	}
	return vector
}

var (
	_ rag.TextEmbedder  = (*DeterministicTextEmbedder)(nil)
	_ rag.ImageEmbedder = (*DeterministicImageEmbedder)(nil)
)
