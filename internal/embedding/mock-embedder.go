package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/hyperjump/mihari/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. It returns a
// fixed-dimension unit vector derived from the path hash so that the same
// path always gets the same embedding.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings
// of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockEmbedder{dimensions: dimensions}
}

// EmbedVideo returns a deterministic embedding based on the path hash.
func (e *MockEmbedder) EmbedVideo(ctx context.Context, videoPath string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := hashPath(videoPath)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h)*float64(i+1))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

func hashPath(path string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return h.Sum32()
}
