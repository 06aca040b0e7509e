// Package embedding produces feature vectors for videos via ONNX and caching.
package embedding

import "context"

// Embedder produces a fixed-dimension feature vector for a video file.
// Implementations may fail per video; callers must handle failure without
// aborting batch work.
type Embedder interface {
	EmbedVideo(ctx context.Context, videoPath string) ([]float32, error)
	Dimensions() int
	Close() error
}
