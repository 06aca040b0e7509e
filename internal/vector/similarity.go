// Package vector provides similarity math and vector indexes for video
// feature embeddings.
package vector

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch is returned when two vectors (or a vector and an
	// index) disagree on dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrZeroVector is returned when a zero-norm vector cannot be normalized.
	ErrZeroVector = errors.New("zero vector cannot be normalized")
)

// CosineSimilarity returns the cosine similarity between a and b in [-1, 1].
// Returns 0 when either vector has zero norm (defined, not an error).
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// BatchCosineSimilarity returns one similarity per row of vecs, identical to
// calling CosineSimilarity(query, vecs[i]) per row.
func BatchCosineSimilarity(query []float32, vecs [][]float32) ([]float64, error) {
	out := make([]float64, len(vecs))
	for i, v := range vecs {
		s, err := CosineSimilarity(query, v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

// Normalize returns a copy of v scaled to unit L2 norm.
// Returns ErrZeroVector when v has zero norm; the zero vector is never
// silently passed through as "normalized".
func Normalize(v []float32) ([]float32, error) {
	norm := L2Norm(v)
	if norm == 0 {
		return nil, ErrZeroVector
	}
	out := make([]float32, len(v))
	inv := float32(1.0 / norm)
	for i, x := range v {
		out[i] = x * inv
	}
	return out, nil
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// InnerProduct returns the inner product of two equal-length vectors
// (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
