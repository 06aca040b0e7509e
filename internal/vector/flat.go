package vector

import (
	"fmt"
	"sort"
	"sync"
)

// FlatIndex is an exact vector index using brute-force inner product search.
// Search is O(N*D) and always returns the true top-k; Mask is O(1).
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
	masked     []bool
	live       int
	mu         sync.RWMutex
}

// NewFlatIndex creates an exact index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Kind returns the index kind identifier.
func (f *FlatIndex) Kind() string {
	return string(KindFlat)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Add appends a vector and returns its position.
func (f *FlatIndex) Add(vec []float32) (int, error) {
	if len(vec) != f.dimensions {
		return 0, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), f.dimensions)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v := make([]float32, f.dimensions)
	copy(v, vec)
	f.vectors = append(f.vectors, v)
	f.masked = append(f.masked, false)
	f.live++
	return len(f.vectors) - 1, nil
}

// Search returns the top-k unmasked vectors by inner product, ties broken by
// insertion order.
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || f.live == 0 {
		return nil, nil
	}
	hits := make([]Hit, 0, f.live)
	for pos, vec := range f.vectors {
		if f.masked[pos] {
			continue
		}
		hits = append(hits, Hit{Pos: pos, Score: InnerProduct(query, vec)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Mask excludes pos from future searches. Masking an already-masked position
// is a no-op.
func (f *FlatIndex) Mask(pos int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pos < 0 || pos >= len(f.vectors) {
		return fmt.Errorf("position %d out of range [0,%d)", pos, len(f.vectors))
	}
	if !f.masked[pos] {
		f.masked[pos] = true
		f.live--
	}
	return nil
}

// VectorAt returns the vector stored at pos.
func (f *FlatIndex) VectorAt(pos int) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if pos < 0 || pos >= len(f.vectors) {
		return nil, false
	}
	return f.vectors[pos], true
}

// Len returns the total number of slots including masked ones.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Live returns the number of unmasked slots.
func (f *FlatIndex) Live() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.live
}
