package vector

import "errors"

// ErrMaskUnsupported is returned by Mask on index kinds that cannot exclude
// individual positions; callers must filter results themselves and rebuild
// the index to reclaim space.
var ErrMaskUnsupported = errors.New("index kind does not support masking")

// Hit is a single index search hit, addressed by arena position.
type Hit struct {
	Pos   int
	Score float64 // inner product; cosine similarity for normalized vectors
}

// VectorIndex stores fixed-dimension vectors in a dense arena addressed by
// stable integer positions (0..Len-1, assigned by Add in insertion order)
// and answers top-k inner-product queries over them.
type VectorIndex interface {
	// Add appends a vector and returns its position. The position never
	// changes for the lifetime of the index.
	Add(vec []float32) (int, error)
	// Search returns up to k hits by descending score; ties are broken by
	// position ascending (insertion order).
	Search(query []float32, k int) ([]Hit, error)
	// Mask excludes a position from future searches without reclaiming its
	// slot. Returns ErrMaskUnsupported on kinds that cannot mask.
	Mask(pos int) error
	// VectorAt returns the vector stored at pos, masked or not.
	VectorAt(pos int) ([]float32, bool)
	// Len is the total number of slots including masked ones.
	Len() int
	// Live is the number of unmasked slots.
	Live() int
	Dimensions() int
	Kind() string
}
