package vector

import "fmt"

// Kind represents the kind of vector index to use.
type Kind string

const (
	// KindFlat uses exact brute-force search. Always correct; O(N*D) per query.
	KindFlat Kind = "flat"
	// KindIVF uses an inverted-file approximate search. Faster on large
	// arenas, relaxed recall contract (see IVFIndex).
	KindIVF Kind = "ivf"
)

const (
	defaultNList  = 64
	defaultNProbe = 8
)

// New creates a vector index of the given kind. IVF indexes get the default
// list parameters; use NewIVFIndex directly to tune nlist/nprobe.
func New(kind string, dimensions int) (VectorIndex, error) {
	switch Kind(kind) {
	case KindFlat, "":
		return NewFlatIndex(dimensions)
	case KindIVF:
		return NewIVFIndex(dimensions, defaultNList, defaultNProbe)
	default:
		return nil, fmt.Errorf("unknown index kind: %s (supported: flat, ivf)", kind)
	}
}
