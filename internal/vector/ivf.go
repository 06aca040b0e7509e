package vector

import (
	"fmt"
	"sort"
	"sync"
)

const (
	// minTrainPerList is the average number of vectors per inverted list
	// required before the coarse quantizer is trained.
	minTrainPerList = 8
	kmeansIters     = 10
)

// IVFIndex is an approximate vector index: a k-means coarse quantizer splits
// the arena into nlist inverted lists and Search scans only the nprobe lists
// whose centroids score highest against the query.
//
// Recall tradeoff: once trained, Search may miss a true top-k vector whose
// list was not probed; raising nprobe raises recall at the cost of scan time
// (nprobe == nlist degenerates to exact search). Until enough vectors have
// accumulated to train (minTrainPerList * nlist) the index brute-forces the
// whole arena and results are exact. Mask is unsupported; callers filter
// dead positions themselves and rebuild the index to reclaim space.
type IVFIndex struct {
	dimensions int
	nlist      int
	nprobe     int
	vectors    [][]float32
	centroids  [][]float32
	lists      [][]int // centroid -> positions
	trained    bool
	mu         sync.RWMutex
}

// NewIVFIndex creates an approximate index. nlist is the number of inverted
// lists, nprobe the number of lists scanned per query (clamped to nlist).
func NewIVFIndex(dimensions, nlist, nprobe int) (*IVFIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if nlist <= 0 {
		nlist = defaultNList
	}
	if nprobe <= 0 {
		nprobe = defaultNProbe
	}
	if nprobe > nlist {
		nprobe = nlist
	}
	return &IVFIndex{dimensions: dimensions, nlist: nlist, nprobe: nprobe}, nil
}

// Kind returns the index kind identifier.
func (x *IVFIndex) Kind() string {
	return string(KindIVF)
}

// Dimensions returns the vector dimension.
func (x *IVFIndex) Dimensions() int {
	return x.dimensions
}

// Trained reports whether the coarse quantizer has been trained.
func (x *IVFIndex) Trained() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.trained
}

// Add appends a vector and returns its position. The first Add that brings
// the arena to minTrainPerList*nlist vectors trains the quantizer.
func (x *IVFIndex) Add(vec []float32) (int, error) {
	if len(vec) != x.dimensions {
		return 0, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), x.dimensions)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	v := make([]float32, x.dimensions)
	copy(v, vec)
	x.vectors = append(x.vectors, v)
	pos := len(x.vectors) - 1
	if x.trained {
		c := x.nearestCentroid(v)
		x.lists[c] = append(x.lists[c], pos)
	} else if len(x.vectors) >= x.nlist*minTrainPerList {
		x.train()
	}
	return pos, nil
}

// train runs k-means over the current arena and assigns every vector to its
// nearest centroid. Initial centroids are evenly spaced over insertion order
// so training is deterministic.
func (x *IVFIndex) train() {
	n := len(x.vectors)
	x.centroids = make([][]float32, x.nlist)
	step := n / x.nlist
	for i := 0; i < x.nlist; i++ {
		c := make([]float32, x.dimensions)
		copy(c, x.vectors[i*step])
		x.centroids[i] = c
	}
	assign := make([]int, n)
	for iter := 0; iter < kmeansIters; iter++ {
		changed := false
		for i, v := range x.vectors {
			c := x.nearestCentroid(v)
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		sums := make([][]float64, x.nlist)
		counts := make([]int, x.nlist)
		for i := range sums {
			sums[i] = make([]float64, x.dimensions)
		}
		for i, v := range x.vectors {
			c := assign[i]
			counts[c]++
			for j, f := range v {
				sums[c][j] += float64(f)
			}
		}
		for c := range x.centroids {
			if counts[c] == 0 {
				continue // empty list keeps its previous centroid
			}
			for j := range x.centroids[c] {
				x.centroids[c][j] = float32(sums[c][j] / float64(counts[c]))
			}
		}
	}
	x.lists = make([][]int, x.nlist)
	for i := range x.vectors {
		c := assign[i]
		x.lists[c] = append(x.lists[c], i)
	}
	x.trained = true
}

func (x *IVFIndex) nearestCentroid(v []float32) int {
	best, bestScore := 0, InnerProduct(v, x.centroids[0])
	for c := 1; c < len(x.centroids); c++ {
		if s := InnerProduct(v, x.centroids[c]); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

// Search returns up to k hits by descending score, ties by position. Before
// training this is an exact brute-force scan; after training only the nprobe
// closest lists are scanned.
func (x *IVFIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), x.dimensions)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if k <= 0 || len(x.vectors) == 0 {
		return nil, nil
	}
	var hits []Hit
	if !x.trained {
		hits = make([]Hit, 0, len(x.vectors))
		for pos, vec := range x.vectors {
			hits = append(hits, Hit{Pos: pos, Score: InnerProduct(query, vec)})
		}
	} else {
		probes := make([]Hit, 0, len(x.centroids))
		for c, centroid := range x.centroids {
			probes = append(probes, Hit{Pos: c, Score: InnerProduct(query, centroid)})
		}
		sort.SliceStable(probes, func(i, j int) bool { return probes[i].Score > probes[j].Score })
		np := x.nprobe
		if np > len(probes) {
			np = len(probes)
		}
		for _, p := range probes[:np] {
			for _, pos := range x.lists[p.Pos] {
				hits = append(hits, Hit{Pos: pos, Score: InnerProduct(query, x.vectors[pos])})
			}
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Pos < hits[j].Pos })
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Mask is unsupported for IVF lists.
func (x *IVFIndex) Mask(pos int) error {
	return ErrMaskUnsupported
}

// VectorAt returns the vector stored at pos.
func (x *IVFIndex) VectorAt(pos int) ([]float32, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if pos < 0 || pos >= len(x.vectors) {
		return nil, false
	}
	return x.vectors[pos], true
}

// Len returns the total number of slots.
func (x *IVFIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Live equals Len: IVF cannot mask, dead positions are the caller's bookkeeping.
func (x *IVFIndex) Live() int {
	return x.Len()
}
