// Package store owns the persistent whitelist of approved-video embeddings.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/mihari/internal/models"
	"github.com/hyperjump/mihari/internal/vector"
)

var (
	// ErrAlreadyExists is returned by Insert without overwrite when the id is taken.
	ErrAlreadyExists = errors.New("video already exists")
	// ErrNotFound is returned when a video id is not in the store.
	ErrNotFound = errors.New("video not found")
	// ErrEmptyStore is returned by Search when the store has no live records.
	// Callers treat this as a first-class outcome, typically manual review.
	ErrEmptyStore = errors.New("feature store is empty")
	// ErrCorruptStore is returned by Load when the persisted state is
	// internally inconsistent.
	ErrCorruptStore = errors.New("corrupt feature store")
)

// FeatureStore maps video ids to records and keeps their normalized
// embeddings in a dense vector index arena, with a bidirectional
// id-to-position mapping.
//
// Deletion tombstones: the record and both mapping entries are dropped and
// the index position is masked (flat) or left to be filtered out of search
// hits (ivf, which cannot mask). Space is reclaimed by Compact.
//
// All mutating operations hold the write lock for the whole record/arena/
// mapping update so no search observes a partially-updated store; searches
// may run concurrently with each other.
type FeatureStore struct {
	dimensions int
	kind       vector.Kind
	nlist      int
	nprobe     int
	index      vector.VectorIndex
	records    map[string]*models.VideoRecord
	idToPos    map[string]int
	posToID    map[int]string
	mu         sync.RWMutex
}

// Option configures a FeatureStore.
type Option func(*FeatureStore)

// WithIVFParams sets the inverted-list parameters used when kind is "ivf".
func WithIVFParams(nlist, nprobe int) Option {
	return func(s *FeatureStore) {
		s.nlist = nlist
		s.nprobe = nprobe
	}
}

// New creates an empty store with the given embedding dimension and index
// kind (vector.KindFlat or vector.KindIVF; empty means flat).
func New(dimensions int, kind vector.Kind, opts ...Option) (*FeatureStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	s := &FeatureStore{
		dimensions: dimensions,
		kind:       kind,
		records:    make(map[string]*models.VideoRecord),
		idToPos:    make(map[string]int),
		posToID:    make(map[int]string),
	}
	if s.kind == "" {
		s.kind = vector.KindFlat
	}
	for _, opt := range opts {
		opt(s)
	}
	idx, err := s.newIndex()
	if err != nil {
		return nil, err
	}
	s.index = idx
	return s, nil
}

func (s *FeatureStore) newIndex() (vector.VectorIndex, error) {
	if s.kind == vector.KindIVF && s.nlist > 0 {
		return vector.NewIVFIndex(s.dimensions, s.nlist, s.nprobe)
	}
	return vector.New(string(s.kind), s.dimensions)
}

// Insert adds a video embedding under id. The vector is normalized before
// storage. When id already exists and overwrite is false, the store is left
// unchanged and ErrAlreadyExists is returned; with overwrite the old record
// is tombstoned and the new vector appended.
func (s *FeatureStore) Insert(id string, vec []float32, videoPath string, metadata map[string]interface{}, overwrite bool) error {
	if id == "" {
		return fmt.Errorf("video id must not be empty")
	}
	if len(vec) != s.dimensions {
		return fmt.Errorf("%w: got %d, expected %d", vector.ErrDimensionMismatch, len(vec), s.dimensions)
	}
	normalized, err := vector.Normalize(vec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; exists {
		if !overwrite {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		}
		s.dropLocked(id)
	}
	pos, err := s.index.Add(normalized)
	if err != nil {
		return err
	}
	s.records[id] = &models.VideoRecord{
		VideoID:   id,
		VideoPath: videoPath,
		AddedTime: time.Now(),
		Metadata:  metadata,
	}
	s.idToPos[id] = pos
	s.posToID[pos] = id
	return nil
}

// Delete tombstones the record for id. Returns ErrNotFound when absent.
func (s *FeatureStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.dropLocked(id)
	return nil
}

// dropLocked removes id from the record and mapping tables and masks its
// index position. IVF cannot mask; the dead position is excluded from search
// results by the posToID filter instead.
func (s *FeatureStore) dropLocked(id string) {
	pos := s.idToPos[id]
	if err := s.index.Mask(pos); err != nil && !errors.Is(err, vector.ErrMaskUnsupported) {
		// Out-of-range positions cannot happen for ids in the mapping.
		panic(err)
	}
	delete(s.records, id)
	delete(s.idToPos, id)
	delete(s.posToID, pos)
}

// Search normalizes query and returns up to topK live records by descending
// similarity, ties broken by insertion order. Returns ErrEmptyStore when the
// store has no live records.
func (s *FeatureStore) Search(query []float32, topK int) ([]models.SimilarVideo, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", vector.ErrDimensionMismatch, len(query), s.dimensions)
	}
	normalized, err := vector.Normalize(query)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, ErrEmptyStore
	}
	if topK <= 0 {
		return nil, nil
	}
	// Over-fetch by the number of dead arena slots so that filtering them
	// out still leaves topK live hits.
	fetch := topK + (s.index.Len() - len(s.records))
	hits, err := s.index.Search(normalized, fetch)
	if err != nil {
		return nil, err
	}
	out := make([]models.SimilarVideo, 0, topK)
	for _, h := range hits {
		id, live := s.posToID[h.Pos]
		if !live {
			continue
		}
		out = append(out, models.SimilarVideo{VideoID: id, Similarity: h.Score})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

// GetRecord returns the live record for id, or ErrNotFound.
func (s *FeatureStore) GetRecord(id string) (*models.VideoRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *rec
	return &cp, nil
}

// ListAll returns all live records in insertion order.
func (s *FeatureStore) ListAll() []*models.VideoRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveRecordsLocked()
}

// liveRecordsLocked returns live records ordered by arena position.
func (s *FeatureStore) liveRecordsLocked() []*models.VideoRecord {
	positions := make([]int, 0, len(s.posToID))
	for pos := range s.posToID {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	out := make([]*models.VideoRecord, 0, len(positions))
	for _, pos := range positions {
		cp := *s.records[s.posToID[pos]]
		out = append(out, &cp)
	}
	return out
}

// Compact rebuilds the index from live records, reclaiming tombstoned slots.
// This is the only way to reclaim space on ivf indexes, which cannot mask.
func (s *FeatureStore) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildLocked()
}

func (s *FeatureStore) rebuildLocked() error {
	live := s.liveRecordsLocked()
	vecs := make([][]float32, len(live))
	for i, rec := range live {
		v, ok := s.index.VectorAt(s.idToPos[rec.VideoID])
		if !ok {
			return fmt.Errorf("%w: missing vector for %s", ErrCorruptStore, rec.VideoID)
		}
		vecs[i] = v
	}
	idx, err := s.newIndex()
	if err != nil {
		return err
	}
	idToPos := make(map[string]int, len(live))
	posToID := make(map[int]string, len(live))
	records := make(map[string]*models.VideoRecord, len(live))
	for i, rec := range live {
		pos, err := idx.Add(vecs[i])
		if err != nil {
			return err
		}
		idToPos[rec.VideoID] = pos
		posToID[pos] = rec.VideoID
		records[rec.VideoID] = rec
	}
	s.index = idx
	s.idToPos = idToPos
	s.posToID = posToID
	s.records = records
	return nil
}

// Stats describes the current store state.
type Stats struct {
	Records    int    `json:"records"`
	Dimensions int    `json:"dimensions"`
	IndexKind  string `json:"index_kind"`
	IndexSlots int    `json:"index_slots"` // live records plus tombstones
}

// Stats returns current store statistics.
func (s *FeatureStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Records:    len(s.records),
		Dimensions: s.dimensions,
		IndexKind:  s.index.Kind(),
		IndexSlots: s.index.Len(),
	}
}

// Dimensions returns the embedding dimension the store was built with.
func (s *FeatureStore) Dimensions() int {
	return s.dimensions
}
