package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/hyperjump/mihari/internal/models"
)

const (
	metaFile    = "meta.json"
	vectorsFile = "vectors.bin"

	// Sanity bounds for the vectors file header fields, so a corrupt file
	// cannot request an absurd allocation.
	maxIDLen     = 4096
	maxDimension = 1 << 16
)

// storeMeta is the persisted shape of the store, minus the raw vectors.
// Records and IDToIdx are written compacted: live records renumbered 0..N-1
// in insertion order, tombstones excluded.
type storeMeta struct {
	Dimension int                   `json:"dimension"`
	IndexKind string                `json:"index_kind"`
	Records   []*models.VideoRecord `json:"records"`
	IDToIdx   map[string]int        `json:"id_to_idx"`
}

// Save writes the full store state to dir as meta.json plus vectors.bin.
// Vector layout: dimension (4), n (4), then per vector: idLen (4), id bytes,
// vector (dimension*4 bytes), little-endian.
func (s *FeatureStore) Save(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	live := s.liveRecordsLocked()
	meta := storeMeta{
		Dimension: s.dimensions,
		IndexKind: string(s.kind),
		Records:   live,
		IDToIdx:   make(map[string]int, len(live)),
	}
	for i, rec := range live {
		meta.IDToIdx[rec.VideoID] = i
	}

	f, err := os.Create(filepath.Join(dir, vectorsFile))
	if err != nil {
		return fmt.Errorf("create vectors file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(s.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(live))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, rec := range live {
		vec, ok := s.index.VectorAt(s.idToPos[rec.VideoID])
		if !ok {
			return fmt.Errorf("%w: missing vector for %s", ErrCorruptStore, rec.VideoID)
		}
		idBytes := []byte(rec.VideoID)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := f.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}

	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0644); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

// Load replaces the store contents with the state saved in dir. If the
// directory or its files do not exist, no error is returned and the store is
// unchanged. Returns ErrCorruptStore when the persisted dimension or index
// kind disagrees with the store's configuration, the vectors file is
// malformed, or the id-to-index mapping is not bijective over the records.
func (s *FeatureStore) Load(dir string) error {
	if dir == "" {
		return nil
	}
	metaData, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read meta: %w", err)
	}
	var meta storeMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return fmt.Errorf("%w: parse meta: %v", ErrCorruptStore, err)
	}

	ids, vecs, err := readVectors(filepath.Join(dir, vectorsFile))
	if err != nil {
		return err
	}

	if err := validateMeta(&meta, ids, vecs, s.dimensions, string(s.kind)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.newIndex()
	if err != nil {
		return err
	}
	records := make(map[string]*models.VideoRecord, len(meta.Records))
	idToPos := make(map[string]int, len(meta.Records))
	posToID := make(map[int]string, len(meta.Records))
	for i, rec := range meta.Records {
		pos, err := idx.Add(vecs[i])
		if err != nil {
			return err
		}
		records[rec.VideoID] = rec
		idToPos[rec.VideoID] = pos
		posToID[pos] = rec.VideoID
	}
	s.index = idx
	s.records = records
	s.idToPos = idToPos
	s.posToID = posToID
	return nil
}

// validateMeta checks that the persisted state matches the store's
// configuration (dimension, index kind) and is internally consistent, with an
// id-to-index mapping bijective over the saved records.
func validateMeta(meta *storeMeta, ids []string, vecs [][]float32, wantDim int, wantKind string) error {
	if meta.Dimension != wantDim {
		return fmt.Errorf("%w: dimension %d, store expects %d", ErrCorruptStore, meta.Dimension, wantDim)
	}
	if meta.IndexKind != "" && meta.IndexKind != wantKind {
		return fmt.Errorf("%w: snapshot index kind %q, store configured %q", ErrCorruptStore, meta.IndexKind, wantKind)
	}
	if len(vecs) > 0 && len(vecs[0]) != meta.Dimension {
		return fmt.Errorf("%w: vectors have dimension %d, meta says %d", ErrCorruptStore, len(vecs[0]), meta.Dimension)
	}
	if len(meta.Records) != len(vecs) {
		return fmt.Errorf("%w: %d records but %d vectors", ErrCorruptStore, len(meta.Records), len(vecs))
	}
	if len(meta.IDToIdx) != len(meta.Records) {
		return fmt.Errorf("%w: id_to_idx has %d entries for %d records", ErrCorruptStore, len(meta.IDToIdx), len(meta.Records))
	}
	seen := make(map[int]bool, len(meta.IDToIdx))
	for id, idx := range meta.IDToIdx {
		if idx < 0 || idx >= len(meta.Records) {
			return fmt.Errorf("%w: id_to_idx[%s] = %d out of range", ErrCorruptStore, id, idx)
		}
		if seen[idx] {
			return fmt.Errorf("%w: index %d mapped twice", ErrCorruptStore, idx)
		}
		seen[idx] = true
		if meta.Records[idx].VideoID != id {
			return fmt.Errorf("%w: id_to_idx[%s] points at record %s", ErrCorruptStore, id, meta.Records[idx].VideoID)
		}
	}
	for i, rec := range meta.Records {
		if rec.VideoID == "" {
			return fmt.Errorf("%w: record %d has empty id", ErrCorruptStore, i)
		}
		if ids[i] != rec.VideoID {
			return fmt.Errorf("%w: vector %d belongs to %s, record says %s", ErrCorruptStore, i, ids[i], rec.VideoID)
		}
	}
	return nil
}

func readVectors(path string) ([]string, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: meta present but vectors missing", ErrCorruptStore)
		}
		return nil, nil, fmt.Errorf("open vectors file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, nil, fmt.Errorf("%w: read dimensions: %v", ErrCorruptStore, err)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, nil, fmt.Errorf("%w: read count: %v", ErrCorruptStore, err)
	}
	if dim == 0 || dim > maxDimension {
		return nil, nil, fmt.Errorf("%w: implausible vector dimension %d", ErrCorruptStore, dim)
	}
	ids := make([]string, 0, n)
	vecs := make([][]float32, 0, n)
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return nil, nil, fmt.Errorf("%w: read id len: %v", ErrCorruptStore, err)
		}
		if idLen == 0 || idLen > maxIDLen {
			return nil, nil, fmt.Errorf("%w: implausible id length %d", ErrCorruptStore, idLen)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBytes); err != nil {
			return nil, nil, fmt.Errorf("%w: read id: %v", ErrCorruptStore, err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, nil, fmt.Errorf("%w: read vector: %v", ErrCorruptStore, err)
		}
		ids = append(ids, string(idBytes))
		vecs = append(vecs, bytesToFloat32Slice(buf))
	}
	return ids, vecs, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
