package vector

import (
	"errors"
	"testing"
)

func TestFlatIndex_AddSearch(t *testing.T) {
	idx, err := NewFlatIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	for i, v := range vecs {
		pos, err := idx.Add(v)
		if err != nil {
			t.Fatal(err)
		}
		if pos != i {
			t.Errorf("position = %d, want %d", pos, i)
		}
	}
	if idx.Len() != 3 || idx.Live() != 3 {
		t.Errorf("Len=%d Live=%d", idx.Len(), idx.Live())
	}

	hits, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Pos != 0 {
		t.Errorf("top hit should be position 0, got %d", hits[0].Pos)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits should be sorted by descending score")
	}
}

func TestFlatIndex_tiesByInsertionOrder(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	// Two identical vectors tie exactly; the earlier insertion must win.
	_, _ = idx.Add([]float32{0, 1})
	_, _ = idx.Add([]float32{1, 0})
	_, _ = idx.Add([]float32{1, 0})
	hits, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Pos != 1 || hits[1].Pos != 2 {
		t.Errorf("tie order: got positions %d,%d, want 1,2", hits[0].Pos, hits[1].Pos)
	}
}

func TestFlatIndex_Mask(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_, _ = idx.Add([]float32{1, 0})
	_, _ = idx.Add([]float32{0, 1})
	if err := idx.Mask(0); err != nil {
		t.Fatal(err)
	}
	if idx.Live() != 1 || idx.Len() != 2 {
		t.Errorf("Live=%d Len=%d after mask", idx.Live(), idx.Len())
	}
	hits, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.Pos == 0 {
			t.Error("masked position returned from search")
		}
	}
	// Masking twice is a no-op.
	if err := idx.Mask(0); err != nil {
		t.Fatal(err)
	}
	if idx.Live() != 1 {
		t.Errorf("Live=%d after double mask", idx.Live())
	}
}

func TestFlatIndex_dimensionMismatch(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	if _, err := idx.Add([]float32{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Add: expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := idx.Search([]float32{1, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Search: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestFlatIndex_emptySearch(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	hits, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if hits != nil {
		t.Errorf("expected no hits, got %v", hits)
	}
}
