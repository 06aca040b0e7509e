package vector

import (
	"errors"
	"math"
	"testing"
)

// unitVec returns a deterministic unit vector for test data.
func unitVec(dim int, seed int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(math.Sin(float64(seed*31+i+1)) + 0.01)
	}
	out, _ := Normalize(v)
	return out
}

func TestIVFIndex_bruteForceBeforeTraining(t *testing.T) {
	idx, err := NewIVFIndex(4, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	flat, _ := NewFlatIndex(4)
	for i := 0; i < 10; i++ {
		v := unitVec(4, i)
		if _, err := idx.Add(v); err != nil {
			t.Fatal(err)
		}
		_, _ = flat.Add(v)
	}
	if idx.Trained() {
		t.Fatal("index should not train below the minimum vector count")
	}
	q := unitVec(4, 3)
	got, err := idx.Search(q, 5)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := flat.Search(q, 5)
	if len(got) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(got))
	}
	for i := range got {
		if got[i].Pos != want[i].Pos {
			t.Errorf("hit %d: got position %d, want %d", i, got[i].Pos, want[i].Pos)
		}
	}
}

func TestIVFIndex_trainsAndFindsExactMatch(t *testing.T) {
	idx, err := NewIVFIndex(4, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	n := 4 * minTrainPerList
	for i := 0; i < n; i++ {
		if _, err := idx.Add(unitVec(4, i)); err != nil {
			t.Fatal(err)
		}
	}
	if !idx.Trained() {
		t.Fatalf("index should be trained after %d adds", n)
	}
	// A stored vector queried against itself lands in the top probe list.
	q, _ := idx.VectorAt(7)
	hits, err := idx.Search(q, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Pos != 7 {
		t.Errorf("expected position 7 as top hit, got %+v", hits)
	}
	if math.Abs(hits[0].Score-1) > 1e-5 {
		t.Errorf("self similarity = %f, want 1", hits[0].Score)
	}
}

func TestIVFIndex_maskUnsupported(t *testing.T) {
	idx, _ := NewIVFIndex(4, 4, 2)
	_, _ = idx.Add(unitVec(4, 0))
	if err := idx.Mask(0); !errors.Is(err, ErrMaskUnsupported) {
		t.Errorf("expected ErrMaskUnsupported, got %v", err)
	}
}

func TestIVFIndex_nprobeClamped(t *testing.T) {
	idx, err := NewIVFIndex(4, 2, 100)
	if err != nil {
		t.Fatal(err)
	}
	if idx.nprobe != 2 {
		t.Errorf("nprobe = %d, want clamped to 2", idx.nprobe)
	}
}

func TestNew_kinds(t *testing.T) {
	flat, err := New("flat", 8)
	if err != nil {
		t.Fatal(err)
	}
	if flat.Kind() != "flat" {
		t.Errorf("Kind = %s", flat.Kind())
	}
	ivf, err := New("ivf", 8)
	if err != nil {
		t.Fatal(err)
	}
	if ivf.Kind() != "ivf" {
		t.Errorf("Kind = %s", ivf.Kind())
	}
	def, err := New("", 8)
	if err != nil {
		t.Fatal(err)
	}
	if def.Kind() != "flat" {
		t.Errorf("default kind = %s, want flat", def.Kind())
	}
	if _, err := New("hnsw", 8); err == nil {
		t.Error("unknown kind should fail")
	}
}
