package annindex

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/altaidevorg/letsearch/internal/apperr"
)

func unitVectors(n, dim int) [][]float32 {
	vecs := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		v[i%dim] = 1.0
		vecs[i] = v
	}
	return vecs
}

func TestIndex_AddAndSearch(t *testing.T) {
	idx, err := New(filepath.Join(t.TempDir(), "index.bin"), Options{Dimensions: 4, Multi: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	keys := []uint64{0, 1, 2, 3}
	vecs := unitVectors(4, 4)

	if err := idx.Add(context.Background(), keys, vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := idx.Size(); got != 4 {
		t.Fatalf("Size() = %d, want 4", got)
	}

	results, err := idx.Search(vecs[2], 1, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Key != 2 {
		t.Errorf("results[0].Key = %d, want 2", results[0].Key)
	}
	if results[0].Score < 0.99 {
		t.Errorf("results[0].Score = %f, want close to 1.0", results[0].Score)
	}
}

func TestIndex_AddDimensionMismatch(t *testing.T) {
	idx, _ := New(filepath.Join(t.TempDir(), "index.bin"), Options{Dimensions: 4})

	err := idx.Add(context.Background(), []uint64{0}, [][]float32{{1, 2}})
	if !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Fatalf("Add() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestIndex_AddDuplicateKeyWithoutMulti(t *testing.T) {
	idx, _ := New(filepath.Join(t.TempDir(), "index.bin"), Options{Dimensions: 2, Multi: false})

	if err := idx.Add(context.Background(), []uint64{0}, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	err := idx.Add(context.Background(), []uint64{0}, [][]float32{{0, 1}})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("second Add() error = %v, want ErrAlreadyExists", err)
	}
}

func TestIndex_SaveAndFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "col", "index.bin")
	idx, err := New(path, Options{Dimensions: 3, Multi: true, Metric: MetricCosine})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	keys := []uint64{10, 11, 12}
	vecs := unitVectors(3, 3)
	if err := idx.Add(context.Background(), keys, vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := From(path)
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if loaded.Size() != 3 {
		t.Errorf("loaded.Size() = %d, want 3", loaded.Size())
	}
	if loaded.Dimensions() != 3 {
		t.Errorf("loaded.Dimensions() = %d, want 3", loaded.Dimensions())
	}

	results, err := loaded.Search(vecs[1], 1, 0)
	if err != nil {
		t.Fatalf("Search after load: %v", err)
	}
	if len(results) != 1 || results[0].Key != 11 {
		t.Errorf("Search after load = %+v, want key 11", results)
	}
}

func TestIndex_From_NotFound(t *testing.T) {
	_, err := From(filepath.Join(t.TempDir(), "missing.bin"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("From() error = %v, want ErrNotFound", err)
	}
}

func TestIndex_CapacityGrows(t *testing.T) {
	idx, _ := New(filepath.Join(t.TempDir(), "index.bin"), Options{Dimensions: 2, Capacity: 1, Multi: true})

	keys := []uint64{0, 1, 2, 3, 4}
	vecs := unitVectors(5, 2)
	if err := idx.Add(context.Background(), keys, vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Capacity() <= 1 {
		t.Errorf("Capacity() = %d, want grown beyond initial 1", idx.Capacity())
	}
}

func TestIndex_Delete(t *testing.T) {
	idx, _ := New(filepath.Join(t.TempDir(), "index.bin"), Options{Dimensions: 2, Multi: true})
	keys := []uint64{0, 1}
	vecs := unitVectors(2, 2)
	if err := idx.Add(context.Background(), keys, vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Delete(0); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size() after delete = %d, want 1", idx.Size())
	}
	if err := idx.Delete(0); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete() again error = %v, want ErrNotFound", err)
	}
}
