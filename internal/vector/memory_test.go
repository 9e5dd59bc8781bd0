package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func TestNewMemoryIndex_invalidDimensions(t *testing.T) {
	for _, dim := range []int{0, -1} {
		if _, err := NewMemoryIndex(dim); err == nil {
			t.Errorf("NewMemoryIndex(%d) should fail", dim)
		}
	}
}

func TestMemoryIndex_addAndSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ids := []string{"a", "b", "c"}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	if err := idx.Add(ctx, ids, vectors); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Fatalf("size: got %d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results: got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("top hit: got %s, want a", results[0].ID)
	}
	if results[1].ID != "c" {
		t.Errorf("second hit: got %s, want c", results[1].ID)
	}
}

func TestMemoryIndex_dimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()

	if err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}); err == nil {
		t.Error("Add with wrong dimension should fail")
	}
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Error("Search with wrong dimension should fail")
	}
}

func TestMemoryIndex_lengthMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	if err := idx.Add(context.Background(), []string{"a", "b"}, [][]float32{{1, 0}}); err == nil {
		t.Error("Add with mismatched lengths should fail")
	}
}

func TestMemoryIndex_searchEmpty(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	results, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Errorf("expected nil results on empty index, got %v", results)
	}
}

func TestMemoryIndex_saveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")
	ctx := context.Background()

	idx, _ := NewMemoryIndex(2)
	if err := idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded size: got %d", loaded.Size())
	}
	results, err := loaded.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "y" {
		t.Errorf("top hit after load: %+v", results)
	}
}

func TestMemoryIndex_loadMissingFile(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	if err := idx.Load(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("Load of missing file should fail")
	}
}

func TestMemoryIndex_loadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")
	ctx := context.Background()

	idx, _ := NewMemoryIndex(4)
	if err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0, 0}}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	other, _ := NewMemoryIndex(2)
	if err := other.Load(path); err == nil {
		t.Error("Load with mismatched dimensions should fail")
	}
}
