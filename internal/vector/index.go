// Package vector provides vector storage and similarity search over chunk embeddings.
package vector

import "context"

// Index defines vector storage and similarity search.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single vector search hit (ID is a chunk ID).
type Result struct {
	ID    string
	Score float64 // inner product; equals cosine similarity for unit vectors
}
