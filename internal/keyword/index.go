// Package keyword provides BM25 keyword indexing and search over document chunks.
package keyword

import "context"

// Index defines keyword search operations over chunks.
type Index interface {
	// Index adds or replaces a chunk in the index, keyed by chunk ID.
	Index(ctx context.Context, id string, entry *ChunkEntry) error
	// Search runs a match query and returns up to limit chunk hits.
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	// DocCount returns the number of chunks in the index.
	DocCount() (uint64, error)
	Close() error
}

// ChunkEntry is the indexed representation of a chunk.
type ChunkEntry struct {
	Content string `json:"content"`
	Title   string `json:"title"`
}

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}
