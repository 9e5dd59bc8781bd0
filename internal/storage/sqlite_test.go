package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "documents.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetDocument(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:       "doc-1",
		Title:    "notes.txt",
		Content:  "hello world",
		Metadata: map[string]interface{}{"path": "/tmp/notes.txt"},
	}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	got, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Title != "notes.txt" || got.Content != "hello world" {
		t.Errorf("unexpected document: %+v", got)
	}
	if got.Metadata["path"] != "/tmp/notes.txt" {
		t.Errorf("metadata not preserved: %v", got.Metadata)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetDocument(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing document")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBatchCreateChunks(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{ID: "doc-1", Title: "t", Content: "c"}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	chunks := []*models.DocumentChunk{
		{ID: "c-1", DocumentID: "doc-1", Content: "first", ChunkIndex: 0},
		{ID: "c-2", DocumentID: "doc-1", Content: "second", ChunkIndex: 1},
		{ID: "c-3", DocumentID: "doc-1", Content: "third", ChunkIndex: 2},
	}
	if err := s.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatalf("BatchCreateChunks: %v", err)
	}

	got, err := s.GetChunksByDocumentID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetChunksByDocumentID: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	for i, chunk := range got {
		if chunk.ChunkIndex != i {
			t.Errorf("chunk %d out of order: index %d", i, chunk.ChunkIndex)
		}
	}

	single, err := s.GetChunk(ctx, "c-2")
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if single.Content != "second" {
		t.Errorf("unexpected chunk content: %q", single.Content)
	}
}

func TestCounts(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	docs, err := s.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if docs != 0 {
		t.Errorf("expected 0 documents, got %d", docs)
	}

	if err := s.CreateDocument(ctx, &models.Document{ID: "d", Title: "t", Content: "c"}); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := s.BatchCreateChunks(ctx, []*models.DocumentChunk{
		{ID: "c-1", DocumentID: "d", Content: "x", ChunkIndex: 0},
	}); err != nil {
		t.Fatalf("BatchCreateChunks: %v", err)
	}

	docs, _ = s.CountDocuments(ctx)
	chunks, _ := s.CountChunks(ctx)
	if docs != 1 || chunks != 1 {
		t.Errorf("expected 1 document and 1 chunk, got %d and %d", docs, chunks)
	}
}
