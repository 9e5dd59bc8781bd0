package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	manifestVersion = 1
	manifestFile    = "manifest.json"
	databaseFile    = "documents.db"
	vectorsFile     = "vectors.bin"
	keywordDir      = "keyword"
)

// Manifest describes a persisted index store.
type Manifest struct {
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	SourcePath    string    `json:"source_path"`
	DocumentCount int64     `json:"document_count"`
	ChunkCount    int64     `json:"chunk_count"`
	EmbeddingDims int       `json:"embedding_dims"`
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644)
}

func readManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported index version %d", m.Version)
	}
	return &m, nil
}
