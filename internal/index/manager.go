package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

var (
	// ErrNoIndex means no index has been built yet and none could be loaded from disk.
	ErrNoIndex = errors.New("no index available")
	// ErrNotFound means the source file to index does not exist.
	ErrNotFound = errors.New("file not found")
)

// Snapshot is an immutable, queryable view of one built index.
// All handles belong to the snapshot and are released by Close.
type Snapshot struct {
	Manifest *Manifest
	Storage  storage.Storage
	Vector   vector.Index
	Keyword  keyword.Index
}

// Close releases the snapshot's storage and index handles.
func (s *Snapshot) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{s.Keyword, s.Vector, s.Storage} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Manager owns the single active index snapshot. Builds are serialized:
// a new index is written into a staging directory, then atomically swapped
// in place of the old one, so readers never see a half-built store.
type Manager struct {
	cfg       *config.Config
	embedder  embedding.Embedder
	extractor *extract.Extractor
	chunker   *Chunker
	logger    *zap.Logger

	buildMu sync.Mutex   // serializes Build and Load
	mu      sync.RWMutex // guards current and onBuild
	current *Snapshot
	onBuild func(sourcePath string)
}

// NewManager creates an index manager. extractor may be nil, in which case
// source files are read as plain text.
func NewManager(cfg *config.Config, embedder embedding.Embedder, extractor *extract.Extractor, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		embedder:  embedder,
		extractor: extractor,
		chunker:   NewChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap),
		logger:    logger,
	}
}

// SetOnBuild registers a callback invoked with the source path after each
// successful build. Used by the watcher to follow the active document.
func (m *Manager) SetOnBuild(f func(sourcePath string)) {
	m.mu.Lock()
	m.onBuild = f
	m.mu.Unlock()
}

// Current returns the active snapshot, or nil if none is loaded.
func (m *Manager) Current() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Ensure returns the active snapshot, loading one from disk if needed.
// Returns ErrNoIndex when nothing has been built and nothing is persisted.
func (m *Manager) Ensure(ctx context.Context) (*Snapshot, error) {
	if snap := m.Current(); snap != nil {
		return snap, nil
	}
	return m.Load(ctx)
}

// Load opens a previously persisted index from the index directory.
// Returns ErrNoIndex when no store exists there, and also when a store
// exists but cannot be opened: an unreadable store means there is no
// usable index until the next build.
func (m *Manager) Load(ctx context.Context) (*Snapshot, error) {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	// Another caller may have loaded while we waited for the lock.
	if snap := m.Current(); snap != nil {
		return snap, nil
	}

	snap, err := m.openSnapshot(m.cfg.Storage.IndexDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoIndex
		}
		m.logger.Warn("persisted index store is unreadable",
			zap.String("dir", m.cfg.Storage.IndexDir),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: store unreadable: %v", ErrNoIndex, err)
	}

	m.mu.Lock()
	m.current = snap
	m.mu.Unlock()

	m.logger.Info("index loaded from disk",
		zap.String("dir", m.cfg.Storage.IndexDir),
		zap.Int64("documents", snap.Manifest.DocumentCount),
		zap.Int64("chunks", snap.Manifest.ChunkCount),
	)
	return snap, nil
}

// Build indexes the file at path into a fresh store and swaps it in as the
// active snapshot. The previous store on disk is replaced. Returns
// ErrNotFound if path does not name a regular file.
func (m *Manager) Build(ctx context.Context, path string) (*Snapshot, error) {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, absPath)
		}
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", ErrNotFound, absPath)
	}

	start := time.Now()
	text, err := m.extractContent(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	text = Preprocess(text)

	staging := m.cfg.Storage.IndexDir + ".build"
	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	manifest, err := m.buildInto(ctx, staging, absPath, info, text)
	if err != nil {
		_ = os.RemoveAll(staging)
		return nil, err
	}

	snap, err := m.swapIn(staging)
	if err != nil {
		_ = os.RemoveAll(staging)
		return nil, err
	}

	m.logger.Info("index built",
		zap.String("source", absPath),
		zap.Int64("chunks", manifest.ChunkCount),
		zap.Duration("took", time.Since(start)),
	)

	m.mu.RLock()
	onBuild := m.onBuild
	m.mu.RUnlock()
	if onBuild != nil {
		onBuild(absPath)
	}
	return snap, nil
}

// buildInto writes a complete index store for one document into dir.
// All handles opened here are closed before returning.
func (m *Manager) buildInto(ctx context.Context, dir, absPath string, info os.FileInfo, text string) (*Manifest, error) {
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, databaseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open staging storage: %w", err)
	}
	defer store.Close()

	vecIndex, err := vector.NewMemoryIndex(m.embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}
	defer vecIndex.Close()

	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, keywordDir))
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	defer kwIndex.Close()

	docID := DocID(absPath)
	title := filepath.Base(absPath)
	doc := &models.Document{
		ID:      docID,
		Title:   title,
		Content: text,
		Metadata: map[string]interface{}{
			"source_path":  absPath,
			"source_mtime": strconv.FormatInt(info.ModTime().UnixNano(), 10),
			"source_size":  strconv.FormatInt(info.Size(), 10),
		},
	}
	if err := store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	chunks := m.chunker.Chunk(docID, text)
	if len(chunks) == 0 {
		chunks = []*models.DocumentChunk{{
			ID:         docID + "_0",
			DocumentID: docID,
			Content:    text,
			ChunkIndex: 0,
		}}
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	embeddings, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	chunkIDs := make([]string, len(chunks))
	for i, ch := range chunks {
		chunkIDs[i] = ch.ID
	}
	if err := vecIndex.Add(ctx, chunkIDs, embeddings); err != nil {
		return nil, fmt.Errorf("failed to index vectors: %w", err)
	}
	for _, ch := range chunks {
		if err := kwIndex.Index(ctx, ch.ID, &keyword.ChunkEntry{Content: ch.Content, Title: title}); err != nil {
			return nil, fmt.Errorf("failed to index keywords: %w", err)
		}
	}

	if err := vecIndex.Save(filepath.Join(dir, vectorsFile)); err != nil {
		return nil, fmt.Errorf("failed to save vector index: %w", err)
	}

	manifest := &Manifest{
		Version:       manifestVersion,
		CreatedAt:     time.Now().UTC(),
		SourcePath:    absPath,
		DocumentCount: 1,
		ChunkCount:    int64(len(chunks)),
		EmbeddingDims: m.embedder.Dimensions(),
	}
	if err := writeManifest(dir, manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return manifest, nil
}

// swapIn replaces the on-disk store with the staging directory and opens
// it as the new active snapshot.
func (m *Manager) swapIn(staging string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if err := m.current.Close(); err != nil {
			m.logger.Warn("failed to close previous index snapshot", zap.Error(err))
		}
		m.current = nil
	}

	indexDir := m.cfg.Storage.IndexDir
	if err := os.RemoveAll(indexDir); err != nil {
		return nil, fmt.Errorf("failed to remove old index: %w", err)
	}
	if err := os.Rename(staging, indexDir); err != nil {
		return nil, fmt.Errorf("failed to move index into place: %w", err)
	}

	snap, err := m.openSnapshot(indexDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open new index: %w", err)
	}
	m.current = snap
	return snap, nil
}

// openSnapshot opens all components of a persisted store in dir.
func (m *Manager) openSnapshot(dir string) (*Snapshot, error) {
	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, databaseFile))
	if err != nil {
		return nil, err
	}

	vecIndex, err := vector.NewMemoryIndex(manifest.EmbeddingDims)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := vecIndex.Load(filepath.Join(dir, vectorsFile)); err != nil {
		_ = store.Close()
		return nil, err
	}

	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, keywordDir))
	if err != nil {
		_ = vecIndex.Close()
		_ = store.Close()
		return nil, err
	}

	return &Snapshot{
		Manifest: manifest,
		Storage:  store,
		Vector:   vecIndex,
		Keyword:  kwIndex,
	}, nil
}

func (m *Manager) extractContent(path string) (string, error) {
	if m.extractor != nil {
		return m.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// Close releases the active snapshot, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	return err
}
