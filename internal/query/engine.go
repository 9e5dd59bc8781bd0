package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/index"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Engine answers questions: retrieve passages from the active index snapshot,
// then generate an answer with the LLM.
type Engine struct {
	manager  *index.Manager
	embedder embedding.Embedder
	llm      llm.Client
	cfg      *config.QueryConfig
	logger   *zap.Logger
}

// NewEngine creates a query engine.
func NewEngine(manager *index.Manager, embedder embedding.Embedder, client llm.Client, cfg *config.QueryConfig, logger *zap.Logger) *Engine {
	return &Engine{
		manager:  manager,
		embedder: embedder,
		llm:      client,
		cfg:      cfg,
		logger:   logger,
	}
}

// Ask retrieves relevant passages and generates an answer.
// Returns index.ErrNoIndex when no index has been built or persisted.
func (e *Engine) Ask(ctx context.Context, question string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	snap, err := e.manager.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	passages, err := e.retrieve(ctx, snap, question)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(question, passages, e.cfg.MaxContextChars)
	answer, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	e.logger.Debug("question answered",
		zap.String("question", utils.Truncate(question, 200)),
		zap.Int("passages", len(passages)),
		zap.Duration("took", time.Since(startTime)),
	)

	return &models.Answer{
		Question:  question,
		Text:      answer,
		Passages:  passages,
		QueryTime: time.Since(startTime).Milliseconds(),
	}, nil
}

// retrieve runs keyword and semantic search in parallel and fuses the results
// into the top passages.
func (e *Engine) retrieve(ctx context.Context, snap *index.Snapshot, question string) ([]*models.Passage, error) {
	var (
		keywordResults  []*keyword.Result
		semanticResults []*vector.Result
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)

	if e.cfg.KeywordWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := snap.Keyword.Search(ctx, question, e.cfg.TopK)
			if err != nil {
				errChan <- fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordResults = results
		}()
	}

	if e.cfg.SemanticWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queryEmbedding, err := e.embedder.Embed(ctx, question)
			if err != nil {
				errChan <- fmt.Errorf("embedding failed: %w", err)
				return
			}
			results, err := snap.Vector.Search(ctx, queryEmbedding, e.cfg.TopK)
			if err != nil {
				errChan <- fmt.Errorf("vector search failed: %w", err)
				return
			}
			semanticResults = results
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	keywordScores := NormalizeKeywordScores(keywordResults)
	semanticScores := NormalizeSemanticScores(semanticResults)
	fused := Fuse(keywordScores, semanticScores, e.cfg.KeywordWeight, e.cfg.SemanticWeight)

	if len(fused) > e.cfg.TopK {
		fused = fused[:e.cfg.TopK]
	}

	passages := make([]*models.Passage, 0, len(fused))
	for _, f := range fused {
		chunk, err := snap.Storage.GetChunk(ctx, f.ChunkID)
		if err != nil {
			e.logger.Warn("fused chunk missing from storage", zap.String("chunk_id", f.ChunkID))
			continue
		}
		passages = append(passages, &models.Passage{
			ChunkID:       chunk.ID,
			Content:       chunk.Content,
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
		})
	}
	return passages, nil
}
