package query

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/index"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

func testEngine(t *testing.T, mock *llm.Mock) (*Engine, *index.Manager) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.IndexDir = filepath.Join(t.TempDir(), "index_storage")
	cfg.Index.ChunkSize = 8
	cfg.Index.ChunkOverlap = 2
	cfg.Embedding.Dimensions = 16
	cfg.Query.TopK = 3
	cfg.Query.KeywordWeight = 0.3
	cfg.Query.SemanticWeight = 0.7
	cfg.Query.MaxContextChars = 8000

	embedder := embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	manager := index.NewManager(cfg, embedder, nil, zap.NewNop())
	t.Cleanup(func() { _ = manager.Close() })

	return NewEngine(manager, embedder, mock, &cfg.Query, zap.NewNop()), manager
}

func buildFrom(t *testing.T, m *index.Manager, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Build(context.Background(), path); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

func TestAskWithoutIndex(t *testing.T) {
	engine, _ := testEngine(t, &llm.Mock{Response: "unused"})

	_, err := engine.Ask(context.Background(), "anything?")
	if !errors.Is(err, index.ErrNoIndex) {
		t.Fatalf("expected ErrNoIndex, got %v", err)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	engine, _ := testEngine(t, &llm.Mock{Response: "unused"})

	if _, err := engine.Ask(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty question")
	}
}

func TestAskReturnsAnswerWithPassages(t *testing.T) {
	mock := &llm.Mock{Response: "The warranty lasts two years."}
	engine, manager := testEngine(t, mock)

	buildFrom(t, manager, "the product warranty covers two years of normal use "+
		"and extends to accidental damage when registered within thirty days of purchase")

	answer, err := engine.Ask(context.Background(), "how long is the warranty?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Text != "The warranty lasts two years." {
		t.Errorf("unexpected answer: %q", answer.Text)
	}
	if answer.Question != "how long is the warranty?" {
		t.Errorf("question not echoed: %q", answer.Question)
	}
	if len(answer.Passages) == 0 {
		t.Fatal("expected retrieved passages")
	}

	// The prompt carries retrieved document content and the question.
	if len(mock.Prompts) != 1 {
		t.Fatalf("expected 1 LLM call, got %d", len(mock.Prompts))
	}
	prompt := mock.Prompts[0]
	if !strings.Contains(prompt, "warranty") {
		t.Errorf("prompt missing retrieved context: %q", prompt)
	}
	if !strings.Contains(prompt, "how long is the warranty?") {
		t.Errorf("prompt missing question: %q", prompt)
	}
}

func TestAskGenerationError(t *testing.T) {
	mock := &llm.Mock{Err: errors.New("upstream unavailable")}
	engine, manager := testEngine(t, mock)
	buildFrom(t, manager, "some indexed content about various topics")

	_, err := engine.Ask(context.Background(), "question?")
	if err == nil || !strings.Contains(err.Error(), "generation failed") {
		t.Fatalf("expected generation error, got %v", err)
	}
}

func TestAskCapsPassagesAtTopK(t *testing.T) {
	mock := &llm.Mock{Response: "ok"}
	engine, manager := testEngine(t, mock)

	// Enough words to yield many chunks with chunk size 8.
	words := make([]string, 0, 120)
	for i := 0; i < 120; i++ {
		words = append(words, "term"+string(rune('a'+i%26)))
	}
	buildFrom(t, manager, strings.Join(words, " "))

	answer, err := engine.Ask(context.Background(), "terma termb")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.Passages) > 3 {
		t.Errorf("expected at most 3 passages, got %d", len(answer.Passages))
	}
}

func TestBuildPromptCapsContext(t *testing.T) {
	passages := []*models.Passage{
		{Content: strings.Repeat("a", 50)},
		{Content: strings.Repeat("b", 50)},
		{Content: strings.Repeat("c", 50)},
	}
	prompt := BuildPrompt("q?", passages, 80)
	if strings.Contains(prompt, strings.Repeat("c", 50)) {
		t.Error("third passage should have been dropped by the context cap")
	}
	if !strings.Contains(prompt, strings.Repeat("a", 50)) {
		t.Error("first passage always included")
	}
	if !strings.Contains(prompt, "Question: q?") {
		t.Error("prompt missing question")
	}
}

func TestBuildPromptFirstPassageAlwaysIncluded(t *testing.T) {
	passages := []*models.Passage{{Content: strings.Repeat("x", 500)}}
	prompt := BuildPrompt("q?", passages, 100)
	if !strings.Contains(prompt, strings.Repeat("x", 500)) {
		t.Error("a single oversized passage is still included")
	}
}
