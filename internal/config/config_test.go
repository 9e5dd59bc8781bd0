package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  upload_dir: "./docs"
  index_dir: "./index"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.UploadDir != filepath.Join(dir, "docs") {
		t.Errorf("upload_dir not expanded relative to config dir: %s", cfg.Storage.UploadDir)
	}
	if cfg.Storage.IndexDir != filepath.Join(dir, "index") {
		t.Errorf("index_dir not expanded relative to config dir: %s", cfg.Storage.IndexDir)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Storage.UploadDir != "uploaded_docs" {
		t.Errorf("default upload_dir: got %s", cfg.Storage.UploadDir)
	}
	if cfg.Storage.IndexDir != "index_storage" {
		t.Errorf("default index_dir: got %s", cfg.Storage.IndexDir)
	}
	if len(cfg.Upload.AllowedExtensions) != 1 || cfg.Upload.AllowedExtensions[0] != ".txt" {
		t.Errorf("default allowed_extensions: got %v", cfg.Upload.AllowedExtensions)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("default dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Index.ChunkSize != 256 || cfg.Index.ChunkOverlap != 32 {
		t.Errorf("default chunking: got %d/%d", cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	}
	if cfg.Query.KeywordWeight+cfg.Query.SemanticWeight != 1.0 {
		t.Errorf("default weights should sum to 1: %f/%f", cfg.Query.KeywordWeight, cfg.Query.SemanticWeight)
	}
	if cfg.LLM.Model != "gemini-1.5-flash" {
		t.Errorf("default model: got %s", cfg.LLM.Model)
	}
	if cfg.LLM.APIKeyEnv != "GEMINI_API_KEY" {
		t.Errorf("default api_key_env: got %s", cfg.LLM.APIKeyEnv)
	}
	if cfg.Watch.Enabled {
		t.Error("watch should default to disabled")
	}
}

func TestApplyDefaults_keepsExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Query.TopK = 12
	cfg.LLM.Model = "gemini-1.5-pro"
	ApplyDefaults(&cfg)
	if cfg.Query.TopK != 12 {
		t.Errorf("explicit top_k overwritten: %d", cfg.Query.TopK)
	}
	if cfg.LLM.Model != "gemini-1.5-pro" {
		t.Errorf("explicit model overwritten: %s", cfg.LLM.Model)
	}
}

func TestLLMConfig_APIKey(t *testing.T) {
	t.Setenv("KOTAE_TEST_KEY", "secret")
	cfg := LLMConfig{APIKeyEnv: "KOTAE_TEST_KEY"}
	if got := cfg.APIKey(); got != "secret" {
		t.Errorf("APIKey() = %q", got)
	}
}
