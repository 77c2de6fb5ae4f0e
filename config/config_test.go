package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Ingest.ChunkTokens != 1000 {
		t.Errorf("expected ChunkTokens=1000, got %d", cfg.Ingest.ChunkTokens)
	}
	if cfg.Ingest.ChunkOverlap != 200 {
		t.Errorf("expected ChunkOverlap=200, got %d", cfg.Ingest.ChunkOverlap)
	}
	if cfg.Ingest.MinChunkChars != 50 {
		t.Errorf("expected MinChunkChars=50, got %d", cfg.Ingest.MinChunkChars)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.ExposedChunks != 3 {
		t.Errorf("expected ExposedChunks=3, got %d", cfg.Retrieve.ExposedChunks)
	}
	if cfg.Synthesis.Temperature != 0.1 {
		t.Errorf("expected Temperature=0.1, got %f", cfg.Synthesis.Temperature)
	}
	if cfg.Synthesis.MaxChunkChars != 1000 {
		t.Errorf("expected MaxChunkChars=1000, got %d", cfg.Synthesis.MaxChunkChars)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "biorag.yaml")

	content := `
ingest:
  chunk_tokens: 256
  tokenizer: word
retrieve:
  top_k: 10
store:
  backend: memory
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ingest.ChunkTokens != 256 {
		t.Errorf("expected ChunkTokens=256, got %d", cfg.Ingest.ChunkTokens)
	}
	if cfg.Ingest.Tokenizer != "word" {
		t.Errorf("expected Tokenizer=word, got %s", cfg.Ingest.Tokenizer)
	}
	if cfg.Ingest.ChunkOverlap != 200 {
		t.Errorf("expected unset ChunkOverlap to keep default 200, got %d", cfg.Ingest.ChunkOverlap)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected Backend=memory, got %s", cfg.Store.Backend)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "biorag.yaml")
	if err := os.WriteFile(configPath, []byte("ingest: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".biorag"), 0755); err != nil {
		t.Fatal(err)
	}

	content := `
llm:
  model: gpt-4o-mini
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".biorag", "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected Model=gpt-4o-mini, got %s", cfg.LLM.Model)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "biorag.yaml")

	cfg := DefaultConfig()
	cfg.Retrieve.TopK = 7
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Retrieve.TopK != 7 {
		t.Errorf("expected TopK=7, got %d", loaded.Retrieve.TopK)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MONGODB_URL", "mongodb://db:27017")
	t.Setenv("MONGODB_DB_NAME", "space")
	t.Setenv("MONGODB_COLLECTION_NAME", "papers")
	t.Setenv("BIORAG_STORE_BACKEND", "MONGO")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Store.MongoURL != "mongodb://db:27017" {
		t.Errorf("unexpected MongoURL %s", cfg.Store.MongoURL)
	}
	if cfg.Store.Database != "space" || cfg.Store.Collection != "papers" {
		t.Errorf("unexpected database/collection %s/%s", cfg.Store.Database, cfg.Store.Collection)
	}
	if cfg.Store.Backend != "mongo" {
		t.Errorf("expected Backend=mongo, got %s", cfg.Store.Backend)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"overlap too large", func(c *Config) { c.Ingest.ChunkOverlap = 1000 }, "chunk_overlap"},
		{"zero chunk tokens", func(c *Config) { c.Ingest.ChunkTokens = 0 }, "chunk_tokens"},
		{"unknown tokenizer", func(c *Config) { c.Ingest.Tokenizer = "gpt2" }, "tokenizer"},
		{"zero top k", func(c *Config) { c.Retrieve.TopK = 0 }, "top_k"},
		{"negative query cache", func(c *Config) { c.Retrieve.QueryCacheSize = -1 }, "query_cache_size"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }, "backend"},
		{"mongo without url", func(c *Config) { c.Store.Backend = "mongo"; c.Store.MongoURL = "" }, "mongo"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "voyage" }, "provider"},
		{"unknown level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.TimeoutSecs = 0
	cfg.LLM.TimeoutSecs = 5

	if got := cfg.EmbeddingTimeout(); got != 30*time.Second {
		t.Errorf("expected fallback 30s, got %s", got)
	}
	if got := cfg.LLMTimeout(); got != 5*time.Second {
		t.Errorf("expected 5s, got %s", got)
	}
}

func TestDBPath(t *testing.T) {
	cfg := DefaultConfig()

	path := cfg.DBPath("/home/user/papers")
	expected := filepath.Join("/home/user/papers", ".biorag", "index.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	cfg.Store.Path = "/var/lib/biorag/index.db"
	if got := cfg.DBPath("/home/user/papers"); got != "/var/lib/biorag/index.db" {
		t.Errorf("expected absolute path to be kept, got %s", got)
	}
}
