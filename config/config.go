package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the biorag service and CLI.
type Config struct {
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IngestConfig holds document ingestion and chunking configuration.
type IngestConfig struct {
	Includes      []string `yaml:"includes"`
	Excludes      []string `yaml:"excludes"`
	Tokenizer     string   `yaml:"tokenizer"` // "cl100k_base" or "word"
	ChunkTokens   int      `yaml:"chunk_tokens"`
	ChunkOverlap  int      `yaml:"chunk_overlap"`
	MinChunkChars int      `yaml:"min_chunk_chars"`
}

// RetrieveConfig holds ranking configuration.
type RetrieveConfig struct {
	TopK              int `yaml:"top_k"`
	ExposedChunks     int `yaml:"exposed_chunks"`   // chunk texts returned to callers
	QueryCacheSize    int `yaml:"query_cache_size"` // 0 disables the query embedding cache
	QueryCacheTTLSecs int `yaml:"query_cache_ttl_secs"`
}

// SynthesisConfig controls how ranked chunks become model context.
type SynthesisConfig struct {
	MaxContextChunks int     `yaml:"max_context_chunks"`
	MinChunkChars    int     `yaml:"min_chunk_chars"`
	MaxChunkChars    int     `yaml:"max_chunk_chars"`
	Temperature      float64 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // "openai" or "mock"
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Dimension   int    `yaml:"dimension"`
	BatchSize   int    `yaml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LLMConfig holds generative model configuration.
type LLMConfig struct {
	Provider    string `yaml:"provider"` // "openai"
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// StoreConfig selects and configures the chunk store.
type StoreConfig struct {
	Backend    string `yaml:"backend"` // "bolt", "mongo" or "memory"
	Path       string `yaml:"path"`    // bolt file, relative to the data dir
	MongoURL   string `yaml:"mongo_url"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info" or "off"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Includes:      []string{"**/*.pdf", "**/*.txt", "**/*.md"},
			Excludes:      []string{"**/.git/**", "**/.biorag/**"},
			Tokenizer:     "cl100k_base",
			ChunkTokens:   1000,
			ChunkOverlap:  200,
			MinChunkChars: 50,
		},
		Retrieve: RetrieveConfig{
			TopK:              5,
			ExposedChunks:     3,
			QueryCacheSize:    100,
			QueryCacheTTLSecs: 300,
		},
		Synthesis: SynthesisConfig{
			MaxContextChunks: 3,
			MinChunkChars:    10,
			MaxChunkChars:    1000,
			Temperature:      0.1,
			MaxTokens:        2000,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "text-embedding-3-large",
			BaseURL:     "https://api.aimlapi.com/v1",
			APIKeyEnv:   "AIMLAPI_KEY",
			Dimension:   3072,
			BatchSize:   50,
			TimeoutSecs: 30,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			BaseURL:     "https://api.aimlapi.com/v1",
			APIKeyEnv:   "AIMLAPI_KEY",
			TimeoutSecs: 60,
		},
		Store: StoreConfig{
			Backend:    "bolt",
			Path:       "index.db",
			MongoURL:   "mongodb://localhost:27017",
			Database:   "nasa_space_biology",
			Collection: "documents",
		},
		Server: ServerConfig{
			Address: ":8000",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for biorag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "biorag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".biorag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides store settings from the environment. The variable names
// match the ones used by existing deployments of the service.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MONGODB_URL"); v != "" {
		c.Store.MongoURL = v
	}
	if v := os.Getenv("MONGODB_DB_NAME"); v != "" {
		c.Store.Database = v
	}
	if v := os.Getenv("MONGODB_COLLECTION_NAME"); v != "" {
		c.Store.Collection = v
	}
	if v := os.Getenv("BIORAG_STORE_BACKEND"); v != "" {
		c.Store.Backend = strings.ToLower(v)
	}
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Ingest.ChunkTokens <= 0 {
		errs = append(errs, fmt.Errorf("ingest.chunk_tokens must be > 0"))
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkTokens {
		errs = append(errs, fmt.Errorf("ingest.chunk_overlap must be >= 0 and < chunk_tokens"))
	}
	switch c.Ingest.Tokenizer {
	case "cl100k_base", "o200k_base", "p50k_base", "r50k_base", "word":
	default:
		errs = append(errs, fmt.Errorf("unknown ingest.tokenizer %q", c.Ingest.Tokenizer))
	}

	if c.Retrieve.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieve.top_k must be > 0"))
	}
	if c.Retrieve.ExposedChunks < 0 {
		errs = append(errs, fmt.Errorf("retrieve.exposed_chunks must be >= 0"))
	}
	if c.Retrieve.QueryCacheSize < 0 {
		errs = append(errs, fmt.Errorf("retrieve.query_cache_size must be >= 0"))
	}

	if c.Synthesis.MaxContextChunks <= 0 {
		errs = append(errs, fmt.Errorf("synthesis.max_context_chunks must be > 0"))
	}
	if c.Synthesis.MaxChunkChars <= 0 {
		errs = append(errs, fmt.Errorf("synthesis.max_chunk_chars must be > 0"))
	}

	switch c.Embedding.Provider {
	case "openai", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding.batch_size must be > 0"))
	}

	if c.LLM.Model == "" {
		errs = append(errs, fmt.Errorf("llm.model is required"))
	}

	switch c.Store.Backend {
	case "bolt", "memory":
	case "mongo":
		if c.Store.MongoURL == "" || c.Store.Database == "" || c.Store.Collection == "" {
			errs = append(errs, fmt.Errorf("store.mongo_url, store.database and store.collection are required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}

	switch c.Logging.Level {
	case "debug", "info", "off":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// EmbeddingTimeout is the bound on one embedding call.
func (c *Config) EmbeddingTimeout() time.Duration {
	return secondsOr(c.Embedding.TimeoutSecs, 30)
}

// QueryCacheTTL is how long a cached query embedding stays valid.
func (c *Config) QueryCacheTTL() time.Duration {
	return secondsOr(c.Retrieve.QueryCacheTTLSecs, 300)
}

// LLMTimeout is the bound on one generative model call.
func (c *Config) LLMTimeout() time.Duration {
	return secondsOr(c.LLM.TimeoutSecs, 60)
}

func secondsOr(secs, fallback int) time.Duration {
	if secs <= 0 {
		secs = fallback
	}
	return time.Duration(secs) * time.Second
}

// DataDir returns the directory holding local state for dir.
func DataDir(dir string) string {
	return filepath.Join(dir, ".biorag")
}

// DBPath returns the path to the bolt database for dir.
func (c *Config) DBPath(dir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(DataDir(dir), c.Store.Path)
}

// EnsureDataDir ensures the .biorag directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(DataDir(dir), 0755)
}
