package cli

import (
	"context"
	"fmt"
	"os"

	"biorag/config"
	"biorag/internal/adapter/analyzer"
	"biorag/internal/adapter/cache"
	"biorag/internal/adapter/chunker"
	"biorag/internal/adapter/embedding"
	"biorag/internal/adapter/extract"
	"biorag/internal/adapter/fs"
	"biorag/internal/adapter/llm"
	"biorag/internal/adapter/memstore"
	"biorag/internal/adapter/mongostore"
	"biorag/internal/adapter/retriever"
	"biorag/internal/adapter/store"
	"biorag/internal/port"
	"biorag/internal/usecase"
)

// storeMode says whether the caller writes to the store or only reads it.
type storeMode int

const (
	storeRead storeMode = iota
	storeWrite
)

// openStore opens the configured chunk store. A bolt store opened for
// writing is migrated, and cleared when its chunking or embedding settings
// changed; opened for reading it must already exist.
func openStore(ctx context.Context, cfg *config.Config, dir string, mode storeMode) (port.ChunkStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		return memstore.NewMemoryStore(), nil

	case "mongo":
		st, err := mongostore.Open(ctx, cfg.Store.MongoURL, cfg.Store.Database, cfg.Store.Collection)
		if err != nil {
			return nil, err
		}
		if mode == storeWrite {
			if err := st.EnsureIndexes(ctx); err != nil {
				st.Close()
				return nil, fmt.Errorf("failed to create indexes: %w", err)
			}
		}
		return st, nil

	case "bolt":
		dbPath := cfg.DBPath(dir)
		if mode == storeRead {
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				return nil, fmt.Errorf("no index found at %s. Run 'biorag ingest' first", dbPath)
			}
		} else if err := config.EnsureDataDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}

		st, err := store.NewBoltStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open index store: %w", err)
		}

		migration, err := st.CheckMigration(cfg)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to check migration: %w", err)
		}
		switch {
		case migration.NeedsRebuild && mode == storeWrite:
			fmt.Printf("Index rebuild required: %s\n", migration.Reason)
			fmt.Println("Clearing existing index...")
			if err := st.Clear(); err != nil {
				st.Close()
				return nil, fmt.Errorf("failed to clear index: %w", err)
			}
		case migration.NeedsRebuild:
			fmt.Fprintf(os.Stderr, "Warning: %s; re-run 'biorag ingest' to rebuild the index\n", migration.Reason)
		case migration.NeedsMigration && mode == storeWrite:
			if err := st.Migrate(cfg); err != nil {
				st.Close()
				return nil, fmt.Errorf("migration failed: %w", err)
			}
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

func newTokenizer(cfg *config.Config) (port.Tokenizer, error) {
	if cfg.Ingest.Tokenizer == "word" {
		return analyzer.NewWordTokenizer(), nil
	}
	return analyzer.NewTiktokenTokenizer(cfg.Ingest.Tokenizer)
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embedding.NewOpenAICompatibleEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

func newLLM(cfg *config.Config) (*llm.OpenAIChat, error) {
	return llm.NewOpenAIChat(cfg.LLM.APIKeyEnv, cfg.LLM.Model, cfg.LLM.BaseURL)
}

func newIngestUseCase(cfg *config.Config, st port.ChunkStore, embedder port.Embedder) (*usecase.IngestUseCase, error) {
	tokenizer, err := newTokenizer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	chk, err := chunker.NewTokenChunker(cfg.Ingest.ChunkTokens, cfg.Ingest.ChunkOverlap, cfg.Ingest.MinChunkChars, tokenizer)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}

	return usecase.NewIngestUseCase(
		st,
		fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes),
		extract.NewMultiExtractor(),
		chk,
		tokenizer,
		embedder,
		usecase.IngestOptions{
			BatchSize:    cfg.Embedding.BatchSize,
			EmbedTimeout: cfg.EmbeddingTimeout(),
		},
		logs.Logger("INGEST"),
	), nil
}

func newAnswerUseCase(cfg *config.Config, st port.ChunkStore, embedder port.Embedder, model port.LLM) *usecase.AnswerUseCase {
	synth := usecase.NewSynthesizer(model, usecase.SynthesisOptions{
		MaxContextChunks: cfg.Synthesis.MaxContextChunks,
		MinChunkChars:    cfg.Synthesis.MinChunkChars,
		MaxChunkChars:    cfg.Synthesis.MaxChunkChars,
		Temperature:      cfg.Synthesis.Temperature,
		MaxTokens:        cfg.Synthesis.MaxTokens,
		Timeout:          cfg.LLMTimeout(),
	}, logs.Logger("SYNTH"))

	if cfg.Retrieve.QueryCacheSize > 0 {
		embedder = cache.NewCachedEmbedder(embedder, cache.NewQueryCache(cfg.Retrieve.QueryCacheSize, cfg.QueryCacheTTL()))
	}

	return usecase.NewAnswerUseCase(
		embedder,
		st,
		retriever.NewSimilarityRanker(),
		synth,
		usecase.AnswerOptions{
			TopK:          cfg.Retrieve.TopK,
			ExposedChunks: cfg.Retrieve.ExposedChunks,
			EmbedTimeout:  cfg.EmbeddingTimeout(),
			StoreTimeout:  cfg.EmbeddingTimeout(),
		},
		logs.Logger("PIPELINE"),
	)
}
