package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"biorag/config"
	"biorag/internal/adapter/embedding"
	"biorag/internal/adapter/mongostore"
	"biorag/internal/adapter/retriever"
	"biorag/internal/adapter/store"
	"biorag/internal/domain"
	"biorag/internal/port"
)

func main() {
	dataDir := flag.String("dir", ".", "Path to the data root directory")
	query := flag.String("q", "", "Query to test")
	condition := flag.String("condition", "", "Optional condition filter")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./papers -q \"query\" [-condition radiation]")
		fmt.Println("\nReports:")
		fmt.Println("  1. Embedding infrastructure (model connection, stored vectors)")
		fmt.Println("  2. Ranking by raw dot product, as used by search")
		fmt.Println("  3. The same candidates ranked by cosine similarity")
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadFromDir(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, err := openStore(ctx, cfg, *dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder not available: %v\n", err)
		os.Exit(1)
	}

	filter := domain.NewTagFilter(*condition)
	candidates, err := st.AllChunksWithEmbeddings(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading chunks: %v\n", err)
		os.Exit(1)
	}
	if len(candidates) == 0 {
		fmt.Fprintln(os.Stderr, "No embedded chunks - run 'biorag ingest' first")
		os.Exit(1)
	}

	fmt.Println("SIMILARITY BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Embedded chunks: %d\n", len(candidates))
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", embedder.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	if filter != nil {
		fmt.Printf("Condition: %s\n", filter)
	}
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	queryVec, err := embedder.Embed(ctx, []string{*query})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Query embedded: %d dimensions in %s\n\n", len(queryVec[0]), time.Since(start).Round(time.Millisecond))

	start = time.Now()
	results := retriever.NewSimilarityRanker().Rank(queryVec[0], candidates, *topK, filter)
	rankTime := time.Since(start)

	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}

	fmt.Printf("Top %d matches (ranked by dot product in %s):\n\n", len(results), rankTime.Round(time.Microsecond))

	var totalDot, totalCos float64
	for i, r := range results {
		cos := retriever.Cosine(queryVec[0], r.Chunk.Embedding)
		totalDot += r.Score
		totalCos += cos

		preview := strings.ReplaceAll(r.Chunk.Content, "\n", " ")
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}

		fmt.Printf("%d. [dot %.3f | cos %.3f | %s] %s #%d (%s)\n", i+1, r.Score, cos, rating(cos),
			r.Chunk.Source.Filename, r.Chunk.Index, r.Chunk.Source.Condition)
		fmt.Printf("   %s\n\n", preview)
	}

	byCosine := rankByCosine(queryVec[0], candidates, len(results), filter)
	agree := 0
	for i := range results {
		if results[i].Chunk.ID == byCosine[i].Chunk.ID {
			agree++
		}
	}

	n := float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average dot product:  %.3f\n", totalDot/n)
	fmt.Printf("  Average cosine:       %.3f\n", totalCos/n)
	fmt.Printf("  Top-1 dot product:    %.3f\n", results[0].Score)
	fmt.Printf("  Same rank under both: %d/%d\n", agree, len(results))

	if agree == len(results) {
		fmt.Println("  Vectors look unit-length: dot and cosine agree")
	} else {
		fmt.Println("  Rankings differ: stored vectors are not normalised")
	}
}

func rating(similarity float64) string {
	switch {
	case similarity > 0.7:
		return "HIGH"
	case similarity > 0.5:
		return "GOOD"
	case similarity > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}

// rankByCosine ranks normalised copies of the candidates, so the dot product
// computed by the ranker equals their cosine similarity.
func rankByCosine(query []float32, candidates []domain.Chunk, topK int, filter *domain.TagFilter) []domain.RankedMatch {
	normalised := make([]domain.Chunk, len(candidates))
	for i, c := range candidates {
		c.Embedding = unit(c.Embedding)
		normalised[i] = c
	}
	return retriever.NewSimilarityRanker().Rank(unit(query), normalised, topK, filter)
}

func unit(v []float32) []float32 {
	norm := retriever.Dot(v, v)
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * scale
	}
	return out
}

func openStore(ctx context.Context, cfg *config.Config, dir string) (port.ChunkStore, error) {
	switch cfg.Store.Backend {
	case "mongo":
		return mongostore.Open(ctx, cfg.Store.MongoURL, cfg.Store.Database, cfg.Store.Collection)
	case "bolt":
		dbPath := cfg.DBPath(dir)
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("no index at %s: %w", dbPath, err)
		}
		return store.NewBoltStore(dbPath)
	default:
		return nil, fmt.Errorf("benchmark needs a persistent store, got %q", cfg.Store.Backend)
	}
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embedding.NewOpenAICompatibleEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Embedding.Provider)
	}
}
