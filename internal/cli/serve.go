package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"biorag/internal/server"
	"biorag/internal/telemetry"
)

var (
	serveAddr   string
	serveIngest string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP search API",
	Long: `Serve POST /search, /health, /test-llm and /metrics.

With the memory store backend, --ingest loads a folder before serving.

Examples:
  biorag serve
  biorag serve --addr :9000
  BIORAG_STORE_BACKEND=memory biorag serve --ingest ./papers`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveIngest, "ingest", "", "ingest this folder before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := storeRead
	if serveIngest != "" {
		mode = storeWrite
	}
	st, err := openStore(ctx, cfg, GetRootDir(), mode)
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	model, err := newLLM(cfg)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	metrics := telemetry.NewMetrics()

	if serveIngest != "" {
		path, err := filepath.Abs(serveIngest)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		ingestUC, err := newIngestUseCase(cfg, st, embedder)
		if err != nil {
			return err
		}
		ingestUC.SetObserver(metrics)
		summary, err := ingestUC.Ingest(ctx, path, nil)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		printIngestSummary(summary)
	}

	answerUC := newAnswerUseCase(cfg, st, embedder, model)
	answerUC.SetObserver(metrics)

	srv := server.New(server.Deps{
		Answers: answerUC,
		Store:   st,
		LLM:     model,
		Metrics: metrics,
		Logger:  logs.Logger("HTTP"),
	})

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Address
	}
	return srv.Run(ctx, addr)
}
