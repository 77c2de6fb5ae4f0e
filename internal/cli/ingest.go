package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"biorag/internal/adapter/store"
	"biorag/internal/usecase"
)

var ingestResultsFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest documents into the chunk store",
	Long: `Extract, chunk and embed the PDF and text documents under path. Unchanged
files are skipped and documents whose files were removed are deleted.

Examples:
  biorag ingest .                              # Ingest current directory
  biorag ingest ./papers --results out.json    # Also write a JSON summary`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestResultsFile, "results", "", "write the processing summary as JSON to this file")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	cfg := GetConfig()
	ctx := cmd.Context()

	st, err := openStore(ctx, cfg, GetRootDir(), storeWrite)
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	ingestUC, err := newIngestUseCase(cfg, st, embedder)
	if err != nil {
		return err
	}

	fmt.Printf("Scanning %s...\n", path)
	fmt.Printf("Embedding with %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)

	summary, err := ingestUC.Ingest(ctx, path, newIngestProgress())
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if bolt, ok := st.(*store.BoltStore); ok {
		if err := bolt.Migrate(cfg); err != nil {
			return fmt.Errorf("failed to update schema info: %w", err)
		}
	}

	printIngestSummary(summary)

	if ingestResultsFile != "" {
		if err := writeSummary(ingestResultsFile, summary); err != nil {
			return err
		}
		fmt.Printf("\nSummary written to: %s\n", ingestResultsFile)
	}

	if cfg.Store.Backend == "bolt" {
		fmt.Printf("\nIndex stored at: %s\n", cfg.DBPath(GetRootDir()))
	}
	return nil
}

// newIngestProgress draws a progress bar that is created once the file count
// is known.
func newIngestProgress() usecase.ProgressFunc {
	var (
		bar       *progressbar.ProgressBar
		mu        sync.Mutex
		startTime time.Time
	)

	return func(done, total int, current string) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		_ = bar.Set(done)

		elapsed := time.Since(startTime)
		if done > 0 && elapsed > 0 {
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] %s ETA: %s", filepath.Base(current), formatDuration(eta)))
			}
		}
	}
}

func printIngestSummary(s *usecase.IngestSummary) {
	fmt.Printf("\nIngestion complete in %s:\n", formatDuration(s.Duration))
	fmt.Printf("  Files found:     %d\n", s.Files)
	fmt.Printf("  Files ingested:  %d\n", s.Succeeded)
	fmt.Printf("  Files skipped:   %d (unchanged)\n", s.Skipped)
	fmt.Printf("  Files deleted:   %d (removed)\n", s.Deleted)
	fmt.Printf("  Files failed:    %d\n", s.Failed)
	fmt.Printf("  Chunks created:  %d\n", s.ChunksCreated)
	fmt.Printf("  Chunks embedded: %d\n", s.ChunksEmbedded)

	var warned bool
	for _, r := range s.Results {
		if r.Status != usecase.FileFailed {
			continue
		}
		if !warned {
			fmt.Printf("\nWarnings:\n")
			warned = true
		}
		fmt.Printf("  - %s: %s\n", r.Path, r.Error)
	}
}

func writeSummary(path string, s *usecase.IngestSummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
