package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"biorag/config"
	"biorag/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	logs    *logging.Factory
)

var rootCmd = &cobra.Command{
	Use:   "biorag",
	Short: "Space biology literature search with retrieval-augmented answers",
	Long: `biorag ingests research papers (PDF and text), splits them into overlapping
token windows, embeds them, and answers organism questions by ranking the
stored chunks and asking a generative model for a structured JSON answer.

Example usage:
  biorag ingest ./papers                                  # Ingest a folder
  biorag ask -q "bone loss in mice" --condition microgravity
  biorag serve                                            # HTTP API on :8000`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		// Existing environment variables win over .env values.
		_ = godotenv.Load(filepath.Join(rootDir, ".env"))
		_ = godotenv.Load()

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.ApplyEnv()

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logs = logging.New(cfg.Logging.Level)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./biorag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "data root directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
