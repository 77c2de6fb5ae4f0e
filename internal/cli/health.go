package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the chunk store and model endpoints",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "output as JSON")
}

type healthReport struct {
	Store    string `json:"store"`
	Chunks   int    `json:"chunks"`
	Embedded int    `json:"embedded"`
	LLM      string `json:"llm"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	report := healthReport{Store: "unknown", LLM: "unknown"}

	st, err := openStore(ctx, cfg, GetRootDir(), storeRead)
	if err != nil {
		report.Store = "error: " + err.Error()
	} else {
		defer st.Close()
		if err := st.Ping(ctx); err != nil {
			report.Store = "error: " + err.Error()
		} else if stats, err := st.Stats(ctx); err != nil {
			report.Store = "error: " + err.Error()
		} else {
			report.Store = "healthy"
			report.Chunks = stats.Chunks
			report.Embedded = stats.Embedded
		}
	}

	if model, err := newLLM(cfg); err != nil {
		report.LLM = "error: " + err.Error()
	} else if err := model.Ping(ctx); err != nil {
		report.LLM = "error: " + err.Error()
	} else {
		report.LLM = "healthy"
	}

	if healthJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Store (%s): %s\n", cfg.Store.Backend, report.Store)
	if report.Store == "healthy" {
		fmt.Printf("  Chunks:   %d\n", report.Chunks)
		fmt.Printf("  Embedded: %d\n", report.Embedded)
	}
	fmt.Printf("Model (%s): %s\n", cfg.LLM.Model, report.LLM)
	return nil
}
