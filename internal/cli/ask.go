package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"biorag/internal/domain"
	"biorag/internal/usecase"
)

var (
	askQuery     string
	askCondition string
	askJSON      bool
	askShowScore bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer an organism question from the ingested documents",
	Long: `Embed the query, rank the stored chunks by similarity, and ask the model
for a structured answer.

Examples:
  biorag ask -q "how do plants sense gravity"
  biorag ask -q "DNA repair" --condition radiation --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuery, "query", "q", "", "question to answer (required)")
	askCmd.Flags().StringVarP(&askCondition, "condition", "c", "", "only use chunks whose condition matches this pattern")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	askCmd.Flags().BoolVar(&askShowScore, "scores", false, "also list the ranked chunks and their scores")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	st, err := openStore(ctx, cfg, GetRootDir(), storeRead)
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

	answerUC := newAnswerUseCase(cfg, st, embedder, model)

	res, err := answerUC.Answer(ctx, askQuery, askCondition)
	if errors.Is(err, usecase.ErrNoRelevantData) {
		fmt.Println("No relevant organism data found for the given query and condition.")
		return nil
	}
	if err != nil {
		return err
	}

	if askJSON {
		output, _ := json.MarshalIndent(res.Answer, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	printAnswer(res.Answer)
	if askShowScore {
		fmt.Println("\nRanked chunks:")
		for i, m := range res.Matches {
			fmt.Printf("  [%d] %.4f %s #%d\n", i+1, m.Score, m.Chunk.Source.Filename, m.Chunk.Index)
		}
	}
	return nil
}

func printAnswer(a domain.SynthesizedAnswer) {
	d := a.ScientificDetails

	fmt.Printf("Organism:    %s\n", a.OrganismName)
	fmt.Printf("Condition:   %s\n", a.Condition)
	fmt.Printf("Class:       %s\n\n", d.Classification)
	fmt.Println(a.Description)

	if len(d.ResponseMechanisms) > 0 {
		fmt.Printf("\nResponse mechanisms:\n")
		for _, m := range d.ResponseMechanisms {
			fmt.Printf("  - %s\n", m)
		}
	}
	fmt.Printf("\nFindings:     %s\n", d.ExperimentalFindings)
	fmt.Printf("Applications: %s\n", d.Applications)

	for i, c := range a.RelevantChunks {
		fmt.Printf("\n--- Source chunk %d ---\n", i+1)
		text := strings.TrimSpace(c)
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
	}
}
