package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"biorag/internal/domain"
	"biorag/internal/port"
)

const answerSystemPrompt = `You are a scientific research assistant for space biology literature. Reply with a single JSON object and nothing else.

Rules:
1. Output valid JSON only, with no prose, headings or markdown around it.
2. Use exactly the field names below and include every field.
3. Use double quotes for all strings.

Schema:
{
  "organism_name": "string",
  "condition": "string",
  "description": "string",
  "scientific_details": {
    "classification": "string",
    "response_mechanisms": ["string"],
    "experimental_findings": "string",
    "applications": "string"
  },
  "relevant_chunks": ["string"]
}

Example:
{
  "organism_name": "Escherichia coli",
  "condition": "microgravity",
  "description": "E. coli grown in microgravity shows higher antibiotic resistance linked to altered gene expression.",
  "scientific_details": {
    "classification": "Bacteria",
    "response_mechanisms": ["gene expression changes", "altered protein synthesis"],
    "experimental_findings": "Increased resistance to ampicillin and tetracycline in flight cultures.",
    "applications": "Space medicine, antibiotic development"
  },
  "relevant_chunks": ["E. coli in microgravity shows..."]
}`

// SynthesisOptions bound the context sent to the model and the request made.
type SynthesisOptions struct {
	MaxContextChunks int
	MinChunkChars    int
	MaxChunkChars    int
	Temperature      float64
	MaxTokens        int
	Timeout          time.Duration
}

// DefaultSynthesisOptions returns the reference limits: three chunks, at least
// ten and at most a thousand characters each, temperature 0.1.
func DefaultSynthesisOptions() SynthesisOptions {
	return SynthesisOptions{
		MaxContextChunks: 3,
		MinChunkChars:    10,
		MaxChunkChars:    1000,
		Temperature:      0.1,
		MaxTokens:        2000,
		Timeout:          60 * time.Second,
	}
}

// Synthesizer turns ranked chunks into a structured answer using a generative
// model. It never returns an error; every failure becomes a fallback answer.
type Synthesizer struct {
	llm    port.LLM
	opts   SynthesisOptions
	logger *log.Logger
}

func NewSynthesizer(llm port.LLM, opts SynthesisOptions, logger *log.Logger) *Synthesizer {
	if logger == nil {
		logger = log.New(log.Writer(), "[SYNTH] ", log.LstdFlags)
	}
	return &Synthesizer{llm: llm, opts: opts, logger: logger}
}

// Synthesize answers query from the top ranked chunks. The model is not called
// when there is no usable context.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, ranked []domain.RankedMatch, condition string) domain.SynthesizedAnswer {
	if len(ranked) == 0 {
		return FallbackAnswer(ReasonNoContext, query, condition)
	}

	contextBlock := s.BuildContext(ranked)
	if strings.TrimSpace(contextBlock) == "" {
		s.logger.Printf("no usable chunk content among %d matches", len(ranked))
		return FallbackAnswer(ReasonNoValidContent, query, condition)
	}

	req := port.CompletionRequest{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   buildUserPrompt(query, condition, contextBlock),
		Temperature:  s.opts.Temperature,
		MaxTokens:    s.opts.MaxTokens,
	}

	callCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	reply, err := s.llm.Complete(callCtx, req)
	if err != nil {
		s.logger.Printf("model call failed: %v", err)
		return FallbackAnswer(ReasonModelError, query, condition)
	}

	answer := NormalizeAnswer(reply, query, condition)
	if answer.IsFallback() {
		s.logger.Printf("model reply unusable (%s): %q", answer.FallbackReason, preview(reply, 200))
	}
	return answer
}

// BuildContext renders the top ranked chunks as numbered sections separated
// by blank lines. Chunks with too little content are skipped but keep their
// number; long content is cut and marked with "...".
func (s *Synthesizer) BuildContext(ranked []domain.RankedMatch) string {
	limit := s.opts.MaxContextChunks
	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}

	var parts []string
	for i, m := range ranked[:limit] {
		content := strings.TrimSpace(m.Chunk.Content)
		if content == "" || utf8.RuneCountInString(content) < s.opts.MinChunkChars {
			continue
		}
		content = truncateRunes(content, s.opts.MaxChunkChars)

		organism := m.Chunk.Source.OrganismName
		if organism == "" {
			organism = "Unknown"
		}
		cond := m.Chunk.Source.Condition
		if cond == "" {
			cond = "Not specified"
		}

		parts = append(parts, fmt.Sprintf("--- Chunk %d ---\nOrganism: %s\nCondition: %s\nContent: %s",
			i+1, organism, cond, content))
	}

	return strings.Join(parts, "\n\n")
}

func buildUserPrompt(query, condition, contextBlock string) string {
	if strings.TrimSpace(condition) == "" {
		condition = "Any condition"
	}

	var b strings.Builder
	b.WriteString("Analyze the scientific data below and answer with the JSON object only.\n\n")
	fmt.Fprintf(&b, "Query: %s\n", query)
	fmt.Fprintf(&b, "Condition: %s\n\n", condition)
	b.WriteString("Data:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nReturn JSON only.")
	return b.String()
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
