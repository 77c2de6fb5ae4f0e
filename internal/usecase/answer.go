package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"biorag/internal/adapter/retriever"
	"biorag/internal/domain"
	"biorag/internal/port"
)

var (
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrEmbedding wraps failures of the query embedding call.
	ErrEmbedding = errors.New("failed to embed query")
	// ErrChunkStore wraps failures reading candidate chunks.
	ErrChunkStore = errors.New("failed to read chunk store")
	// ErrNoRelevantData means ranking found no candidate. It is an expected
	// outcome, not a failure.
	ErrNoRelevantData = errors.New("no relevant data found")
)

// Pipeline stages reported to an Observer.
const (
	StageEmbed      = "embed"
	StageRetrieve   = "retrieve"
	StageRank       = "rank"
	StageSynthesize = "synthesize"
)

// Pipeline outcomes reported to an Observer.
const (
	OutcomeAnswered = "answered"
	OutcomeFallback = "fallback"
	OutcomeNoData   = "no_data"
	OutcomeError    = "error"
)

// Observer receives pipeline measurements. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveStage(stage string, d time.Duration)
	ObserveOutcome(outcome string)
	ObserveFallback(reason string)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration) {}
func (nopObserver) ObserveOutcome(string)              {}
func (nopObserver) ObserveFallback(string)             {}

// AnswerOptions configure retrieval.
type AnswerOptions struct {
	TopK          int
	ExposedChunks int
	EmbedTimeout  time.Duration
	StoreTimeout  time.Duration
}

// DefaultAnswerOptions returns top 5 retrieval with 3 exposed chunks.
func DefaultAnswerOptions() AnswerOptions {
	return AnswerOptions{
		TopK:          5,
		ExposedChunks: 3,
		EmbedTimeout:  30 * time.Second,
		StoreTimeout:  30 * time.Second,
	}
}

// AnswerResult is the shaped answer plus the matches it was built from.
type AnswerResult struct {
	Answer  domain.SynthesizedAnswer
	Matches []domain.RankedMatch
}

// AnswerUseCase runs one query through embed, rank, synthesize and shape.
// It holds no per-request state and is safe for concurrent use.
type AnswerUseCase struct {
	embedder    port.Embedder
	store       port.ChunkStore
	ranker      *retriever.SimilarityRanker
	synthesizer *Synthesizer
	opts        AnswerOptions
	observer    Observer
	logger      *log.Logger
}

func NewAnswerUseCase(
	embedder port.Embedder,
	store port.ChunkStore,
	ranker *retriever.SimilarityRanker,
	synthesizer *Synthesizer,
	opts AnswerOptions,
	logger *log.Logger,
) *AnswerUseCase {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	return &AnswerUseCase{
		embedder:    embedder,
		store:       store,
		ranker:      ranker,
		synthesizer: synthesizer,
		opts:        opts,
		observer:    nopObserver{},
		logger:      logger,
	}
}

// SetObserver replaces the measurement sink. A nil observer disables it.
func (u *AnswerUseCase) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	u.observer = o
}

// Answer resolves query against the stored chunks. Embedding and store
// failures are returned wrapped in ErrEmbedding and ErrChunkStore. An empty
// ranking returns ErrNoRelevantData. Model failures never surface as errors:
// the answer is a fallback with FallbackReason set.
func (u *AnswerUseCase) Answer(ctx context.Context, query, condition string) (*AnswerResult, error) {
	query = strings.TrimSpace(query)
	condition = strings.TrimSpace(condition)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	vector, err := u.embedQuery(ctx, query)
	if err != nil {
		u.observer.ObserveOutcome(OutcomeError)
		return nil, err
	}

	filter := domain.NewTagFilter(condition)

	start := time.Now()
	candidates, err := u.loadCandidates(ctx, filter)
	u.observer.ObserveStage(StageRetrieve, time.Since(start))
	if err != nil {
		u.observer.ObserveOutcome(OutcomeError)
		return nil, fmt.Errorf("%w: %w", ErrChunkStore, err)
	}

	start = time.Now()
	matches := u.ranker.Rank(vector, candidates, u.opts.TopK, filter)
	u.observer.ObserveStage(StageRank, time.Since(start))

	if len(matches) == 0 {
		u.logger.Printf("no matches for %q (condition %q, %d candidates)", query, condition, len(candidates))
		u.observer.ObserveOutcome(OutcomeNoData)
		return nil, ErrNoRelevantData
	}

	start = time.Now()
	answer := u.synthesizer.Synthesize(ctx, query, matches, condition)
	u.observer.ObserveStage(StageSynthesize, time.Since(start))

	if answer.IsFallback() {
		u.observer.ObserveFallback(answer.FallbackReason)
		u.observer.ObserveOutcome(OutcomeFallback)
	} else {
		u.observer.ObserveOutcome(OutcomeAnswered)
	}

	return &AnswerResult{
		Answer:  u.shape(answer, matches, condition),
		Matches: matches,
	}, nil
}

func (u *AnswerUseCase) embedQuery(ctx context.Context, query string) ([]float32, error) {
	callCtx, cancel := withTimeout(ctx, u.opts.EmbedTimeout)
	defer cancel()

	start := time.Now()
	vectors, err := u.embedder.Embed(callCtx, []string{query})
	u.observer.ObserveStage(StageEmbed, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vector", ErrEmbedding)
	}
	return vectors[0], nil
}

func (u *AnswerUseCase) loadCandidates(ctx context.Context, filter *domain.TagFilter) ([]domain.Chunk, error) {
	callCtx, cancel := withTimeout(ctx, u.opts.StoreTimeout)
	defer cancel()
	return u.store.AllChunksWithEmbeddings(callCtx, filter)
}

// shape builds the externally visible answer: the requested condition fills
// an empty one, and relevant_chunks lists the retrieved contents, not the
// model's own list.
func (u *AnswerUseCase) shape(answer domain.SynthesizedAnswer, matches []domain.RankedMatch, condition string) domain.SynthesizedAnswer {
	if strings.TrimSpace(answer.Condition) == "" {
		answer.Condition = conditionOrDefault(condition)
	}

	n := u.opts.ExposedChunks
	if n > len(matches) {
		n = len(matches)
	}
	if n < 0 {
		n = 0
	}
	exposed := make([]string, 0, n)
	for _, m := range matches[:n] {
		exposed = append(exposed, m.Chunk.Content)
	}
	answer.RelevantChunks = exposed

	return answer
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
