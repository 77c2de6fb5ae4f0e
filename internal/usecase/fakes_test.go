package usecase

import (
	"context"
	"sync"
	"time"

	"biorag/internal/port"
)

type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    int
	lastReq  port.CompletionRequest
	deadline bool
}

func (f *fakeLLM) Complete(ctx context.Context, req port.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.lastReq = req
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) ModelName() string { return "fake-llm" }

// slowLLM blocks until its context ends.
type slowLLM struct{}

func (slowLLM) Complete(ctx context.Context, req port.CompletionRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (slowLLM) ModelName() string { return "slow" }

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 0}
		}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int    { return 2 }
func (f *fakeEmbedder) ModelName() string { return "fake-embedder" }

type recordingObserver struct {
	mu        sync.Mutex
	stages    []string
	outcomes  []string
	fallbacks []string
}

func (o *recordingObserver) ObserveStage(stage string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
}

func (o *recordingObserver) ObserveOutcome(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) ObserveFallback(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks = append(o.fallbacks, reason)
}
