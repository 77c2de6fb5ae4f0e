package port

import "context"

// CompletionRequest is a single system+user exchange with a generative model.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// LLM represents a language model for text generation.
type LLM interface {
	// Complete returns the raw text of the model reply. The reply is not
	// guaranteed to be well-formed in any way.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}

// Pinger is implemented by collaborators that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
