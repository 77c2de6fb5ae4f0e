package llm

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"biorag/internal/port"
)

// Stats tracks model usage over the lifetime of a client.
type Stats struct {
	TotalCalls        int
	FailedCalls       int
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OpenAIChat is a chat-completions client for any OpenAI-compatible API.
type OpenAIChat struct {
	client openai.Client
	model  string

	mu    sync.Mutex
	stats Stats
}

// NewOpenAIChat creates a chat client. The API key is read from apiKeyEnv; an
// empty apiKeyEnv is allowed for local servers that do not authenticate.
func NewOpenAIChat(apiKeyEnv, model, baseURL string, opts ...option.RequestOption) (*OpenAIChat, error) {
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	apiKey := "none"
	if apiKeyEnv != "" {
		apiKey = os.Getenv(apiKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
		}
	}

	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	}, opts...)

	return &OpenAIChat{
		client: openai.NewClient(clientOpts...),
		model:  model,
	}, nil
}

// Complete sends the system message, when set, and the user message and
// returns the raw reply.
func (c *OpenAIChat) Complete(ctx context.Context, req port.CompletionRequest) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.record(false, 0, 0)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	c.record(true, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIChat) record(ok bool, in, out int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.TotalCalls++
	if !ok {
		c.stats.FailedCalls++
	}
	c.stats.TotalInputTokens += in
	c.stats.TotalOutputTokens += out
}

// Stats returns a snapshot of usage counters.
func (c *OpenAIChat) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Ping lists the models visible to the API key.
func (c *OpenAIChat) Ping(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (c *OpenAIChat) ModelName() string {
	return c.model
}
