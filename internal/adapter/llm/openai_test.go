package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"

	"biorag/internal/port"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newChatServer(t *testing.T, reply string, got *chatRequest) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode request: %v", err)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 1,
				"model":   got.Model,
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": reply},
				}},
				"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
			})
		case strings.HasSuffix(r.URL.Path, "/models"):
			w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o","object":"model","created":1,"owned_by":"test"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"not found"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIChatComplete(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "k")

	var got chatRequest
	srv := newChatServer(t, `{"organism_name":"Mus musculus"}`, &got)

	c, err := NewOpenAIChat("TEST_LLM_KEY", "gpt-4o", srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	reply, err := c.Complete(context.Background(), port.CompletionRequest{
		SystemPrompt: "system text",
		UserPrompt:   "user text",
		Temperature:  0.1,
		MaxTokens:    2000,
	})
	if err != nil {
		t.Fatal(err)
	}

	if reply != `{"organism_name":"Mus musculus"}` {
		t.Errorf("unexpected reply %q", reply)
	}

	if got.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", got.Model)
	}
	if got.Temperature != 0.1 {
		t.Errorf("expected temperature 0.1, got %f", got.Temperature)
	}
	if got.MaxTokens != 2000 {
		t.Errorf("expected max_tokens 2000, got %d", got.MaxTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	if got.Messages[1].Content != "user text" {
		t.Errorf("unexpected user message %q", got.Messages[1].Content)
	}

	stats := c.Stats()
	if stats.TotalCalls != 1 || stats.TotalInputTokens != 12 || stats.TotalOutputTokens != 4 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestOpenAIChatFailure(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "k")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":{"message":"upstream down"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIChat("TEST_LLM_KEY", "gpt-4o", srv.URL, option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Complete(context.Background(), port.CompletionRequest{UserPrompt: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if stats := c.Stats(); stats.FailedCalls != 1 {
		t.Errorf("expected 1 failed call, got %d", stats.FailedCalls)
	}
}

func TestOpenAIChatPing(t *testing.T) {
	var got chatRequest
	srv := newChatServer(t, "", &got)

	c, err := NewOpenAIChat("", "gpt-4o", srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestNewOpenAIChatValidation(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "")

	if _, err := NewOpenAIChat("TEST_LLM_KEY", "gpt-4o", ""); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := NewOpenAIChat("", "", ""); err == nil {
		t.Error("expected error for missing model")
	}
}
