package usecase

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"biorag/internal/domain"
)

var quietLogger = log.New(io.Discard, "", 0)

func match(content, organism, condition string, score float64) domain.RankedMatch {
	return domain.RankedMatch{
		Chunk: domain.Chunk{
			Content: content,
			Source:  domain.SourceMetadata{OrganismName: organism, Condition: condition},
		},
		Score: score,
	}
}

const validReply = `{"organism_name":"Mus musculus","condition":"microgravity","description":"Mice lose bone.",
"scientific_details":{"classification":"Mammal","response_mechanisms":["osteoclast activity"],
"experimental_findings":"Lower density","applications":"Crew health"},"relevant_chunks":["model chunk"]}`

func TestSynthesizeNoMatchesSkipsModel(t *testing.T) {
	llm := &fakeLLM{reply: validReply}
	s := NewSynthesizer(llm, DefaultSynthesisOptions(), quietLogger)

	a := s.Synthesize(context.Background(), "bone loss", nil, "")

	if llm.calls != 0 {
		t.Errorf("expected no model call, got %d", llm.calls)
	}
	if a.FallbackReason != ReasonNoContext {
		t.Errorf("expected %s fallback, got %q", ReasonNoContext, a.FallbackReason)
	}
}

func TestSynthesizeNoValidContentSkipsModel(t *testing.T) {
	llm := &fakeLLM{reply: validReply}
	s := NewSynthesizer(llm, DefaultSynthesisOptions(), quietLogger)

	ranked := []domain.RankedMatch{
		match("short", "Unknown", "", 0.9),
		match("   ", "Unknown", "", 0.8),
		match("", "Unknown", "", 0.7),
		match("this fourth chunk is long enough but outside the top three", "Unknown", "", 0.6),
	}

	a := s.Synthesize(context.Background(), "q", ranked, "radiation")

	if llm.calls != 0 {
		t.Errorf("expected no model call, got %d", llm.calls)
	}
	if a.FallbackReason != ReasonNoValidContent {
		t.Errorf("expected %s fallback, got %q", ReasonNoValidContent, a.FallbackReason)
	}
	if a.Condition != "radiation" {
		t.Errorf("expected requested condition, got %q", a.Condition)
	}
}

func TestSynthesizeBuildsRequest(t *testing.T) {
	llm := &fakeLLM{reply: validReply}
	s := NewSynthesizer(llm, DefaultSynthesisOptions(), quietLogger)

	long := strings.Repeat("x", 1500)
	ranked := []domain.RankedMatch{
		match("Mice aboard the station lost trabecular bone.", "Mus musculus", "microgravity", 0.9),
		match("tiny", "Unknown", "", 0.8),
		match(long, "Danio rerio", "radiation", 0.7),
		match("A fourth chunk that must never reach the model context.", "Unknown", "", 0.6),
	}

	a := s.Synthesize(context.Background(), "bone loss in mice", ranked, "")

	if llm.calls != 1 {
		t.Fatalf("expected one model call, got %d", llm.calls)
	}
	if a.IsFallback() {
		t.Fatalf("expected parsed answer, got %s", a.FallbackReason)
	}
	if a.OrganismName != "Mus musculus" {
		t.Errorf("unexpected organism %q", a.OrganismName)
	}

	req := llm.lastReq
	if req.Temperature != 0.1 {
		t.Errorf("expected temperature 0.1, got %f", req.Temperature)
	}
	if req.MaxTokens != 2000 {
		t.Errorf("expected max tokens 2000, got %d", req.MaxTokens)
	}
	if !strings.Contains(req.SystemPrompt, `"scientific_details"`) {
		t.Error("system prompt should describe the answer schema")
	}

	user := req.UserPrompt
	for _, want := range []string{
		"Query: bone loss in mice",
		"Condition: Any condition",
		"--- Chunk 1 ---\nOrganism: Mus musculus\nCondition: microgravity\nContent: Mice aboard the station lost trabecular bone.",
		"--- Chunk 3 ---\nOrganism: Danio rerio\nCondition: radiation\nContent: " + strings.Repeat("x", 1000) + "...",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
	if strings.Contains(user, "Chunk 2") || strings.Contains(user, "tiny") {
		t.Error("short chunk should be skipped")
	}
	if strings.Contains(user, "fourth chunk") {
		t.Error("only the top three chunks may be used")
	}
	if strings.Contains(user, strings.Repeat("x", 1001)) {
		t.Error("chunk content should be truncated to 1000 characters")
	}
	if !llm.deadline {
		t.Error("model call should carry a deadline")
	}
}

func TestBuildContextSeparatesWithBlankLine(t *testing.T) {
	s := NewSynthesizer(&fakeLLM{}, DefaultSynthesisOptions(), quietLogger)

	got := s.BuildContext([]domain.RankedMatch{
		match("first chunk content", "", "", 1),
		match("second chunk content", "Danio rerio", "hypoxia", 0.5),
	})

	want := "--- Chunk 1 ---\nOrganism: Unknown\nCondition: Not specified\nContent: first chunk content" +
		"\n\n" +
		"--- Chunk 2 ---\nOrganism: Danio rerio\nCondition: hypoxia\nContent: second chunk content"
	if got != want {
		t.Errorf("unexpected context:\n%s\nwant:\n%s", got, want)
	}
}

func TestSynthesizeModelFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("503 service unavailable")}
	s := NewSynthesizer(llm, DefaultSynthesisOptions(), quietLogger)

	a := s.Synthesize(context.Background(), "q", []domain.RankedMatch{
		match("a chunk with plenty of content", "Unknown", "", 1),
	}, "hypoxia")

	if a.FallbackReason != ReasonModelError {
		t.Errorf("expected %s fallback, got %q", ReasonModelError, a.FallbackReason)
	}
	if a.ScientificDetails.ExperimentalFindings != "Error in LLM processing" {
		t.Errorf("unexpected findings %q", a.ScientificDetails.ExperimentalFindings)
	}
	if a.Condition != "hypoxia" {
		t.Errorf("expected requested condition, got %q", a.Condition)
	}
}

func TestSynthesizeModelTimeout(t *testing.T) {
	opts := DefaultSynthesisOptions()
	opts.Timeout = 20 * time.Millisecond
	s := NewSynthesizer(slowLLM{}, opts, quietLogger)

	start := time.Now()
	a := s.Synthesize(context.Background(), "q", []domain.RankedMatch{
		match("a chunk with plenty of content", "Unknown", "", 1),
	}, "")

	if a.FallbackReason != ReasonModelError {
		t.Errorf("expected timeout to degrade to %s, got %q", ReasonModelError, a.FallbackReason)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout was not applied")
	}
}

func TestSynthesizeMalformedReply(t *testing.T) {
	tests := []struct {
		reply  string
		reason string
	}{
		{"", ReasonEmptyResponse},
		{"no json here", ReasonParseError},
		{"```json\n{\"organism_name\":\"Danio rerio\"}\n```", ""},
	}

	for _, tt := range tests {
		s := NewSynthesizer(&fakeLLM{reply: tt.reply}, DefaultSynthesisOptions(), quietLogger)
		a := s.Synthesize(context.Background(), "q", []domain.RankedMatch{
			match("a chunk with plenty of content", "Unknown", "", 1),
		}, "")

		if a.FallbackReason != tt.reason {
			t.Errorf("reply %q: expected reason %q, got %q", tt.reply, tt.reason, a.FallbackReason)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo wörld", 5); got != "héllo..." {
		t.Errorf("unexpected truncation %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("unexpected truncation %q", got)
	}
}
