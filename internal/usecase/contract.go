package usecase

import (
	"bytes"
	"encoding/json"
	"strings"

	"biorag/internal/adapter/analyzer"
	"biorag/internal/domain"
)

// Fallback reasons recorded on answers that did not come from a parsed model
// reply.
const (
	ReasonNoContext      = "no_context"
	ReasonNoValidContent = "no_valid_content"
	ReasonEmptyResponse  = "empty_response"
	ReasonParseError     = "parse_error"
	ReasonModelError     = "model_error"
)

const (
	unknownClassification = "Unknown"
	noData                = "No data available"
)

var fallbackTexts = map[string]struct{ description, findings string }{
	ReasonNoContext:      {"No relevant data found for query: ", noData},
	ReasonNoValidContent: {"No valid scientific content found for query: ", noData},
	ReasonEmptyResponse:  {"Unable to process query: ", "LLM returned empty response"},
	ReasonParseError:     {"Error processing response for query: ", "Error in LLM response processing"},
	ReasonModelError:     {"Error processing query: ", "Error in LLM processing"},
}

func conditionOrDefault(condition string) string {
	if strings.TrimSpace(condition) == "" {
		return analyzer.NoCondition
	}
	return condition
}

// FallbackAnswer builds the fully populated answer used when no model reply
// can be used. An unknown reason is treated as a parse error.
func FallbackAnswer(reason, query, condition string) domain.SynthesizedAnswer {
	texts, ok := fallbackTexts[reason]
	if !ok {
		reason = ReasonParseError
		texts = fallbackTexts[reason]
	}

	return domain.SynthesizedAnswer{
		OrganismName: analyzer.UnknownOrganism,
		Condition:    conditionOrDefault(condition),
		Description:  texts.description + query,
		ScientificDetails: domain.ScientificDetails{
			Classification:       unknownClassification,
			ResponseMechanisms:   []string{},
			ExperimentalFindings: texts.findings,
			Applications:         noData,
		},
		RelevantChunks: []string{},
		FallbackReason: reason,
	}
}

// NormalizeAnswer turns a raw model reply into a complete answer. It never
// fails: blank replies and replies without a parseable JSON object yield a
// fallback, and fields missing from a parsed object are filled one by one.
func NormalizeAnswer(raw, query, condition string) domain.SynthesizedAnswer {
	text := strings.TrimSpace(raw)
	if text == "" {
		return FallbackAnswer(ReasonEmptyResponse, query, condition)
	}

	text = stripCodeFence(text)
	if text == "" {
		return FallbackAnswer(ReasonEmptyResponse, query, condition)
	}

	if !strings.HasPrefix(text, "{") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return FallbackAnswer(ReasonParseError, query, condition)
		}
		text = text[start : end+1]
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return FallbackAnswer(ReasonParseError, query, condition)
	}

	defaults := FallbackAnswer(ReasonNoContext, query, condition)
	defaults.Description = "No description available for query: " + query
	defaults.FallbackReason = ""

	answer := defaults
	answer.OrganismName = stringField(obj, "organism_name", "organismName", defaults.OrganismName)
	answer.Condition = stringField(obj, "condition", "condition", defaults.Condition)
	answer.Description = stringField(obj, "description", "description", defaults.Description)
	answer.RelevantChunks = listField(obj, "relevant_chunks", "relevantChunks", defaults.RelevantChunks)

	if raw, ok := field(obj, "scientific_details", "scientificDetails"); ok {
		var details map[string]json.RawMessage
		if json.Unmarshal(raw, &details) == nil && details != nil {
			d := defaults.ScientificDetails
			answer.ScientificDetails = domain.ScientificDetails{
				Classification:       stringField(details, "classification", "classification", d.Classification),
				ResponseMechanisms:   listField(details, "response_mechanisms", "responseMechanisms", d.ResponseMechanisms),
				ExperimentalFindings: stringField(details, "experimental_findings", "experimentalFindings", d.ExperimentalFindings),
				Applications:         stringField(details, "applications", "applications", d.Applications),
			}
		}
	}

	return answer
}

// stripCodeFence removes a leading ``` marker line and a trailing ``` marker.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	body := strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		// single line: drop an info string such as "json" up to the payload
		body = strings.TrimLeft(body, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

// field looks a key up by its snake_case name, then its camelCase alias. A JSON
// null counts as absent.
func field(obj map[string]json.RawMessage, snake, camel string) (json.RawMessage, bool) {
	for _, key := range []string{snake, camel} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		return raw, true
	}
	return nil, false
}

func stringField(obj map[string]json.RawMessage, snake, camel, def string) string {
	raw, ok := field(obj, snake, camel)
	if !ok {
		return def
	}
	if s, ok := scalarText(raw); ok {
		return s
	}
	return def
}

// scalarText returns a JSON string's value, or the literal text of a number or
// boolean. Objects and arrays are rejected.
func scalarText(raw json.RawMessage) (string, bool) {
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", false
	default:
		return string(raw), true
	}
}

func listField(obj map[string]json.RawMessage, snake, camel string, def []string) []string {
	raw, ok := field(obj, snake, camel)
	if !ok {
		return def
	}

	if raw[0] != '[' {
		if s, ok := scalarText(raw); ok {
			return []string{s}
		}
		return def
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return def
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || bytes.Equal(item, []byte("null")) {
			continue
		}
		if s, ok := scalarText(item); ok {
			out = append(out, s)
			continue
		}
		var compact bytes.Buffer
		if json.Compact(&compact, item) == nil {
			out = append(out, compact.String())
		}
	}
	return out
}
