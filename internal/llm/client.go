// Package llm exposes the structured-completion capability the analysis
// stages run on. Providers (Anthropic, OpenAI) implement one interface so
// callers never branch on provider identity.
package llm

import (
	"context"
	"strings"
)

// Request is a single structured-completion request. Schema is the JSON
// schema (as text) the response must conform to; the provider embeds it in
// the system prompt and the caller validates the decoded result.
type Request struct {
	System      string
	Prompt      string
	Schema      string
	MaxTokens   int
	Temperature float64
}

// Response carries the raw model output plus usage accounting.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Client is the inference capability consumed by the stage runner.
type Client interface {
	// CompleteStructured runs one completion that is expected to return a
	// JSON document. Transport failures are wrapped as transient errors;
	// the caller owns schema validation of the returned text.
	CompleteStructured(ctx context.Context, req Request) (*Response, error)

	// ModelName identifies the underlying model for logging and reports.
	ModelName() string
}

const structuredSystemSuffix = `Respond with ONLY a valid JSON object matching this schema. No markdown fences, no commentary.

Output schema:
%s`

// ExtractJSON pulls a JSON object out of a model response that may wrap it
// in markdown fences or surrounding prose.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}
	if strings.HasPrefix(text, "{") {
		return text
	}

	// Scan for a balanced top-level object.
	start := strings.Index(text, "{")
	if start < 0 {
		return text
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return text
}
