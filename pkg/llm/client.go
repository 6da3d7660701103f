// Package llm provides the narrow LLM contract the pipeline consumes,
// a Gemini-backed implementation, and the advisory call-budget guard.
package llm

import (
	"context"
	"errors"
)

// ErrBudgetExhausted is returned when the advisory hour/day call budget
// is spent. Callers degrade to heuristics instead of failing.
var ErrBudgetExhausted = errors.New("llm call budget exhausted")

// ErrNotConfigured is returned when no API key is configured.
var ErrNotConfigured = errors.New("llm client not configured")

// Client is the LLM contract: one structured-output generation call.
// schema is a JSON Schema document constraining the response shape;
// empty schema means free-form JSON.
type Client interface {
	// Generate returns the raw response text, which callers parse (and
	// repair) themselves. The text is not guaranteed to be valid JSON.
	Generate(ctx context.Context, systemInstruction, userPrompt, schema string) (string, error)
}

// Reranker is the external document scorer contract.
type Reranker interface {
	// Rerank returns (index, relevance) pairs for documents against the
	// instruction, best first, at most topK entries.
	Rerank(ctx context.Context, instruction string, documents []string, topK int) ([]RankedDocument, error)
}

// RankedDocument is one reranker result entry.
type RankedDocument struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}
