// Package analyze wraps the LLM-backed content analysis capability: keyword
// extraction, summarization, and embedding generation.
package analyze

import "context"

// Analysis is the full result of analyzing one page's text.
type Analysis struct {
	Keywords  []string
	Summary   string
	Embedding []float32
}

// Analyzer is the content-analysis contract. Callers treat failures as a
// degraded-empty contribution, never a failed task.
type Analyzer interface {
	// Analyze extracts keywords, summarizes, and embeds the summary.
	Analyze(ctx context.Context, text string) (Analysis, error)
	// Keywords extracts normalized keywords from free text.
	Keywords(ctx context.Context, text string) ([]string, error)
	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}
