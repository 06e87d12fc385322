// Package graph persists the link graph (Webpage and Keyword nodes) and
// serves the two retrieval read paths over it.
package graph

import "context"

// SearchHit is one retrieval result from either stage. Score is a raw
// similarity for the vector stage and an integer keyword-overlap count for
// the keyword stage; the two are not comparable.
type SearchHit struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Summary string  `json:"summary"`
	Score   float64 `json:"score"`
	Favicon string  `json:"favicon"`
}

// Searcher is the read contract consumed by the retrieval engine.
type Searcher interface {
	// VectorSearch returns the top limit pages by embedding similarity.
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]SearchHit, error)
	// KeywordSearch scores pages by keyword hits across title, keyword list,
	// and summary (each field contributes 0 or 1 per keyword) and returns the
	// top limit pages by score.
	KeywordSearch(ctx context.Context, keywords []string, limit int) ([]SearchHit, error)
}
