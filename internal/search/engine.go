// Package search answers free-text queries with two independent retrieval
// stages over the graph store: embedding similarity and keyword overlap. The
// stages are returned side by side, never merged.
package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/webgraph-io/webgraph/internal/analyze"
	"github.com/webgraph-io/webgraph/internal/graph"
	"github.com/webgraph-io/webgraph/internal/metrics"
)

// DefaultLimit caps each stage's result count.
const DefaultLimit = 10

// Timings reports per-stage elapsed milliseconds.
type Timings struct {
	Semantic float64 `json:"semantic_keyword_search"`
	Keyword  float64 `json:"keyword_search"`
}

// Response is the engine's answer to one query.
type Response struct {
	SemanticResults []graph.SearchHit `json:"semantic_keyword_search"`
	KeywordResults  []graph.SearchHit `json:"keyword_search"`
	Keywords        []string          `json:"keywords"`
	Performance     Timings           `json:"performance"`
}

// Engine runs both retrieval stages. Either stage degrades to an empty
// result set on failure; a query never fails outright.
type Engine struct {
	graph    graph.Searcher
	analyzer analyze.Analyzer
	limit    int
	logger   *zap.Logger
}

// NewEngine builds an Engine with the default per-stage limit. analyzer may
// be nil, in which case every query answers empty.
func NewEngine(searcher graph.Searcher, analyzer analyze.Analyzer, logger *zap.Logger) *Engine {
	return &Engine{
		graph:    searcher,
		analyzer: analyzer,
		limit:    DefaultLimit,
		logger:   logger,
	}
}

// Search executes the vector stage then the keyword stage and reports both
// result sets with their timings.
func (e *Engine) Search(ctx context.Context, query string) Response {
	resp := Response{
		SemanticResults: []graph.SearchHit{},
		KeywordResults:  []graph.SearchHit{},
		Keywords:        []string{},
	}

	start := time.Now()
	resp.SemanticResults = e.vectorStage(ctx, query)
	semanticElapsed := time.Since(start)
	metrics.ObserveSearchStage("semantic", semanticElapsed)

	start = time.Now()
	resp.Keywords, resp.KeywordResults = e.keywordStage(ctx, query)
	keywordElapsed := time.Since(start)
	metrics.ObserveSearchStage("keyword", keywordElapsed)

	resp.Performance = Timings{
		Semantic: float64(semanticElapsed.Milliseconds()),
		Keyword:  float64(keywordElapsed.Milliseconds()),
	}
	return resp
}

func (e *Engine) vectorStage(ctx context.Context, query string) []graph.SearchHit {
	if e.analyzer == nil {
		return []graph.SearchHit{}
	}
	embedding, err := e.analyzer.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed", zap.Error(err))
		return []graph.SearchHit{}
	}
	hits, err := e.graph.VectorSearch(ctx, embedding, e.limit)
	if err != nil {
		e.logger.Warn("vector search failed", zap.Error(err))
		return []graph.SearchHit{}
	}
	return hits
}

func (e *Engine) keywordStage(ctx context.Context, query string) ([]string, []graph.SearchHit) {
	if e.analyzer == nil {
		return []string{}, []graph.SearchHit{}
	}
	keywords, err := e.analyzer.Keywords(ctx, query)
	if err != nil {
		e.logger.Warn("query keyword extraction failed", zap.Error(err))
		return []string{}, []graph.SearchHit{}
	}
	if len(keywords) == 0 {
		return []string{}, []graph.SearchHit{}
	}
	hits, err := e.graph.KeywordSearch(ctx, keywords, e.limit)
	if err != nil {
		e.logger.Warn("keyword search failed", zap.Error(err))
		return keywords, []graph.SearchHit{}
	}
	return keywords, hits
}
