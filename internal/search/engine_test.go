package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webgraph-io/webgraph/internal/analyze"
	"github.com/webgraph-io/webgraph/internal/crawl"
	graphmem "github.com/webgraph-io/webgraph/internal/graph/memory"
)

type fakeAnalyzer struct {
	keywords    []string
	keywordsErr error
	embedding   []float32
	embedErr    error
}

func (f *fakeAnalyzer) Analyze(context.Context, string) (analyze.Analysis, error) {
	return analyze.Analysis{}, errors.New("not used")
}

func (f *fakeAnalyzer) Keywords(context.Context, string) ([]string, error) {
	return f.keywords, f.keywordsErr
}

func (f *fakeAnalyzer) Embed(context.Context, string) ([]float32, error) {
	return f.embedding, f.embedErr
}

func seededStore(t *testing.T) *graphmem.Store {
	t.Helper()
	store := graphmem.NewStore()
	err := store.UpsertWebpages(context.Background(), []crawl.Webpage{
		{
			URL:        "https://pets.example/cats",
			Title:      "cats at home",
			Summary:    "dogs make an appearance too",
			Embeddings: []float32{1, 0},
		},
		{
			URL:        "https://news.example/markets",
			Title:      "market wrap",
			Summary:    "stocks closed higher",
			Embeddings: []float32{0, 1},
		},
	})
	require.NoError(t, err)
	return store
}

func TestEngine_Search_BothStages(t *testing.T) {
	t.Parallel()

	engine := NewEngine(seededStore(t), &fakeAnalyzer{
		keywords:  []string{"cats", "dogs"},
		embedding: []float32{1, 0},
	}, zap.NewNop())

	resp := engine.Search(context.Background(), "cats and dogs")

	require.Equal(t, []string{"cats", "dogs"}, resp.Keywords)
	require.NotEmpty(t, resp.SemanticResults)
	require.Equal(t, "https://pets.example/cats", resp.SemanticResults[0].URL)

	require.Len(t, resp.KeywordResults, 1)
	require.Equal(t, 2.0, resp.KeywordResults[0].Score)
}

func TestEngine_Search_EmbedFailureDegradesToEmptySemanticStage(t *testing.T) {
	t.Parallel()

	engine := NewEngine(seededStore(t), &fakeAnalyzer{
		keywords: []string{"cats"},
		embedErr: errors.New("embedding service down"),
	}, zap.NewNop())

	resp := engine.Search(context.Background(), "cats")

	require.Empty(t, resp.SemanticResults)
	require.NotEmpty(t, resp.KeywordResults, "keyword stage is independent")
}

func TestEngine_Search_KeywordFailureDegradesToEmptyKeywordStage(t *testing.T) {
	t.Parallel()

	engine := NewEngine(seededStore(t), &fakeAnalyzer{
		keywordsErr: errors.New("llm unavailable"),
		embedding:   []float32{1, 0},
	}, zap.NewNop())

	resp := engine.Search(context.Background(), "cats")

	require.Empty(t, resp.Keywords)
	require.Empty(t, resp.KeywordResults)
	require.NotEmpty(t, resp.SemanticResults, "vector stage is independent")
}

func TestEngine_Search_TimingsNonNegative(t *testing.T) {
	t.Parallel()

	engine := NewEngine(seededStore(t), &fakeAnalyzer{
		keywords:  []string{"cats"},
		embedding: []float32{1, 0},
	}, zap.NewNop())

	resp := engine.Search(context.Background(), "cats")

	require.GreaterOrEqual(t, resp.Performance.Semantic, 0.0)
	require.GreaterOrEqual(t, resp.Performance.Keyword, 0.0)
}
