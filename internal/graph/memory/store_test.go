package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webgraph-io/webgraph/internal/crawl"
)

func TestStore_UpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()

	page := crawl.Webpage{
		URL:      "https://a.com",
		Status:   200,
		Title:    "first",
		Links:    []string{"https://a.com/x", "https://a.com/y"},
		Keywords: []string{"go", "crawler"},
	}
	require.NoError(t, s.UpsertWebpages(ctx, []crawl.Webpage{page}))

	page.Title = "second"
	require.NoError(t, s.UpsertWebpages(ctx, []crawl.Webpage{page}))

	got, ok := s.Page("https://a.com")
	require.True(t, ok)
	require.Equal(t, "second", got.Title, "last write wins")
	require.Equal(t, []string{"https://a.com/x", "https://a.com/y"}, s.LinkEdges("https://a.com"),
		"edges are singletons per ordered pair")
	require.Equal(t, []string{"crawler", "go"}, s.KeywordEdges("https://a.com"))
	// Link targets exist as nodes.
	require.Equal(t, 3, s.PageCount())
}

func TestStore_KeywordScoring(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.UpsertWebpages(ctx, []crawl.Webpage{{
		URL:     "https://pets.example",
		Title:   "all about cats",
		Summary: "dogs are covered too",
	}}))

	hits, err := s.KeywordSearch(ctx, []string{"cats", "dogs"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, 2.0, hits[0].Score,
		"one title hit plus one summary hit, no keyword-list hits")
}

func TestStore_KeywordSearch_CaseInsensitiveAndCapped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()

	pages := make([]crawl.Webpage, 0, 15)
	for i := 0; i < 15; i++ {
		pages = append(pages, crawl.Webpage{
			URL:   fmt.Sprintf("https://a.com/p%d", i),
			Title: "Gophers Daily",
		})
	}
	require.NoError(t, s.UpsertWebpages(ctx, pages))

	hits, err := s.KeywordSearch(ctx, []string{"gophers"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 10, "keyword stage capped at 10")
}

func TestStore_VectorSearch_OrdersBySimilarity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.UpsertWebpages(ctx, []crawl.Webpage{
		{URL: "https://a.com/exact", Embeddings: []float32{1, 0, 0}},
		{URL: "https://a.com/close", Embeddings: []float32{0.9, 0.1, 0}},
		{URL: "https://a.com/far", Embeddings: []float32{0, 1, 0}},
		{URL: "https://a.com/none"},
	}))

	hits, err := s.VectorSearch(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3, "pages without embeddings are excluded")
	require.Equal(t, "https://a.com/exact", hits[0].URL)
	require.Equal(t, "https://a.com/close", hits[1].URL)
	require.Equal(t, "https://a.com/far", hits[2].URL)
	require.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestStore_VectorSearch_CappedAtLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	pages := make([]crawl.Webpage, 0, 12)
	for i := 0; i < 12; i++ {
		pages = append(pages, crawl.Webpage{
			URL:        fmt.Sprintf("https://a.com/v%d", i),
			Embeddings: []float32{1, float32(i) * 0.01},
		})
	}
	require.NoError(t, s.UpsertWebpages(ctx, pages))

	hits, err := s.VectorSearch(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 10)
}
