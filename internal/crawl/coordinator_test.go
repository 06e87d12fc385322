package crawl_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	busmem "github.com/webgraph-io/webgraph/internal/bus/memory"
	"github.com/webgraph-io/webgraph/internal/crawl"
	"github.com/webgraph-io/webgraph/internal/dedup"
	dedupmem "github.com/webgraph-io/webgraph/internal/dedup/memory"
	graphmem "github.com/webgraph-io/webgraph/internal/graph/memory"
)

// allowAll admits every URL.
type allowAll struct{}

func (allowAll) Allowed(context.Context, string) bool { return true }

// denyPaths blocks URLs containing any of the given substrings.
type denyPaths struct{ substrings []string }

func (d denyPaths) Allowed(_ context.Context, url string) bool {
	for _, s := range d.substrings {
		if strings.Contains(url, s) {
			return false
		}
	}
	return true
}

type fakeSitemap struct {
	urls []string
	err  error
}

func (f *fakeSitemap) FetchURLs(context.Context, string) ([]string, error) {
	return f.urls, f.err
}

// sitePages simulates a site: each URL yields a page whose Links field grows
// the frontier.
type sitePages struct {
	pages map[string]crawl.Webpage
	calls []string
}

func (s *sitePages) Process(_ context.Context, url string) (crawl.Webpage, error) {
	s.calls = append(s.calls, url)
	if page, ok := s.pages[url]; ok {
		return page, nil
	}
	return crawl.Webpage{}, errors.New("fetch failed: " + url)
}

type fixture struct {
	bus   *busmem.Bus
	dedup *dedupmem.Store
	graph *graphmem.Store
	site  *sitePages
	coord *crawl.Coordinator
}

func newFixture(t *testing.T, robots crawl.RobotsPolicy, sitemap crawl.SitemapSource, cfg crawl.CoordinatorConfig) *fixture {
	t.Helper()
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 5
	}
	if cfg.LockKey == "" {
		cfg.LockKey = dedup.CrawlLockKey()
	}

	f := &fixture{
		bus:   busmem.NewBus(),
		dedup: dedupmem.NewStore(),
		graph: graphmem.NewStore(),
		site:  &sitePages{pages: map[string]crawl.Webpage{}},
	}
	pool := crawl.NewPool(f.site, 1, zap.NewNop())
	f.coord = crawl.NewCoordinator(
		f.bus, f.dedup, dedup.NewKeyedLock(), f.graph, pool,
		robots, sitemap, nil, cfg, zap.NewNop(),
	)
	return f
}

func (f *fixture) addPage(url string, links ...string) {
	f.site.pages[url] = crawl.Webpage{URL: url, Status: 200, Title: url, Links: links}
}

func TestCoordinator_InitCrawl_EmitsNormalizedSeed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, allowAll{}, &fakeSitemap{}, crawl.CoordinatorConfig{})
	err := f.coord.Handle(context.Background(), crawl.InitCrawl{URL: "https://Example.com/"})
	require.NoError(t, err)

	msgs := f.bus.MessagesOn(crawl.TopicCrawlLinks)
	require.Len(t, msgs, 1)
	links := msgs[0].(crawl.CrawlLinks)
	require.Equal(t, "https://example.com", links.BaseURL)
	require.Equal(t, []string{"https://example.com"}, links.Links)
	require.Len(t, links.TaskID, 8)
}

func TestCoordinator_InitCrawl_SitemapFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, allowAll{}, &fakeSitemap{err: errors.New("no sitemap")}, crawl.CoordinatorConfig{})
	err := f.coord.Handle(context.Background(), crawl.InitCrawl{
		URL:     "https://example.com",
		Options: crawl.CrawlOptions{Sitemap: true},
	})
	require.NoError(t, err)

	msgs := f.bus.MessagesOn(crawl.TopicCrawlLinks)
	require.Len(t, msgs, 1)
	require.Equal(t, []string{"https://example.com"}, msgs[0].(crawl.CrawlLinks).Links)
}

func TestCoordinator_InitCrawl_SitemapExtendsCandidates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, allowAll{}, &fakeSitemap{urls: []string{
		"https://example.com/a",
		"https://example.com/b",
	}}, crawl.CoordinatorConfig{})
	err := f.coord.Handle(context.Background(), crawl.InitCrawl{
		URL:     "https://example.com",
		Options: crawl.CrawlOptions{Sitemap: true},
	})
	require.NoError(t, err)

	msgs := f.bus.MessagesOn(crawl.TopicCrawlLinks)
	require.Len(t, msgs, 1)
	require.Equal(t, []string{
		"https://example.com",
		"https://example.com/a",
		"https://example.com/b",
	}, msgs[0].(crawl.CrawlLinks).Links)
}

func TestCoordinator_CrawlLinks_DedupesFiltersAndBatches(t *testing.T) {
	t.Parallel()

	f := newFixture(t, denyPaths{substrings: []string{"/private"}}, &fakeSitemap{}, crawl.CoordinatorConfig{
		BatchSize: 2,
	})
	err := f.coord.Handle(context.Background(), crawl.CrawlLinks{
		TaskID:  "t1",
		BaseURL: "https://a.com",
		Links: []string{
			"https://a.com/x/",
			"https://a.com/x",
			"https://a.com/private/page",
			"https://a.com/y#frag",
			"https://a.com/z",
		},
	})
	require.NoError(t, err)

	batches := f.bus.MessagesOn(crawl.TopicCrawlLinksBatch)
	require.Len(t, batches, 2)
	first := batches[0].(crawl.CrawlLinksBatch)
	second := batches[1].(crawl.CrawlLinksBatch)
	require.Equal(t, []string{"https://a.com/x", "https://a.com/y"}, first.LinksToVisit)
	require.Equal(t, []string{"https://a.com/z"}, second.LinksToVisit)
	for _, b := range batches {
		require.LessOrEqual(t, len(b.(crawl.CrawlLinksBatch).LinksToVisit), 2)
	}
}

func TestCoordinator_CrawlLinksBatch_SkipsVisitedAndMarksSuccesses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, allowAll{}, &fakeSitemap{}, crawl.CoordinatorConfig{})
	f.addPage("https://a.com/x", "https://a.com/next")
	f.addPage("https://a.com/y")

	require.NoError(t, f.dedup.MarkVisited(ctx, "t1", "https://a.com/y"))

	err := f.coord.Handle(ctx, crawl.CrawlLinksBatch{
		TaskID:       "t1",
		BaseURL:      "https://a.com",
		LinksToVisit: []string{"https://a.com/x", "https://a.com/y"},
	})
	require.NoError(t, err)

	require.Equal(t, []string{"https://a.com/x"}, f.site.calls, "visited link never re-dispatched")

	visited, err := f.dedup.IsVisited(ctx, "t1", "https://a.com/x")
	require.NoError(t, err)
	require.True(t, visited)

	newLinks := f.bus.MessagesOn(crawl.TopicCrawlLinks)
	require.Len(t, newLinks, 1)
	require.Equal(t, []string{"https://a.com/next"}, newLinks[0].(crawl.CrawlLinks).Links)

	inserts := f.bus.MessagesOn(crawl.TopicInsertNodes)
	require.Len(t, inserts, 1)
	nodes := inserts[0].(crawl.InsertNodes).Nodes
	require.Len(t, nodes, 1)
	require.Equal(t, "https://a.com/x", nodes[0].URL)
}

func TestCoordinator_CrawlLinksBatch_FailuresAreNotForwarded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, allowAll{}, &fakeSitemap{}, crawl.CoordinatorConfig{})
	f.addPage("https://a.com/ok")
	// https://a.com/broken is not in the site, so processing it fails.

	err := f.coord.Handle(context.Background(), crawl.CrawlLinksBatch{
		TaskID:       "t1",
		BaseURL:      "https://a.com",
		LinksToVisit: []string{"https://a.com/ok", "https://a.com/broken"},
	})
	require.NoError(t, err, "a page failure never fails the batch")

	inserts := f.bus.MessagesOn(crawl.TopicInsertNodes)
	require.Len(t, inserts, 1)
	require.Len(t, inserts[0].(crawl.InsertNodes).Nodes, 1)

	visited, err := f.dedup.IsVisited(context.Background(), "t1", "https://a.com/broken")
	require.NoError(t, err)
	require.False(t, visited, "failed pages stay unvisited for retry on rediscovery")
}

func TestCoordinator_CrawlLinksBatch_PageBudgetCapsDispatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, allowAll{}, &fakeSitemap{}, crawl.CoordinatorConfig{MaxPages: 2})
	for _, u := range []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"} {
		f.addPage(u)
	}

	err := f.coord.Handle(ctx, crawl.CrawlLinksBatch{
		TaskID:       "t1",
		BaseURL:      "https://a.com",
		LinksToVisit: []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"},
	})
	require.NoError(t, err)
	require.Len(t, f.site.calls, 2, "dispatch truncated to the page budget")

	// The budget is exhausted, so a later batch dispatches nothing.
	err = f.coord.Handle(ctx, crawl.CrawlLinksBatch{
		TaskID:       "t1",
		BaseURL:      "https://a.com",
		LinksToVisit: []string{"https://a.com/3"},
	})
	require.NoError(t, err)
	require.Len(t, f.site.calls, 2)
}

func TestCoordinator_InsertNodes_UpsertsAndRefreshesTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, allowAll{}, &fakeSitemap{}, crawl.CoordinatorConfig{VisitedTTL: time.Hour})

	now := time.Unix(5000, 0)
	f.dedup.SetClock(func() time.Time { return now })
	require.NoError(t, f.dedup.MarkVisited(ctx, "t1", "https://a.com/x"))

	err := f.coord.Handle(ctx, crawl.InsertNodes{
		TaskID:  "t1",
		BaseURL: "https://a.com",
		Nodes: []crawl.Webpage{
			{URL: "https://a.com/x", Status: 200, Title: "X"},
			{}, // empty records are filtered out
		},
	})
	require.NoError(t, err)

	_, ok := f.graph.Page("https://a.com/x")
	require.True(t, ok)

	// Inside the TTL window the set survives; past it, the set is gone.
	now = now.Add(59 * time.Minute)
	visited, err := f.dedup.IsVisited(ctx, "t1", "https://a.com/x")
	require.NoError(t, err)
	require.True(t, visited)

	now = now.Add(2 * time.Minute)
	visited, err = f.dedup.IsVisited(ctx, "t1", "https://a.com/x")
	require.NoError(t, err)
	require.False(t, visited, "after ttl expiry the url may be re-crawled")
}

func TestCoordinator_InsertNodes_AllEmptyIsNoOp(t *testing.T) {
	t.Parallel()

	f := newFixture(t, allowAll{}, &fakeSitemap{}, crawl.CoordinatorConfig{})
	err := f.coord.Handle(context.Background(), crawl.InsertNodes{
		TaskID: "t1",
		Nodes:  []crawl.Webpage{{}, {}},
	})
	require.NoError(t, err)
	require.Zero(t, f.graph.PageCount())
}

// TestCoordinator_EndToEnd_SinglePageConverges drives a complete crawl of a
// one-page site through the real message flow.
func TestCoordinator_EndToEnd_SinglePageConverges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, allowAll{}, &fakeSitemap{}, crawl.CoordinatorConfig{})
	f.addPage("https://example.com") // no outbound links

	require.NoError(t, f.bus.Publish(ctx, crawl.InitCrawl{URL: "https://example.com/"}))
	require.NoError(t, f.bus.Pump(ctx, f.coord.Handle))

	require.Len(t, f.bus.MessagesOn(crawl.TopicCrawlLinks), 1, "no recursive crawl_links")
	require.Len(t, f.bus.MessagesOn(crawl.TopicCrawlLinksBatch), 1)
	require.Len(t, f.bus.MessagesOn(crawl.TopicInsertNodes), 1)
	require.Equal(t, 1, f.graph.PageCount())
	_, ok := f.graph.Page("https://example.com")
	require.True(t, ok)
}

// TestCoordinator_EndToEnd_MultiPageConverges checks that frontier growth is
// bounded by the visited set: a cyclic three-page site is crawled exactly
// once per page.
func TestCoordinator_EndToEnd_MultiPageConverges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, allowAll{}, &fakeSitemap{}, crawl.CoordinatorConfig{BatchSize: 2})
	f.addPage("https://a.com", "https://a.com/x", "https://a.com/y")
	f.addPage("https://a.com/x", "https://a.com/y", "https://a.com")
	f.addPage("https://a.com/y", "https://a.com")

	require.NoError(t, f.bus.Publish(ctx, crawl.InitCrawl{URL: "https://a.com"}))
	require.NoError(t, f.bus.Pump(ctx, f.coord.Handle))

	require.ElementsMatch(t, []string{
		"https://a.com", "https://a.com/x", "https://a.com/y",
	}, f.site.calls, "each page fetched exactly once despite the cycle")

	require.Equal(t, []string{"https://a.com/x", "https://a.com/y"}, f.graph.LinkEdges("https://a.com"))
}
