// Package memory is an in-process graph store used by tests. It mirrors the
// Neo4j adapter's merge and scoring semantics.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/webgraph-io/webgraph/internal/crawl"
	"github.com/webgraph-io/webgraph/internal/graph"
)

type edgeSet map[string]map[string]struct{}

func (e edgeSet) add(from, to string) {
	if _, ok := e[from]; !ok {
		e[from] = make(map[string]struct{})
	}
	e[from][to] = struct{}{}
}

// Store holds Webpage nodes and edge sets keyed by ordered node pair, so
// re-asserting an edge is a no-op by construction.
type Store struct {
	mu        sync.RWMutex
	pages     map[string]crawl.Webpage
	linksTo   edgeSet
	redirects edgeSet
	keywords  edgeSet
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		pages:     make(map[string]crawl.Webpage),
		linksTo:   make(edgeSet),
		redirects: make(edgeSet),
		keywords:  make(edgeSet),
	}
}

// UpsertWebpages overwrites node properties unconditionally and merges edges.
func (s *Store) UpsertWebpages(_ context.Context, pages []crawl.Webpage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pages {
		s.pages[p.URL] = p
		for _, link := range p.Links {
			if _, ok := s.pages[link]; !ok {
				s.pages[link] = crawl.Webpage{URL: link}
			}
			s.linksTo.add(p.URL, link)
		}
		for _, target := range p.Redirects {
			if _, ok := s.pages[target]; !ok {
				s.pages[target] = crawl.Webpage{URL: target}
			}
			s.redirects.add(p.URL, target)
		}
		for _, kw := range p.Keywords {
			s.keywords.add(p.URL, kw)
		}
	}
	return nil
}

// Page returns a stored node by URL.
func (s *Store) Page(url string) (crawl.Webpage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[url]
	return p, ok
}

// PageCount returns the number of Webpage nodes.
func (s *Store) PageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// LinkEdges returns the LINKS_TO targets of url.
func (s *Store) LinkEdges(url string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.linksTo[url]))
	for to := range s.linksTo[url] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// KeywordEdges returns the HAS_KEYWORD targets of url.
func (s *Store) KeywordEdges(url string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.keywords[url]))
	for to := range s.keywords[url] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// VectorSearch ranks pages by cosine similarity against the query embedding.
func (s *Store) VectorSearch(_ context.Context, embedding []float32, limit int) ([]graph.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]graph.SearchHit, 0)
	for _, p := range s.pages {
		if len(p.Embeddings) == 0 {
			continue
		}
		hits = append(hits, graph.SearchHit{
			URL:     p.URL,
			Title:   p.Title,
			Summary: p.Summary,
			Score:   cosine(embedding, p.Embeddings),
			Favicon: graph.FaviconURL(p.URL),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// KeywordSearch scores each page by (keyword x field) hits: title, keyword
// list, and summary each contribute 0 or 1 per keyword.
func (s *Store) KeywordSearch(_ context.Context, keywords []string, limit int) ([]graph.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]graph.SearchHit, 0)
	for _, p := range s.pages {
		score := 0
		for _, kw := range keywords {
			needle := strings.ToLower(kw)
			if strings.Contains(strings.ToLower(p.Title), needle) {
				score++
			}
			for _, pk := range p.Keywords {
				if strings.Contains(strings.ToLower(pk), needle) {
					score++
					break
				}
			}
			if strings.Contains(strings.ToLower(p.Summary), needle) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		hits = append(hits, graph.SearchHit{
			URL:     p.URL,
			Title:   p.Title,
			Summary: p.Summary,
			Score:   float64(score),
			Favicon: graph.FaviconURL(p.URL),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosine(a []float32, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
