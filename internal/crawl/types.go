// Package crawl implements the distributed crawl-orchestration pipeline:
// the task coordinator state machine, the per-batch worker pool, and the
// shared types that flow between them.
package crawl

// Webpage is the record produced for every successfully crawled page and
// upserted into the graph store. Identity is the normalized URL; every
// re-crawl overwrites all properties (last-write-wins).
type Webpage struct {
	URL        string    `json:"url"`
	Status     int       `json:"status"`
	Title      string    `json:"title"`
	Links      []string  `json:"links"`
	Redirects  []string  `json:"redirects"`
	Is404      bool      `json:"is_404"`
	Keywords   []string  `json:"keywords"`
	Embeddings []float32 `json:"embeddings"`
	Summary    string    `json:"summary"`
}

// Empty reports whether the record carries nothing worth persisting.
func (w Webpage) Empty() bool {
	return w.URL == ""
}

// Result is the per-URL outcome reported by a pool unit. Either Page is
// populated or Err is set; a failed URL never aborts its unit.
type Result struct {
	URL  string
	Page Webpage
	Err  error
}

// CrawlOptions are the client-supplied knobs accepted on crawl submission.
type CrawlOptions struct {
	Sitemap  bool `json:"sitemap,omitempty"`
	MaxPages int  `json:"max_pages,omitempty"`
}
