package crawl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/webgraph-io/webgraph/internal/analyze"
	"github.com/webgraph-io/webgraph/internal/fetch"
)

// Processor turns one URL into a Webpage record: probe the status, render
// the page, extract same-host links, and run content analysis. It implements
// PageProcessor for the pool.
type Processor struct {
	renderer fetch.Renderer
	prober   fetch.StatusProber
	limiter  *fetch.HostLimiter
	analyzer analyze.Analyzer
	archive  Archive
	logger   *zap.Logger
}

// NewProcessor wires a Processor. limiter, analyzer, and archive may be nil;
// each disables its step.
func NewProcessor(
	renderer fetch.Renderer,
	prober fetch.StatusProber,
	limiter *fetch.HostLimiter,
	analyzer analyze.Analyzer,
	archive Archive,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		renderer: renderer,
		prober:   prober,
		limiter:  limiter,
		analyzer: analyzer,
		archive:  archive,
		logger:   logger,
	}
}

// Process fetches and analyzes one URL. Redirects and 404s produce a record
// carrying only that outcome; analyzer failures degrade to a record without
// keywords, summary, or embedding.
func (p *Processor) Process(ctx context.Context, rawURL string) (Webpage, error) {
	normalized, err := Normalize(rawURL)
	if err != nil {
		return Webpage{}, fmt.Errorf("normalize %s: %w", rawURL, err)
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, normalized); err != nil {
			return Webpage{}, err
		}
	}

	status, location, err := p.prober.Probe(ctx, normalized)
	if err != nil {
		return Webpage{}, fmt.Errorf("status probe: %w", err)
	}

	page := Webpage{URL: normalized, Status: status}

	switch {
	case status == http.StatusMovedPermanently || status == http.StatusFound:
		target := location
		if target == "" {
			target = normalized
		}
		if resolved, err := Normalize(target); err == nil {
			page.Redirects = []string{resolved}
		}
		return page, nil
	case status == http.StatusNotFound:
		page.Is404 = true
		return page, nil
	}

	rendered, err := p.renderer.Fetch(ctx, normalized)
	if err != nil {
		return Webpage{}, fmt.Errorf("render page: %w", err)
	}
	page.Title = rendered.Title

	links, err := fetch.ExtractLinks(rendered.HTML, normalized)
	if err != nil {
		p.logger.Warn("link extraction failed", zap.String("url", normalized), zap.Error(err))
	} else {
		page.Links = normalizeAll(links)
	}

	p.archiveSnapshot(ctx, normalized, rendered.HTML)

	if p.analyzer != nil {
		text, err := fetch.ExtractText(rendered.HTML)
		if err != nil {
			p.logger.Warn("text extraction failed", zap.String("url", normalized), zap.Error(err))
			return page, nil
		}
		analysis, err := p.analyzer.Analyze(ctx, text)
		if err != nil {
			// Analysis problems degrade the record, not the crawl.
			p.logger.Warn("content analysis failed", zap.String("url", normalized), zap.Error(err))
			return page, nil
		}
		page.Keywords = analysis.Keywords
		page.Summary = analysis.Summary
		page.Embeddings = analysis.Embedding
	}
	return page, nil
}

func (p *Processor) archiveSnapshot(ctx context.Context, url, html string) {
	if p.archive == nil {
		return
	}
	// The archive adds its own object prefix.
	sum := sha256.Sum256([]byte(html))
	path := hex.EncodeToString(sum[:]) + ".html"
	if _, err := p.archive.Put(ctx, path, "text/html; charset=utf-8", []byte(html)); err != nil {
		p.logger.Warn("snapshot archive failed", zap.String("url", url), zap.Error(err))
	}
}
