package crawl

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxChildSitemaps caps how many children of a sitemap index are fetched.
const maxChildSitemaps = 50

// Sitemap discovers candidate URLs from a site's /sitemap.xml, following one
// level of sitemap-index indirection.
type Sitemap struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewSitemap builds a sitemap fetcher.
func NewSitemap(userAgent string, logger *zap.Logger) *Sitemap {
	return &Sitemap{
		client:    &http.Client{Timeout: 60 * time.Second},
		userAgent: userAgent,
		logger:    logger,
	}
}

type sitemapURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// FetchURLs implements SitemapSource. It returns every <loc> found under
// baseURL/sitemap.xml. Callers treat an error as zero extra URLs.
func (s *Sitemap) FetchURLs(ctx context.Context, baseURL string) ([]string, error) {
	body, err := s.get(ctx, baseURL+"/sitemap.xml")
	if err != nil {
		return nil, err
	}
	urls, children, err := parseSitemap(body)
	if err != nil {
		return nil, err
	}

	if len(children) > maxChildSitemaps {
		children = children[:maxChildSitemaps]
	}
	for _, child := range children {
		childBody, err := s.get(ctx, child)
		if err != nil {
			s.logger.Warn("child sitemap fetch failed", zap.String("url", child), zap.Error(err))
			continue
		}
		childURLs, _, err := parseSitemap(childBody)
		if err != nil {
			s.logger.Warn("child sitemap parse failed", zap.String("url", child), zap.Error(err))
			continue
		}
		urls = append(urls, childURLs...)
	}
	return urls, nil
}

func (s *Sitemap) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new sitemap request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Debug("close sitemap body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap fetch returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read sitemap body: %w", err)
	}
	return body, nil
}

// parseSitemap handles both urlset and sitemapindex documents, returning page
// URLs and child sitemap URLs.
func parseSitemap(body []byte) (urls []string, children []string, err error) {
	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err == nil && len(set.URLs) > 0 {
		for _, u := range set.URLs {
			urls = append(urls, u.Loc)
		}
		return urls, nil, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, sm := range index.Sitemaps {
			children = append(children, sm.Loc)
		}
		return nil, children, nil
	}

	return nil, nil, fmt.Errorf("document is neither a urlset nor a sitemapindex")
}
