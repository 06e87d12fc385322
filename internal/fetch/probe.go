package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyProber implements StatusProber with a colly collector that stops at
// the first response instead of following redirects, exposing the original
// status and Location target.
type CollyProber struct {
	base *colly.Collector
}

// NewCollyProber builds a prober with the given identity and timeout.
func NewCollyProber(userAgent string, timeout time.Duration) *CollyProber {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.IgnoreRobotsTxt(),
	)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c.SetRequestTimeout(timeout)
	c.SetRedirectHandler(func(_ *http.Request, _ []*http.Request) error {
		return http.ErrUseLastResponse
	})
	return &CollyProber{base: c}
}

// Probe issues one request for url. Redirect responses are returned as-is
// with their Location header; colly reports non-2xx statuses through its
// error callback, which is still a successful probe here.
func (p *CollyProber) Probe(_ context.Context, url string) (int, string, error) {
	c := p.base.Clone()

	var (
		status   int
		location string
		probeErr error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		location = r.Headers.Get("Location")
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			status = r.StatusCode
			location = r.Headers.Get("Location")
			return
		}
		probeErr = err
	})

	if err := c.Visit(url); err != nil && status == 0 && probeErr == nil {
		probeErr = err
	}
	c.Wait()

	if probeErr != nil {
		return 0, "", fmt.Errorf("probe %s: %w", url, probeErr)
	}
	if status == 0 {
		return 0, "", fmt.Errorf("probe %s: no response observed", url)
	}
	return status, location, nil
}
