// Package fetch implements the page-fetching capability: headless rendering,
// plain status probing, link extraction, and per-host politeness.
package fetch

import "context"

// Page is the outcome of rendering one URL.
type Page struct {
	URL      string
	FinalURL string
	Title    string
	HTML     string
}

// Renderer fetches a URL with a browser and returns the rendered DOM.
type Renderer interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// StatusProber performs a plain request without following redirects, so the
// caller can observe the original status code and redirect target.
type StatusProber interface {
	Probe(ctx context.Context, url string) (status int, location string, err error)
}
