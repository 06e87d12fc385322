package crawl

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize reduces a URL to its canonical form: lowercase scheme and host,
// non-default port kept, path without a trailing slash, no query, no
// fragment. The canonical form is the Webpage identity, so Normalize must be
// pure and idempotent.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}

	path := strings.TrimSuffix(u.EscapedPath(), "/")

	return scheme + "://" + host + path, nil
}

// normalizeAll maps Normalize over links, dropping unparseable entries and
// duplicates while preserving first-seen order.
func normalizeAll(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, link := range links {
		n, err := Normalize(link)
		if err != nil {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// SameHost reports whether two URLs share a hostname. Used to keep the
// frontier on the crawled site.
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Hostname(), ub.Hostname())
}
