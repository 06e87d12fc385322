package fetch

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkBlacklist excludes social platforms, asset files, and non-HTTP link
// schemes from the frontier.
var linkBlacklist = regexp.MustCompile(
	`(?i)(youtube\.com|facebook\.com|twitter\.com|x\.com|linkedin\.com|snapchat\.com|instagram\.com|github\.com|javascript:|cloudfront\.net|wp-content|^mailto:|^tel:|\w+\.(pdf|png|jpg|jpeg|docx|json|txt|gif|svg|mp4|mp3)$)`,
)

// ExtractLinks pulls same-host anchor targets out of rendered HTML, resolved
// against base. Results pass the blacklist and come back deduplicated in
// document order; normalization is left to the caller.
func ExtractLinks(html, base string) ([]string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || linkBlacklist.MatchString(href) {
			return
		}
		resolved, err := baseURL.Parse(href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if !strings.EqualFold(resolved.Hostname(), baseURL.Hostname()) {
			return
		}
		if linkBlacklist.MatchString(resolved.String()) {
			return
		}
		out := resolved.String()
		if _, dup := seen[out]; dup {
			return
		}
		seen[out] = struct{}{}
		links = append(links, out)
	})
	return links, nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ExtractText returns the page's visible text with scripts and styles
// removed and whitespace collapsed, suitable for the content analyzer.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	body := doc.Find("body")
	text := body.Text()
	if body.Length() == 0 {
		text = doc.Text()
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " ")), nil
}
