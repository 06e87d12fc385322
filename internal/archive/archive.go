// Package archive stores raw page snapshots so analysis can be re-run without
// re-fetching the source sites.
package archive

// DefaultContentType is the content type recorded for page snapshots.
const DefaultContentType = "text/html; charset=utf-8"
