package crawl

import (
	"context"
	"time"
)

// Bus publishes pipeline messages to their topics.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
}

// DedupStore is the shared visited-set store keyed by task.
type DedupStore interface {
	IsVisited(ctx context.Context, taskID, url string) (bool, error)
	MarkVisited(ctx context.Context, taskID, url string) error
	VisitedCount(ctx context.Context, taskID string) (int64, error)
	Expire(ctx context.Context, taskID string, ttl time.Duration) error
}

// Locker serializes critical sections by name. Exclusion is scoped to one
// coordinator process; replicas sharing a broker may still duplicate work,
// which idempotent graph writes make safe.
type Locker interface {
	With(key string, fn func() error) error
}

// GraphStore persists crawled pages. Upserts are idempotent: node identity is
// the normalized URL and edges between a given pair are singletons.
type GraphStore interface {
	UpsertWebpages(ctx context.Context, pages []Webpage) error
}

// RobotsPolicy answers whether a URL may be crawled under the target site's
// robots rules. Implementations cache rules per host.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// SitemapSource discovers candidate URLs from a site's sitemap.
type SitemapSource interface {
	FetchURLs(ctx context.Context, baseURL string) ([]string, error)
}

// PageProcessor fetches and analyzes one URL, producing a Webpage record.
type PageProcessor interface {
	Process(ctx context.Context, url string) (Webpage, error)
}

// TaskStore optionally persists task status transitions for observability.
// The pipeline treats it as best-effort; a nil store changes no semantics.
type TaskStore interface {
	CreateTask(ctx context.Context, taskID, baseURL string) error
	UpdateTaskStatus(ctx context.Context, taskID, status string, pagesCrawled int) error
}

// Archive stores raw page snapshots and returns their URI.
type Archive interface {
	Put(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Task status values recorded in the task store.
const (
	TaskStatusQueued    = "queued"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)
