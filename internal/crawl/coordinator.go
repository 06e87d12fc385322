package crawl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/webgraph-io/webgraph/internal/id"
	"github.com/webgraph-io/webgraph/internal/metrics"
)

// CoordinatorConfig carries the pipeline tuning knobs.
type CoordinatorConfig struct {
	// BatchSize bounds the length of every crawl_links_batch payload.
	BatchSize int
	// VisitedTTL is applied to a task's visited set after each insert step.
	VisitedTTL time.Duration
	// BatchPacing is the delay between successive batch emissions within one
	// crawl_links handling; it throttles outbound request rate.
	BatchPacing time.Duration
	// InsertPacing is the delay before results are forwarded to insert_nodes.
	InsertPacing time.Duration
	// MaxPages caps how many pages a single task may dispatch. Zero disables
	// the ceiling.
	MaxPages int
	// LockKey names the critical section guarding batch completion handling.
	LockKey string
}

// Coordinator is the message-topic state machine that turns one crawl request
// into a converging sequence of fetch batches and graph writes:
//
//	init_crawl -> crawl_links -> crawl_links_batch -> insert_nodes
//
// crawl_links_batch re-emits crawl_links for newly discovered links; the loop
// converges because the visited set only grows and robots/dedup filtering
// strictly shrinks each round's candidates. There is no terminal state: a
// task is done when no further messages are produced, and its visited set
// expires after VisitedTTL.
type Coordinator struct {
	bus       Bus
	dedup     DedupStore
	lock      Locker
	graph     GraphStore
	pool      *Pool
	robots    RobotsPolicy
	sitemap   SitemapSource
	tasks     TaskStore
	cfg       CoordinatorConfig
	logger    *zap.Logger
	newTaskID func() (string, error)
}

// NewCoordinator wires a Coordinator. tasks may be nil; status tracking is
// best-effort and never changes pipeline behavior.
func NewCoordinator(
	bus Bus,
	dedup DedupStore,
	lock Locker,
	graph GraphStore,
	pool *Pool,
	robots RobotsPolicy,
	sitemap SitemapSource,
	tasks TaskStore,
	cfg CoordinatorConfig,
	logger *zap.Logger,
) *Coordinator {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.VisitedTTL <= 0 {
		cfg.VisitedTTL = time.Hour
	}
	return &Coordinator{
		bus:       bus,
		dedup:     dedup,
		lock:      lock,
		graph:     graph,
		pool:      pool,
		robots:    robots,
		sitemap:   sitemap,
		tasks:     tasks,
		cfg:       cfg,
		logger:    logger,
		newTaskID: id.NewTaskID,
	}
}

// Handle dispatches one message to its stage handler. The switch is
// exhaustive over the closed message set.
func (c *Coordinator) Handle(ctx context.Context, msg Message) error {
	metrics.MessageHandled(string(msg.Topic()))
	switch m := msg.(type) {
	case InitCrawl:
		return c.handleInitCrawl(ctx, m)
	case CrawlLinks:
		return c.handleCrawlLinks(ctx, m)
	case CrawlLinksBatch:
		return c.handleCrawlLinksBatch(ctx, m)
	case InsertNodes:
		return c.handleInsertNodes(ctx, m)
	default:
		return fmt.Errorf("unhandled message type %T", msg)
	}
}

// handleInitCrawl normalizes the seed, optionally expands it with sitemap
// URLs, mints a task id, and emits the first frontier.
func (c *Coordinator) handleInitCrawl(ctx context.Context, m InitCrawl) error {
	seed, err := Normalize(m.URL)
	if err != nil {
		return fmt.Errorf("normalize seed url: %w", err)
	}

	links := []string{seed}
	if m.Options.Sitemap {
		urls, err := c.sitemap.FetchURLs(ctx, seed)
		if err != nil {
			// A missing sitemap contributes zero URLs, never a failed task.
			c.logger.Warn("sitemap fetch failed", zap.String("base_url", seed), zap.Error(err))
		} else {
			c.logger.Info("sitemap discovered",
				zap.String("base_url", seed),
				zap.Int("urls", len(urls)),
			)
			links = append(links, urls...)
		}
	}
	if m.Options.MaxPages > 0 && len(links) > m.Options.MaxPages {
		links = links[:m.Options.MaxPages]
	}

	taskID, err := c.newTaskID()
	if err != nil {
		return fmt.Errorf("generate task id: %w", err)
	}
	c.logger.Info("task created", zap.String("task_id", taskID), zap.String("base_url", seed))

	if c.tasks != nil {
		if err := c.tasks.CreateTask(ctx, taskID, seed); err != nil {
			c.logger.Warn("task record create failed", zap.String("task_id", taskID), zap.Error(err))
		}
	}

	return c.publish(ctx, CrawlLinks{TaskID: taskID, BaseURL: seed, Links: links})
}

// handleCrawlLinks dedupes and robots-filters the frontier, then slices it
// into paced batches.
func (c *Coordinator) handleCrawlLinks(ctx context.Context, m CrawlLinks) error {
	filtered := make([]string, 0, len(m.Links))
	for _, link := range normalizeAll(m.Links) {
		if !c.robots.Allowed(ctx, link) {
			c.logger.Debug("robots disallowed", zap.String("url", link))
			continue
		}
		filtered = append(filtered, link)
	}
	if len(filtered) == 0 {
		return nil
	}

	for start := 0; start < len(filtered); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(filtered))
		batch := CrawlLinksBatch{
			TaskID:       m.TaskID,
			BaseURL:      m.BaseURL,
			LinksToVisit: filtered[start:end],
		}
		if err := c.publish(ctx, batch); err != nil {
			return err
		}
		if end < len(filtered) {
			if err := pause(ctx, c.cfg.BatchPacing); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleCrawlLinksBatch runs one batch through the pool under the coordinator
// lock, grows the frontier from discovered links, and forwards results.
func (c *Coordinator) handleCrawlLinksBatch(ctx context.Context, m CrawlLinksBatch) error {
	return c.lock.With(c.cfg.LockKey, func() error {
		toVisit, err := c.unvisited(ctx, m.TaskID, m.LinksToVisit)
		if err != nil {
			return err
		}
		toVisit, err = c.applyPageBudget(ctx, m.TaskID, toVisit)
		if err != nil {
			return err
		}
		if len(toVisit) == 0 {
			return nil
		}

		if c.tasks != nil {
			if err := c.tasks.UpdateTaskStatus(ctx, m.TaskID, TaskStatusRunning, 0); err != nil {
				c.logger.Warn("task status update failed", zap.String("task_id", m.TaskID), zap.Error(err))
			}
		}

		c.logger.Info("crawling batch",
			zap.String("task_id", m.TaskID),
			zap.Int("links", len(toVisit)),
		)
		results := c.pool.Run(ctx, toVisit)

		var (
			nodes    []Webpage
			newLinks []string
		)
		for _, r := range results {
			if r.Err != nil {
				metrics.PageCrawled("error")
				continue
			}
			metrics.PageCrawled("ok")
			if err := c.dedup.MarkVisited(ctx, m.TaskID, r.Page.URL); err != nil {
				return fmt.Errorf("mark visited %s: %w", r.Page.URL, err)
			}
			nodes = append(nodes, r.Page)
			newLinks = append(newLinks, r.Page.Links...)
		}

		fresh, err := c.unvisited(ctx, m.TaskID, normalizeAll(newLinks))
		if err != nil {
			return err
		}
		if len(fresh) > 0 {
			if err := c.publish(ctx, CrawlLinks{TaskID: m.TaskID, BaseURL: m.BaseURL, Links: fresh}); err != nil {
				return err
			}
		}

		if err := pause(ctx, c.cfg.InsertPacing); err != nil {
			return err
		}

		if len(nodes) > 0 {
			return c.publish(ctx, InsertNodes{TaskID: m.TaskID, BaseURL: m.BaseURL, Nodes: nodes})
		}
		return nil
	})
}

// handleInsertNodes upserts the batch's records and refreshes the task's
// visited-set expiry.
func (c *Coordinator) handleInsertNodes(ctx context.Context, m InsertNodes) error {
	nodes := make([]Webpage, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		if !n.Empty() {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 0 {
		return nil
	}

	c.logger.Info("inserting nodes", zap.String("task_id", m.TaskID), zap.Int("nodes", len(nodes)))
	if err := c.graph.UpsertWebpages(ctx, nodes); err != nil {
		return fmt.Errorf("upsert webpages: %w", err)
	}
	metrics.NodesInserted(len(nodes))

	if err := c.dedup.Expire(ctx, m.TaskID, c.cfg.VisitedTTL); err != nil {
		return fmt.Errorf("refresh visited set ttl: %w", err)
	}

	if c.tasks != nil {
		count, err := c.dedup.VisitedCount(ctx, m.TaskID)
		if err == nil {
			if err := c.tasks.UpdateTaskStatus(ctx, m.TaskID, TaskStatusRunning, int(count)); err != nil {
				c.logger.Warn("task status update failed", zap.String("task_id", m.TaskID), zap.Error(err))
			}
		}
	}
	return nil
}

// unvisited filters out links already in the task's visited set.
func (c *Coordinator) unvisited(ctx context.Context, taskID string, links []string) ([]string, error) {
	out := make([]string, 0, len(links))
	for _, link := range links {
		visited, err := c.dedup.IsVisited(ctx, taskID, link)
		if err != nil {
			return nil, fmt.Errorf("visited check %s: %w", link, err)
		}
		if !visited {
			out = append(out, link)
		}
	}
	return out, nil
}

// applyPageBudget truncates a batch so the task never dispatches more than
// MaxPages URLs over its lifetime.
func (c *Coordinator) applyPageBudget(ctx context.Context, taskID string, links []string) ([]string, error) {
	if c.cfg.MaxPages <= 0 || len(links) == 0 {
		return links, nil
	}
	visited, err := c.dedup.VisitedCount(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("visited count: %w", err)
	}
	budget := c.cfg.MaxPages - int(visited)
	if budget <= 0 {
		c.logger.Info("page budget exhausted", zap.String("task_id", taskID))
		return nil, nil
	}
	if len(links) > budget {
		links = links[:budget]
	}
	return links, nil
}

func (c *Coordinator) publish(ctx context.Context, msg Message) error {
	if err := c.bus.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Topic(), err)
	}
	return nil
}

// pause sleeps for d unless the context ends first.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
