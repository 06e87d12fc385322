package crawl

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pool executes one batch of URLs across a bounded number of units. Units are
// created per batch and torn down when the batch completes; none is reused.
// Each unit walks its own slice of the batch serially, so the number of
// in-flight page fetches never exceeds the unit count.
type Pool struct {
	processor   PageProcessor
	parallelism int
	logger      *zap.Logger
}

// NewPool builds a Pool. parallelism is the host budget for concurrent page
// fetches; the pool reserves one slot for the coordinator.
func NewPool(processor PageProcessor, parallelism int, logger *zap.Logger) *Pool {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Pool{
		processor:   processor,
		parallelism: parallelism,
		logger:      logger,
	}
}

// Run processes every URL in the batch and returns one Result per URL, in
// input order. A URL's failure is recorded in its Result and never aborts the
// unit or the batch. Cancelling ctx stops all units; URLs not yet processed
// report the context error.
func (p *Pool) Run(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	if len(urls) == 0 {
		return results
	}

	units := unitCount(p.parallelism, len(urls))
	g, gctx := errgroup.WithContext(ctx)

	for u := 0; u < units; u++ {
		lo, hi := partition(len(urls), units, u)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					results[i] = Result{URL: urls[i], Err: err}
					continue
				}
				page, err := p.processor.Process(gctx, urls[i])
				if err != nil {
					p.logger.Warn("page processing failed",
						zap.String("url", urls[i]),
						zap.Error(err),
					)
					results[i] = Result{URL: urls[i], Err: err}
					continue
				}
				results[i] = Result{URL: urls[i], Page: page}
			}
			return nil
		})
	}

	// Units only return nil; Wait is the "await all" barrier.
	_ = g.Wait()
	return results
}

// unitCount bounds batch fan-out to min(parallelism-1, batchSize), floor 1.
func unitCount(parallelism, batchSize int) int {
	units := parallelism - 1
	if units > batchSize {
		units = batchSize
	}
	if units < 1 {
		units = 1
	}
	return units
}

// partition returns the half-open range of batch indexes owned by unit u,
// spreading any remainder across the leading units.
func partition(n, units, u int) (int, int) {
	base := n / units
	rem := n % units
	lo := u*base + min(u, rem)
	hi := lo + base
	if u < rem {
		hi++
	}
	return lo, hi
}
