package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// ChromeConfig controls the headless renderer.
type ChromeConfig struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// ChromeRenderer implements Renderer with chromedp. One browser allocator is
// shared; each Fetch runs in its own tab context that is always released on
// return, so no session leaks across batches.
type ChromeRenderer struct {
	cfg         ChromeConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromeRenderer starts a browser allocator for headless fetching.
func NewChromeRenderer(cfg ChromeConfig) (*ChromeRenderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.NoSandbox,
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromeRenderer{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the allocator down.
func (r *ChromeRenderer) Close() {
	r.allocCancel()
}

// Fetch navigates to url and returns the rendered document.
func (r *ChromeRenderer) Fetch(ctx context.Context, url string) (Page, error) {
	if err := r.acquire(ctx); err != nil {
		return Page{}, err
	}
	defer r.release()

	tabCtx, tabCancel := chromedp.NewContext(r.allocator)
	defer tabCancel()

	tabCtx, cancel := context.WithTimeout(tabCtx, r.cfg.NavigationTimeout)
	defer cancel()

	// Propagate caller cancellation into the tab.
	go func() {
		select {
		case <-ctx.Done():
			tabCancel()
		case <-tabCtx.Done():
		}
	}()

	var (
		html     string
		title    string
		finalURL string
	)
	actions := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(1280, 800, 1, false),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return Page{}, fmt.Errorf("chromedp run %s: %w", url, err)
	}

	return Page{
		URL:      url,
		FinalURL: finalURL,
		Title:    title,
		HTML:     html,
	}, nil
}

func (r *ChromeRenderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("acquire headless slot: %w", ctx.Err())
	}
}

func (r *ChromeRenderer) release() {
	if r.limiter != nil {
		<-r.limiter
	}
}
