package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

// BrowserPool keeps a fixed set of headless browser instances alive and
// serves renders round-robin. Each render runs in its own tab, so the pool
// size bounds browser processes, not concurrent renders.
type BrowserPool struct {
	mu       sync.Mutex
	browsers []context.Context
	cancels  []context.CancelFunc
	next     int
	timeout  time.Duration
	logger   arbor.ILogger
}

// NewBrowserPool launches cfg.PoolSize browser instances, rotating the
// user-agent pool across them. Instances that fail startup are dropped; the
// pool errors only when none start.
func NewBrowserPool(cfg *common.BrowserConfig, agents []string, logger arbor.ILogger) (*BrowserPool, error) {
	pool := &BrowserPool{
		timeout: cfg.Timeout,
		logger:  logger,
	}

	var lastErr error
	for i := 0; i < cfg.PoolSize; i++ {
		userAgent := ""
		if len(agents) > 0 {
			userAgent = agents[i%len(agents)]
		}
		if err := pool.launchInstance(cfg, userAgent); err != nil {
			lastErr = err
			logger.Warn().Err(err).Int("instance", i).Msg("Failed to launch browser instance")
		}
	}

	if len(pool.browsers) == 0 {
		return nil, fmt.Errorf("failed to launch any browser instance: %w", lastErr)
	}

	logger.Info().
		Int("instances", len(pool.browsers)).
		Bool("headless", cfg.Headless).
		Dur("render_timeout", cfg.Timeout).
		Msg("Browser pool ready")

	return pool, nil
}

var _ interfaces.BrowserPool = (*BrowserPool)(nil)

func (p *BrowserPool) launchInstance(cfg *common.BrowserConfig, userAgent string) error {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Startup probe so a broken Chrome install fails here, not mid-crawl.
	probeCtx, probeCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser failed startup probe: %w", err)
	}

	p.mu.Lock()
	p.browsers = append(p.browsers, browserCtx)
	p.cancels = append(p.cancels, browserCancel, allocatorCancel)
	p.mu.Unlock()
	return nil
}

func (p *BrowserPool) acquire() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	browser := p.browsers[p.next%len(p.browsers)]
	p.next++
	return browser
}

// Render navigates a fresh tab to url, waits for the document, and returns
// the rendered HTML, the main-document HTTP status, and a full-page
// screenshot. When no document response is observed the status defaults
// to 200, trusting that navigation succeeded.
func (p *BrowserPool) Render(ctx context.Context, url string) (string, int, []byte, error) {
	tabCtx, tabCancel := chromedp.NewContext(p.acquire())
	defer tabCancel()

	renderCtx, renderCancel := context.WithTimeout(tabCtx, p.timeout)
	defer renderCancel()

	// Propagate caller cancellation into the render.
	go func() {
		select {
		case <-ctx.Done():
			renderCancel()
		case <-renderCtx.Done():
		}
	}()

	var (
		statusMu sync.Mutex
		status   int
	)
	chromedp.ListenTarget(renderCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		statusMu.Lock()
		if status == 0 {
			status = int(resp.Response.Status)
		}
		statusMu.Unlock()
	})

	start := time.Now()
	var html string
	var screenshot []byte
	err := chromedp.Run(renderCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html),
		chromedp.FullScreenshot(&screenshot, 90),
	)
	if err != nil {
		return "", 0, nil, fmt.Errorf("render failed: %w", err)
	}

	statusMu.Lock()
	if status == 0 {
		status = 200
	}
	finalStatus := status
	statusMu.Unlock()

	p.logger.Debug().
		Str("url", url).
		Int("status", finalStatus).
		Int("html_length", len(html)).
		Dur("duration", time.Since(start)).
		Msg("Rendered page")

	return html, finalStatus, screenshot, nil
}

// Shutdown cancels every browser and allocator context. The ctx deadline
// bounds how long to wait for Chrome processes to exit.
func (p *BrowserPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	cancels := p.cancels
	count := len(p.browsers)
	p.browsers = nil
	p.cancels = nil
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, cancel := range cancels {
			cancel()
		}
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info().Int("instances", count).Msg("Browser pool shut down")
		return nil
	case <-ctx.Done():
		p.logger.Warn().Int("instances", count).Msg("Browser pool shutdown timed out")
		return ctx.Err()
	}
}
