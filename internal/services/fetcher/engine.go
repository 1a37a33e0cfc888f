package fetcher

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// escalationStatuses are the tier-1 statuses that send a URL to the browser.
var escalationStatuses = map[int]bool{
	http.StatusForbidden:          true,
	http.StatusTooManyRequests:    true,
	http.StatusServiceUnavailable: true,
}

// Engine is the two-tier fetcher: a direct HTTP pass with conditional
// requests and content hashing, escalating to a headless-browser render when
// the direct pass looks blocked. Fetch never returns an error; failures
// surface as a non-200 status on the result.
type Engine struct {
	client  *http.Client
	browser interfaces.BrowserPool
	cache   interfaces.CacheStorage
	limiter interfaces.RateLimiter
	events  interfaces.EventService
	agents  *userAgents
	pdf     *pdfExtractor
	maxBody int64
	logger  arbor.ILogger
}

// NewEngine wires the engine. browser may be nil, which disables tier-2
// escalation entirely.
func NewEngine(
	cfg *common.Config,
	client *http.Client,
	browser interfaces.BrowserPool,
	cache interfaces.CacheStorage,
	limiter interfaces.RateLimiter,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Engine {
	return &Engine{
		client:  client,
		browser: browser,
		cache:   cache,
		limiter: limiter,
		events:  events,
		agents:  newUserAgents(cfg.Crawler.UserAgents),
		pdf:     newPDFExtractor(logger),
		maxBody: cfg.Crawler.MaxBodySize,
		logger:  logger,
	}
}

var _ interfaces.Fetcher = (*Engine)(nil)

// Fetch runs the tiered fetch for one URL. Rate-limit admission happens
// before any I/O; everything after is best-effort with the outcome encoded
// in the result.
func (e *Engine) Fetch(ctx context.Context, rawURL string) *models.FetchResult {
	result := &models.FetchResult{URL: rawURL}

	if err := e.limiter.Acquire(ctx, rawURL); err != nil {
		e.logger.Debug().Err(err).Str("url", rawURL).Msg("Rate limit acquire aborted")
		return result
	}

	start := time.Now()
	e.fetchDirect(ctx, rawURL, result)

	if e.browser != nil && shouldEscalate(result) {
		e.logger.Info().
			Str("url", rawURL).
			Int("status", result.Status).
			Msg("Escalating to browser render")
		e.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventRenderEscalated,
			Payload: map[string]interface{}{"url": rawURL, "status": result.Status},
		})
		e.fetchRendered(ctx, rawURL, result)
	}

	if result.OK() {
		e.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventURLFetched,
			Payload: map[string]interface{}{
				"url":         rawURL,
				"status":      result.Status,
				"rendered":    result.Rendered,
				"from_cache":  result.FromCache,
				"duration_ms": time.Since(start).Milliseconds(),
			},
		})
	} else {
		// Failed fetches carry no content past the boundary.
		result.Content = ""
		result.Screenshot = nil
		e.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventURLFailed,
			Payload: map[string]interface{}{"url": rawURL, "status": result.Status},
		})
	}
	return result
}

func (e *Engine) fetchDirect(ctx context.Context, rawURL string, result *models.FetchResult) {
	cached, err := e.cache.Get(ctx, rawURL)
	if err != nil {
		e.logger.Warn().Err(err).Str("url", rawURL).Msg("Cache read failed, fetching unconditionally")
		cached = nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		e.logger.Debug().Err(err).Str("url", rawURL).Msg("Invalid request URL")
		return
	}
	req.Header.Set("User-Agent", e.agents.next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	// Setting Accept-Encoding manually disables the transport's transparent
	// decompression, keeping the wire length observable.
	req.Header.Set("Accept-Encoding", "gzip")
	if cached != nil {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug().Err(err).Str("url", rawURL).Msg("Direct fetch failed")
		return
	}
	defer resp.Body.Close()

	// Revalidated: hand back the cached body as a normal 200. Callers never
	// observe a 304.
	if resp.StatusCode == http.StatusNotModified && cached != nil {
		result.Status = http.StatusOK
		result.Content = cached.Content
		result.FromCache = true
		result.Unchanged = true
		result.SavedBytes = int64(len(cached.Content))
		e.logger.Debug().
			Str("url", rawURL).
			Int64("saved_bytes", result.SavedBytes).
			Msg("Not modified, serving cached content")
		return
	}

	body, wireLen, err := readBody(resp, e.maxBody)
	if err != nil {
		e.logger.Debug().Err(err).Str("url", rawURL).Msg("Failed to read response body")
		return
	}

	result.Status = resp.StatusCode
	result.Content = string(body)
	if resp.StatusCode != http.StatusOK {
		return
	}

	if isPDFContentType(resp.Header.Get("Content-Type")) {
		text, err := e.pdf.ExtractText(ctx, body)
		if err != nil {
			e.logger.Warn().Err(err).Str("url", rawURL).Msg("PDF text extraction failed")
			result.Content = ""
		} else {
			result.Content = text
		}
	}

	if saved := int64(len(body)) - wireLen; saved > 0 {
		result.SavedBytes = saved
	}

	hash := common.HashContent(result.Content)
	if cached != nil && cached.ContentHash == hash {
		// Unchanged content is flagged and logged but still reprocessed;
		// downstream analysis may have changed since the last visit.
		result.Unchanged = true
		e.logger.Info().Str("url", rawURL).Msg("Content unchanged since last visit")
	}

	if err := e.cache.Put(ctx, rawURL, result.Content, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified")); err != nil {
		e.logger.Warn().Err(err).Str("url", rawURL).Msg("Cache write failed")
	}
}

func (e *Engine) fetchRendered(ctx context.Context, rawURL string, result *models.FetchResult) {
	html, status, screenshot, err := e.browser.Render(ctx, rawURL)
	if err != nil {
		// Keep the tier-1 status; the render attempt changes nothing.
		e.logger.Warn().Err(err).Str("url", rawURL).Msg("Browser render failed")
		result.Content = ""
		result.Screenshot = nil
		return
	}

	result.Content = html
	result.Status = status
	result.Screenshot = screenshot
	result.Rendered = true
	result.FromCache = false
	result.Unchanged = false
	// No bandwidth accounting for rendered fetches.
	result.SavedBytes = 0
}

// shouldEscalate applies the block heuristic to a tier-1 result.
func shouldEscalate(result *models.FetchResult) bool {
	if result.Rendered {
		return false
	}
	if escalationStatuses[result.Status] {
		return true
	}
	if result.Content == "" {
		return false
	}
	lower := strings.ToLower(result.Content)
	return strings.Contains(lower, "challenge") || strings.Contains(lower, "cloudflare")
}

// countingReader tracks how many wire bytes were consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// readBody decodes the response body, returning the decoded bytes and the
// wire length actually transferred.
func readBody(resp *http.Response, maxBody int64) ([]byte, int64, error) {
	counting := &countingReader{r: resp.Body}
	reader := io.Reader(counting)

	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(counting)
		if err != nil {
			return nil, counting.n, err
		}
		defer gz.Close()
		reader = gz
	}

	if maxBody > 0 {
		reader = io.LimitReader(reader, maxBody)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, counting.n, err
	}
	return body, counting.n, nil
}
