package interfaces

import (
	"context"

	"github.com/ternarybob/indago/internal/models"
)

// Fetcher performs one tiered fetch per URL: rate-limited direct HTTP with
// conditional-request support, escalating to a headless render when the
// direct tier is blocked. Implementations never return an error for a failed
// page; failure is encoded in the result's status.
type Fetcher interface {
	Fetch(ctx context.Context, url string) *models.FetchResult
}

// BrowserPool drives headless renders for the escalation tier.
type BrowserPool interface {
	// Render navigates a pooled browser to the URL and returns the rendered
	// HTML, the main-document HTTP status, and a full-page screenshot.
	Render(ctx context.Context, url string) (html string, status int, screenshot []byte, err error)

	// Shutdown closes all pooled browsers, waiting up to the given context's
	// deadline for in-flight renders to drain.
	Shutdown(ctx context.Context) error
}

// RateLimiter is the admission-control gate in front of all outbound
// requests. Acquire suspends the caller until issuing a request to the URL's
// domain violates neither the global nor the per-domain minimum interval.
type RateLimiter interface {
	Acquire(ctx context.Context, url string) error
}
