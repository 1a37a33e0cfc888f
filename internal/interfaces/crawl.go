package interfaces

import (
	"context"

	"github.com/ternarybob/indago/internal/models"
)

// CrawlRunner drives crawl sessions to completion. RunSession is the core
// operation; RunJob layers per-job overrides and seed sources on top of it.
type CrawlRunner interface {
	// RunSession crawls from the seed URL until the frontier is exhausted
	// or the context is cancelled.
	RunSession(ctx context.Context, objective, seedURL string) (*models.SessionResult, error)

	// RunJob runs one job definition, applying its batch/page overrides and
	// harvesting its seed sources before the crawl starts.
	RunJob(ctx context.Context, job *models.JobDefinition) (*models.SessionResult, error)
}
