package interfaces

import (
	"context"

	"github.com/ternarybob/indago/internal/models"
)

// ExportService is the durable record sink. Appends happen on the hot path
// and must be cheap; Finalize runs once per session, off the crawl loop, and
// produces the deduplicated exports and the session report.
type ExportService interface {
	// Append writes one extracted record (JSONL + CSV + record store).
	Append(ctx context.Context, record *models.ExtractedRecord) error

	// SaveScreenshot persists a screenshot under a content-derived name and
	// returns the stored path.
	SaveScreenshot(sessionID string, data []byte) (string, error)

	// Finalize deduplicates the session's records and writes the clean
	// exports, knowledge graph, and report. Returns the session output dir.
	Finalize(ctx context.Context, session *models.Session) (string, error)
}
