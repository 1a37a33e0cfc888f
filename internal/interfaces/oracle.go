package interfaces

import (
	"context"

	"github.com/ternarybob/indago/internal/models"
)

// RelevanceResult is the oracle's judgement of one page against the session
// objective, plus the links worth following next (absolute URLs, at most 5).
type RelevanceResult struct {
	Relevant bool     `json:"relevant"`
	Reason   string   `json:"reason,omitempty"`
	NextURLs []string `json:"next_urls"`
}

// ContentOracle scores relevance, discovers links, and extracts structured
// records. Implementations must truncate oversized content internally and
// return safe empty or negative results instead of propagating parser errors.
type ContentOracle interface {
	// GenerateSchema produces a structured description of the target record
	// shape for an objective. Called once per session.
	GenerateSchema(ctx context.Context, objective string) (string, error)

	// ScoreRelevance judges a page against the objective and proposes the
	// next URLs to visit.
	ScoreRelevance(ctx context.Context, objective, content, pageURL string) (*RelevanceResult, error)

	// Extract pulls schema-shaped records out of page content. The screenshot
	// is optional auxiliary context and may be nil.
	Extract(ctx context.Context, content, schema string, screenshot []byte) ([]map[string]any, error)

	// GenerateTitle produces a short session title from the first relevant
	// page.
	GenerateTitle(ctx context.Context, objective, content string) (string, error)
}

// EmbeddingOracle produces text embeddings for semantic deduplication at
// session finalization.
type EmbeddingOracle interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// SeedSource harvests seed URLs from an external system before a crawl
// starts.
type SeedSource interface {
	// Harvest returns seed URLs matching the source-specific filter.
	Harvest(ctx context.Context, filter string) ([]string, error)

	// Type identifies the source implementation.
	Type() models.SeedSourceType
}
