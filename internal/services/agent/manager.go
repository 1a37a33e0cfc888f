package agent

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/models"
)

// templateRoutingThreshold is how many URLs one origin must accumulate
// before the dormant fast-path hook would consider routing that origin's
// batches through a per-template extractor.
const templateRoutingThreshold = 3

// Manager selects the next work batch from the frontier.
type Manager struct {
	batchSize       int
	templateRouting bool
	logger          arbor.ILogger
}

// NewManager creates a batch manager. batchSize is assumed pre-clamped by
// config normalization.
func NewManager(cfg *common.CrawlerConfig, logger arbor.ILogger) *Manager {
	return &Manager{
		batchSize:       cfg.BatchSize,
		templateRouting: cfg.EnableTemplateRouting,
		logger:          logger,
	}
}

// SelectBatch pops from the queue front until batchSize unique, unvisited
// URLs are collected or the queue is exhausted. Visited pops consume no
// slot. Returns the batch, the remaining queue, and the per-origin groups
// for the selected URLs; a drained queue yields an empty batch.
func (m *Manager) SelectBatch(state *models.CrawlState) (batch []string, remaining []string, groups map[string][]string) {
	remaining = state.Queue
	groups = make(map[string][]string)
	inBatch := make(map[string]bool)

	for len(batch) < m.batchSize && len(remaining) > 0 {
		url := remaining[0]
		remaining = remaining[1:]

		if state.Visited[url] || inBatch[url] {
			continue
		}

		inBatch[url] = true
		batch = append(batch, url)

		origin := common.Origin(url)
		if origin != "" {
			groups[origin] = append(groups[origin], url)
		}
	}

	if m.templateRouting {
		m.logTemplateCandidates(state, groups)
	}

	return batch, remaining, groups
}

// logTemplateCandidates reports origins that have accumulated enough URLs
// for the template fast path. The decision is logged only; every batch still
// takes the standard extraction path.
func (m *Manager) logTemplateCandidates(state *models.CrawlState, groups map[string][]string) {
	for origin, urls := range groups {
		total := len(state.TemplateGroups[origin]) + len(urls)
		if total >= templateRoutingThreshold {
			m.logger.Info().
				Str("origin", origin).
				Int("group_size", total).
				Msg("Origin qualifies for template routing (dormant, using standard path)")
		}
	}
}
