package agent

import (
	"github.com/ternarybob/indago/internal/models"
)

// applyUpdate merges one phase's partial update into the state. Each field
// has exactly one merge rule; phases never touch the state directly, so this
// is the only place crawl state mutates.
func applyUpdate(state *models.CrawlState, update *models.StateUpdate) {
	if update == nil {
		return
	}

	if update.Title != nil {
		state.Title = *update.Title
	}
	if update.Schema != nil {
		state.Schema = *update.Schema
	}

	if update.Queue != nil {
		state.Queue = *update.Queue
	}

	for _, url := range update.AddVisited {
		state.Visited[url] = true
	}
	for _, url := range update.AddFailed {
		state.Failed[url] = true
	}

	if update.CurrentBatch != nil {
		state.CurrentBatch = *update.CurrentBatch
	}
	if update.CurrentContents != nil {
		state.CurrentContents = *update.CurrentContents
	}
	if update.CurrentScreenshots != nil {
		state.CurrentScreenshots = *update.CurrentScreenshots
	}
	if update.RelevantFlags != nil {
		state.RelevantFlags = *update.RelevantFlags
	}
	if update.BatchNextURLs != nil {
		state.BatchNextURLs = *update.BatchNextURLs
	}

	for origin, urls := range update.TemplateGroups {
		state.TemplateGroups[origin] = append(state.TemplateGroups[origin], urls...)
	}

	state.ExtractedCount += update.ExtractedDelta
	state.PagesScanned += update.ScannedDelta
	state.Errors += update.ErrorsDelta
	state.BandwidthSaved += update.BandwidthDelta
}

// anyRelevant reports whether the last batch flagged at least one page.
func anyRelevant(flags []bool) bool {
	for _, flag := range flags {
		if flag {
			return true
		}
	}
	return false
}
