package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// phaseInitialization harvests seed sources and generates the record schema.
// Schema failure aborts the session; a failed seed source only loses its
// seeds.
func (r *sessionRun) phaseInitialization(ctx context.Context) (*models.StateUpdate, error) {
	update := &models.StateUpdate{}

	if len(r.sourceRefs) > 0 {
		queue := append([]string(nil), r.state.Queue...)
		inQueue := make(map[string]bool, len(queue))
		for _, url := range queue {
			inQueue[url] = true
		}

		for _, ref := range r.sourceRefs {
			src, ok := r.machine.sources[ref.Type]
			if !ok {
				r.logger.Warn().Str("source", string(ref.Type)).Msg("Seed source not configured, skipping")
				continue
			}
			urls, err := src.Harvest(ctx, ref.Filter)
			if err != nil {
				r.logger.Warn().Err(err).Str("source", string(ref.Type)).Msg("Seed source harvest failed")
				continue
			}
			added := 0
			for _, url := range urls {
				if url == "" || inQueue[url] {
					continue
				}
				inQueue[url] = true
				queue = append(queue, url)
				added++
			}
			r.logger.Info().
				Str("source", string(ref.Type)).
				Str("filter", ref.Filter).
				Int("seeds", added).
				Msg("Seed source harvested")
		}
		update.Queue = &queue
	}

	if r.state.Schema == "" {
		r.logger.Info().Msg("Generating record schema from objective")
		schema, err := r.machine.oracle.GenerateSchema(ctx, r.state.Objective)
		if err != nil {
			return nil, fmt.Errorf("schema generation failed: %w", err)
		}
		update.Schema = &schema
	}

	return update, nil
}

// phaseCrawlManager selects the next batch. An empty batch routes the
// machine to Finalization; the page limit forces that route early.
func (r *sessionRun) phaseCrawlManager(ctx context.Context) (*models.StateUpdate, error) {
	if r.maxPages > 0 && r.state.PagesScanned >= r.maxPages {
		r.logger.Info().
			Int("pages_scanned", r.state.PagesScanned).
			Int("max_pages", r.maxPages).
			Msg("Page limit reached, finishing session")
		empty := []string{}
		return &models.StateUpdate{CurrentBatch: &empty}, nil
	}

	batch, remaining, groups := r.manager.SelectBatch(r.state)

	r.logger.Debug().
		Int("batch_size", len(batch)).
		Int("queue_remaining", len(remaining)).
		Msg("Batch selected")

	return &models.StateUpdate{
		Queue:          &remaining,
		CurrentBatch:   &batch,
		TemplateGroups: groups,
	}, nil
}

// phaseFetcher fetches the batch, one goroutine per URL. Every URL becomes
// visited regardless of outcome; non-200 results also become failed. A
// panicking unit yields a neutral result for its position only.
func (r *sessionRun) phaseFetcher(ctx context.Context) (*models.StateUpdate, error) {
	batch := r.state.CurrentBatch
	n := len(batch)

	contents := make([]string, n)
	screenshots := make([][]byte, n)
	statuses := make([]int, n)
	savedBytes := make([]int64, n)

	var wg sync.WaitGroup
	for i, url := range batch {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			defer r.containUnit("fetch", url)

			result := r.machine.fetcher.Fetch(ctx, url)
			contents[i] = result.Content
			screenshots[i] = result.Screenshot
			statuses[i] = result.Status
			savedBytes[i] = result.SavedBytes
		}(i, url)
	}
	wg.Wait()

	update := &models.StateUpdate{
		AddVisited:         batch,
		CurrentContents:    &contents,
		CurrentScreenshots: &screenshots,
	}
	for i, url := range batch {
		if statuses[i] == 200 {
			update.ScannedDelta++
			update.BandwidthDelta += savedBytes[i]
		} else {
			update.AddFailed = append(update.AddFailed, url)
			update.ErrorsDelta++
		}
	}
	return update, nil
}

// phaseRelevanceAnalyzer scores each fetched page against the objective and
// collects follow-up links, positionally aligned with the batch. The first
// relevant page of the session also names it.
func (r *sessionRun) phaseRelevanceAnalyzer(ctx context.Context) (*models.StateUpdate, error) {
	batch := r.state.CurrentBatch
	contents := r.state.CurrentContents
	n := len(batch)

	flags := make([]bool, n)
	nextURLs := make([][]string, n)

	var wg sync.WaitGroup
	for i := range batch {
		if contents[i] == "" {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer r.containUnit("relevance", batch[i])

			verdict, err := r.machine.oracle.ScoreRelevance(ctx, r.state.Objective, contents[i], batch[i])
			if err != nil || verdict == nil {
				return
			}
			flags[i] = verdict.Relevant
			nextURLs[i] = verdict.NextURLs

			r.logger.Info().
				Str("url", batch[i]).
				Bool("relevant", verdict.Relevant).
				Str("reason", verdict.Reason).
				Int("next_urls", len(verdict.NextURLs)).
				Msg("Relevance scored")
		}(i)
	}
	wg.Wait()

	update := &models.StateUpdate{
		RelevantFlags: &flags,
		BatchNextURLs: &nextURLs,
	}

	if r.state.Title == models.TitlePending {
		for i := range batch {
			if !flags[i] || contents[i] == "" {
				continue
			}
			title, err := r.machine.oracle.GenerateTitle(ctx, r.state.Objective, contents[i])
			if err == nil && title != "" {
				update.Title = &title
				r.logger.Info().Str("title", title).Msg("Session title generated")
				r.machine.events.Publish(ctx, interfaces.Event{
					Type: interfaces.EventTitleGenerated,
					Payload: map[string]interface{}{
						"session_id": r.session.ID,
						"title":      title,
					},
				})
			}
			break
		}
	}

	return update, nil
}

// phaseQueueUpdater merges the batch's follow-up links into the frontier.
// Uniqueness is enforced at insertion: nothing visited and nothing already
// queued gets in.
func (r *sessionRun) phaseQueueUpdater(ctx context.Context) (*models.StateUpdate, error) {
	queue := append([]string(nil), r.state.Queue...)
	inQueue := make(map[string]bool, len(queue))
	for _, url := range queue {
		inQueue[url] = true
	}

	added := 0
	for _, urls := range r.state.BatchNextURLs {
		for _, url := range urls {
			if url == "" || r.state.Visited[url] || inQueue[url] {
				continue
			}
			inQueue[url] = true
			queue = append(queue, url)
			added++
		}
	}

	if added > 0 {
		r.logger.Info().Int("new_urls", added).Int("queue_length", len(queue)).Msg("Frontier extended")
	}

	return &models.StateUpdate{Queue: &queue}, nil
}

// phaseExtractor pulls schema-shaped records out of relevant pages and
// appends them to the record sink. One unit failing loses that page's
// records only.
func (r *sessionRun) phaseExtractor(ctx context.Context) (*models.StateUpdate, error) {
	batch := r.state.CurrentBatch
	contents := r.state.CurrentContents
	flags := r.state.RelevantFlags
	screenshots := r.state.CurrentScreenshots
	n := len(batch)

	counts := make([]int, n)

	var wg sync.WaitGroup
	for i := range batch {
		if !flags[i] || contents[i] == "" {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer r.containUnit("extract", batch[i])

			records, err := r.machine.oracle.Extract(ctx, contents[i], r.state.Schema, screenshots[i])
			if err != nil || len(records) == 0 {
				return
			}

			screenshotPath := ""
			if len(screenshots[i]) > 0 {
				path, err := r.machine.exporter.SaveScreenshot(r.session.ID, screenshots[i])
				if err != nil {
					r.logger.Warn().Err(err).Str("url", batch[i]).Msg("Failed to save screenshot")
				} else {
					screenshotPath = path
				}
			}

			for _, fields := range records {
				if screenshotPath != "" {
					fields["_metadata"] = map[string]interface{}{"screenshot_path": screenshotPath}
				}
				record := models.NewExtractedRecord(r.session.ID, batch[i], fields)
				if err := r.machine.exporter.Append(ctx, record); err != nil {
					r.logger.Warn().Err(err).Str("url", batch[i]).Msg("Failed to append record")
					continue
				}
				counts[i]++
				r.machine.events.Publish(ctx, interfaces.Event{
					Type: interfaces.EventRecordExtracted,
					Payload: map[string]interface{}{
						"session_id": r.session.ID,
						"source_url": batch[i],
						"record_id":  record.ID,
					},
				})
			}

			r.logger.Info().Str("url", batch[i]).Int("records", counts[i]).Msg("Records extracted")
		}(i)
	}
	wg.Wait()

	update := &models.StateUpdate{}
	for _, count := range counts {
		update.ExtractedDelta += count
	}
	return update, nil
}

// phaseFinalization runs the export pipeline. Reaching this phase means the
// crawl itself finished, so the session is completed even if an export
// artifact fails.
func (r *sessionRun) phaseFinalization(ctx context.Context) (*models.StateUpdate, error) {
	r.logger.Info().
		Int("extracted_count", r.state.ExtractedCount).
		Msg("Finalizing session")

	outputDir, err := r.machine.exporter.Finalize(ctx, r.session)
	if err != nil {
		return nil, fmt.Errorf("finalize failed: %w", err)
	}
	r.outputDir = outputDir
	return nil, nil
}

// containUnit is the per-unit failure boundary inside batch fan-out: a
// panicking unit logs and leaves its slots at their neutral zero values.
func (r *sessionRun) containUnit(stage, url string) {
	if rec := recover(); rec != nil {
		r.logger.Error().
			Str("stage", stage).
			Str("url", url).
			Str("panic", fmt.Sprintf("%v", rec)).
			Msg("PANIC in batch unit - recovered")
	}
}
