package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// phase names the nodes of the crawl graph.
type phase string

const (
	phaseInitialization    phase = "initialization"
	phaseCrawlManager      phase = "crawl_manager"
	phaseFetcher           phase = "fetcher"
	phaseRelevanceAnalyzer phase = "relevance_analyzer"
	phaseQueueUpdater      phase = "queue_updater"
	phaseExtractor         phase = "extractor"
	phaseFinalization      phase = "finalization"
)

// Machine is the crawl engine: a directed graph of phases driven by an
// iterative loop. Phases run strictly sequentially; each returns a partial
// update merged through the reducers before the next edge is evaluated.
// All collaborators are injected; the machine holds no globals.
type Machine struct {
	cfg      *common.Config
	oracle   interfaces.ContentOracle
	fetcher  interfaces.Fetcher
	exporter interfaces.ExportService
	events   interfaces.EventService
	sessions interfaces.SessionStorage
	sources  map[models.SeedSourceType]interfaces.SeedSource
	logger   arbor.ILogger
}

var _ interfaces.CrawlRunner = (*Machine)(nil)

// NewMachine wires the crawl engine. Seed sources are optional; jobs that
// reference an unconfigured source type fail at harvest with a logged
// warning, not an error.
func NewMachine(
	cfg *common.Config,
	oracle interfaces.ContentOracle,
	fetcher interfaces.Fetcher,
	exporter interfaces.ExportService,
	events interfaces.EventService,
	sessions interfaces.SessionStorage,
	sources []interfaces.SeedSource,
	logger arbor.ILogger,
) *Machine {
	byType := make(map[models.SeedSourceType]interfaces.SeedSource, len(sources))
	for _, src := range sources {
		byType[src.Type()] = src
	}
	return &Machine{
		cfg:      cfg,
		oracle:   oracle,
		fetcher:  fetcher,
		exporter: exporter,
		events:   events,
		sessions: sessions,
		sources:  byType,
		logger:   logger,
	}
}

// RunSession crawls from seedURL until the frontier is exhausted or ctx is
// cancelled.
func (m *Machine) RunSession(ctx context.Context, objective, seedURL string) (*models.SessionResult, error) {
	return m.run(ctx, objective, seedURL, m.cfg.Crawler.BatchSize, m.cfg.Crawler.MaxPages, nil)
}

// RunJob runs one job definition with its overrides and seed sources.
func (m *Machine) RunJob(ctx context.Context, job *models.JobDefinition) (*models.SessionResult, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	batchSize := m.cfg.Crawler.BatchSize
	if job.BatchSize > 0 {
		batchSize = job.BatchSize
	}
	maxPages := m.cfg.Crawler.MaxPages
	if job.MaxPages > 0 {
		maxPages = job.MaxPages
	}

	return m.run(ctx, job.Objective, job.SeedURL, batchSize, maxPages, job.Sources)
}

func (m *Machine) run(ctx context.Context, objective, seedURL string, batchSize, maxPages int, sourceRefs []models.SeedSourceRef) (*models.SessionResult, error) {
	if objective == "" {
		return nil, fmt.Errorf("objective is required")
	}
	if seedURL == "" && len(sourceRefs) == 0 {
		return nil, fmt.Errorf("seed URL or a seed source is required")
	}

	session := &models.Session{
		ID:        "sess_" + uuid.New().String(),
		Objective: objective,
		SeedURL:   seedURL,
		Title:     models.TitlePending,
		Status:    models.SessionStatusRunning,
		StartedAt: time.Now(),
	}
	state := models.NewCrawlState(session.ID, objective, seedURL)
	if seedURL == "" {
		state.Queue = nil
	}

	crawlerCfg := m.cfg.Crawler
	crawlerCfg.BatchSize = batchSize

	run := &sessionRun{
		machine:    m,
		session:    session,
		state:      state,
		manager:    NewManager(&crawlerCfg, m.logger.WithCorrelationId(session.ID)),
		maxPages:   maxPages,
		sourceRefs: sourceRefs,
		logger:     m.logger.WithCorrelationId(session.ID),
	}
	return run.loop(ctx)
}

// sessionRun is the per-session execution context: one session, one state,
// one correlated logger.
type sessionRun struct {
	machine    *Machine
	session    *models.Session
	state      *models.CrawlState
	manager    *Manager
	maxPages   int
	sourceRefs []models.SeedSourceRef
	logger     arbor.ILogger
	outputDir  string
}

// loop drives the phase graph iteratively until Finalization completes or
// the context is cancelled. A failed phase merges no update and the loop
// continues from CrawlManager; only Initialization is allowed to abort the
// session, because nothing can run without it.
func (r *sessionRun) loop(ctx context.Context) (*models.SessionResult, error) {
	r.logger.Info().
		Str("objective", r.session.Objective).
		Str("seed_url", r.session.SeedURL).
		Msg("Crawl session starting")

	r.persist()
	r.machine.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventSessionStarted,
		Payload: map[string]interface{}{
			"session_id": r.session.ID,
			"objective":  r.session.Objective,
			"seed_url":   r.session.SeedURL,
		},
	})

	var finalizeErr error
	current := phaseInitialization

	for {
		select {
		case <-ctx.Done():
			return r.finish(models.SessionStatusCancelled, ctx.Err())
		default:
		}

		start := time.Now()
		update, err := r.runPhase(ctx, current)
		if err != nil {
			if current == phaseInitialization {
				r.logger.Error().Err(err).Msg("Initialization failed, aborting session")
				return r.finish(models.SessionStatusFailed, err)
			}
			r.logger.Error().
				Err(err).
				Str("phase", string(current)).
				Msg("Phase failed, continuing from batch selection")
			update = nil
		}

		applyUpdate(r.state, update)
		r.syncSession()
		r.persist()

		r.machine.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventPhaseCompleted,
			Payload: map[string]interface{}{
				"session_id":   r.session.ID,
				"phase":        string(current),
				"duration_ms":  time.Since(start).Milliseconds(),
				"queue_length": len(r.state.Queue),
			},
		})
		r.logger.Debug().
			Str("phase", string(current)).
			Dur("duration", time.Since(start)).
			Int("queue_length", len(r.state.Queue)).
			Msg("Phase completed")

		if current == phaseFinalization {
			finalizeErr = err
			break
		}
		current = r.nextPhase(current, err)
	}

	return r.finish(models.SessionStatusCompleted, finalizeErr)
}

// nextPhase evaluates the outgoing edge of the phase that just ran. Failed
// phases route back to CrawlManager so the crawl survives a bad batch; a
// failed CrawlManager routes to Finalization because no further batch can be
// selected.
func (r *sessionRun) nextPhase(current phase, phaseErr error) phase {
	if phaseErr != nil {
		if current == phaseCrawlManager {
			return phaseFinalization
		}
		return phaseCrawlManager
	}

	switch current {
	case phaseInitialization:
		return phaseCrawlManager
	case phaseCrawlManager:
		if len(r.state.CurrentBatch) > 0 {
			return phaseFetcher
		}
		return phaseFinalization
	case phaseFetcher:
		return phaseRelevanceAnalyzer
	case phaseRelevanceAnalyzer:
		return phaseQueueUpdater
	case phaseQueueUpdater:
		if anyRelevant(r.state.RelevantFlags) {
			return phaseExtractor
		}
		return phaseCrawlManager
	case phaseExtractor:
		return phaseCrawlManager
	default:
		return phaseFinalization
	}
}

// runPhase dispatches one phase with panic containment. A panic becomes a
// phase error, which the loop converts to a no-op update.
func (r *sessionRun) runPhase(ctx context.Context, current phase) (update *models.StateUpdate, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			update = nil
			err = fmt.Errorf("phase %s panicked: %v", current, rec)
			r.logger.Error().
				Str("phase", string(current)).
				Str("panic", fmt.Sprintf("%v", rec)).
				Msg("PANIC in crawl phase - recovered")
		}
	}()

	switch current {
	case phaseInitialization:
		return r.phaseInitialization(ctx)
	case phaseCrawlManager:
		return r.phaseCrawlManager(ctx)
	case phaseFetcher:
		return r.phaseFetcher(ctx)
	case phaseRelevanceAnalyzer:
		return r.phaseRelevanceAnalyzer(ctx)
	case phaseQueueUpdater:
		return r.phaseQueueUpdater(ctx)
	case phaseExtractor:
		return r.phaseExtractor(ctx)
	case phaseFinalization:
		return r.phaseFinalization(ctx)
	default:
		return nil, fmt.Errorf("unknown phase: %s", current)
	}
}

// syncSession mirrors state counters and title onto the persisted session.
func (r *sessionRun) syncSession() {
	r.session.Title = r.state.Title
	r.session.PagesScanned = r.state.PagesScanned
	r.session.ExtractedCount = r.state.ExtractedCount
	r.session.Errors = r.state.Errors
	r.session.BandwidthSaved = r.state.BandwidthSaved
}

// persist snapshots the session and state. Storage failures are logged and
// swallowed: losing a snapshot must not stop the crawl.
func (r *sessionRun) persist() {
	ctx := context.Background()
	if err := r.machine.sessions.SaveSession(ctx, r.session); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to persist session")
	}
	if err := r.machine.sessions.SaveState(ctx, r.session.ID, r.state); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to persist crawl state")
	}
}

// finish closes out the session with the given status and builds the result.
func (r *sessionRun) finish(status models.SessionStatus, runErr error) (*models.SessionResult, error) {
	now := time.Now()
	r.syncSession()
	r.session.Status = status
	r.session.CompletedAt = &now
	r.persist()

	r.machine.events.Publish(context.Background(), interfaces.Event{
		Type: interfaces.EventSessionCompleted,
		Payload: map[string]interface{}{
			"session_id":      r.session.ID,
			"status":          string(status),
			"title":           r.session.Title,
			"pages_scanned":   r.session.PagesScanned,
			"extracted_count": r.session.ExtractedCount,
			"errors":          r.session.Errors,
		},
	})

	r.logger.Info().
		Str("status", string(status)).
		Str("title", r.session.Title).
		Int("pages_scanned", r.session.PagesScanned).
		Int("extracted_count", r.session.ExtractedCount).
		Int("errors", r.session.Errors).
		Dur("duration", now.Sub(r.session.StartedAt)).
		Msg("Crawl session finished")

	result := &models.SessionResult{
		SessionID:      r.session.ID,
		Title:          r.session.Title,
		Status:         status,
		PagesScanned:   r.session.PagesScanned,
		ExtractedCount: r.session.ExtractedCount,
		Errors:         r.session.Errors,
		BandwidthSaved: r.session.BandwidthSaved,
		Duration:       now.Sub(r.session.StartedAt),
		OutputDir:      r.outputDir,
	}
	return result, runErr
}
