package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// stopTimeout bounds how long Stop waits for an in-flight crawl to finish.
const stopTimeout = 30 * time.Second

// jobEntry is one registered recurring job.
type jobEntry struct {
	definition *models.JobDefinition
	cronID     cron.EntryID
	lastRun    *time.Time
	lastError  string
	running    bool
}

// JobStatus is a point-in-time snapshot of a registered job.
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	IsRunning bool       `json:"is_running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Service runs crawl job definitions on cron schedules. Executions are
// serialized: one crawl at a time, and a schedule that fires while its own
// job is still running skips that cycle.
type Service struct {
	runner interfaces.CrawlRunner
	cron   *cron.Cron
	logger arbor.ILogger

	mu      sync.Mutex // protects jobs
	runMu   sync.Mutex // serializes job execution
	jobs    map[string]*jobEntry
	started bool
}

func NewService(runner interfaces.CrawlRunner, logger arbor.ILogger) *Service {
	return &Service{
		runner: runner,
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
	}
}

// Register adds a job definition to the schedule. The definition must be
// valid and carry a cron schedule.
func (s *Service) Register(def *models.JobDefinition) error {
	if def == nil {
		return fmt.Errorf("nil job definition")
	}
	if err := def.Validate(); err != nil {
		return err
	}
	if def.Schedule == "" {
		return fmt.Errorf("job %q has no schedule", def.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[def.Name]; exists {
		return fmt.Errorf("job %q already registered", def.Name)
	}

	name := def.Name
	cronID, err := s.cron.AddFunc(def.Schedule, func() {
		s.runJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", def.Name, err)
	}

	s.jobs[def.Name] = &jobEntry{definition: def, cronID: cronID}
	s.logger.Info().
		Str("job", def.Name).
		Str("schedule", def.Schedule).
		Msg("Job registered")
	return nil
}

// Start begins firing schedules.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already running")
	}
	s.cron.Start()
	s.started = true

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the schedules and waits for an in-flight job, bounded by
// stopTimeout.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info().Msg("Scheduler stopped")
	case <-time.After(stopTimeout):
		s.logger.Warn().Msg("Scheduler stop timed out with a job still running")
	}
	return nil
}

// Statuses returns a snapshot of every registered job.
func (s *Service) Statuses() map[string]JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]JobStatus, len(s.jobs))
	for name, entry := range s.jobs {
		status := JobStatus{
			Name:      name,
			Schedule:  entry.definition.Schedule,
			IsRunning: entry.running,
			LastRun:   entry.lastRun,
			LastError: entry.lastError,
		}
		for _, cronEntry := range s.cron.Entries() {
			if cronEntry.ID == entry.cronID {
				if !cronEntry.Next.IsZero() {
					next := cronEntry.Next
					status.NextRun = &next
				}
				break
			}
		}
		statuses[name] = status
	}
	return statuses
}

// runJob executes one job. A job whose previous run is still going skips the
// cycle; distinct jobs queue behind the execution mutex.
func (s *Service) runJob(name string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC recovered in job execution")
			s.mu.Lock()
			if entry, exists := s.jobs[name]; exists {
				entry.running = false
				entry.lastError = fmt.Sprintf("panic: %v", r)
			}
			s.mu.Unlock()
		}
	}()

	s.mu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.mu.Unlock()
		s.logger.Warn().Str("job", name).Msg("Job not found")
		return
	}
	if entry.running {
		s.mu.Unlock()
		s.logger.Debug().Str("job", name).Msg("Previous run still active, skipping cycle")
		return
	}
	entry.running = true
	def := entry.definition
	s.mu.Unlock()

	s.runMu.Lock()
	defer s.runMu.Unlock()

	started := time.Now()
	s.logger.Info().Str("job", name).Msg("Job execution started")

	result, err := s.runner.RunJob(context.Background(), def)

	completed := time.Now()
	s.mu.Lock()
	entry.running = false
	entry.lastRun = &completed
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Str("job", name).
			Err(err).
			Dur("duration", time.Since(started)).
			Msg("Job execution failed")
		return
	}
	s.logger.Info().
		Str("job", name).
		Str("session_id", result.SessionID).
		Int("pages_scanned", result.PagesScanned).
		Int("extracted", result.ExtractedCount).
		Dur("duration", time.Since(started)).
		Msg("Job execution completed")
}
