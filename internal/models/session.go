package models

import (
	"time"
)

// TitlePending is the sentinel session title until the first relevant page
// produces a real one.
const TitlePending = "Generating Title..."

// SessionStatus represents the state of a crawl session
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Session is the persisted metadata for one crawl run.
type Session struct {
	ID             string        `json:"id" badgerhold:"key"`
	Objective      string        `json:"objective"`
	SeedURL        string        `json:"seed_url"`
	Title          string        `json:"title"`
	Status         SessionStatus `json:"status" badgerhold:"index"`
	PagesScanned   int           `json:"pages_scanned"`
	ExtractedCount int           `json:"extracted_count"`
	Errors         int           `json:"errors"`
	BandwidthSaved int64         `json:"bandwidth_saved"` // Approximate bytes saved by compression, tier-1 only
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// CrawlState is the single mutable record threaded through every crawl phase.
// Phases never mutate it directly; they return a StateUpdate that the machine
// merges through per-field reducers.
//
// Positional alignment: CurrentContents, CurrentScreenshots, RelevantFlags and
// BatchNextURLs are index-aligned with CurrentBatch. Every phase that consumes
// them may assume equal lengths at entry.
type CrawlState struct {
	SessionID string `json:"session_id"`
	Objective string `json:"objective"`
	Title     string `json:"title"`  // Starts as TitlePending, set once by the first relevant page
	Schema    string `json:"schema"` // Target record shape, generated once at start

	Queue   []string        `json:"queue"`   // FIFO frontier, each URL at most once
	Visited map[string]bool `json:"visited"` // URLs with a fetch attempt, any outcome
	Failed  map[string]bool `json:"failed"`  // URLs whose attempt did not yield HTTP 200

	CurrentBatch       []string   `json:"current_batch"`
	CurrentContents    []string   `json:"current_contents"` // "" means the fetch yielded nothing usable
	CurrentScreenshots [][]byte   `json:"-"`
	RelevantFlags      []bool     `json:"relevant_flags"`
	BatchNextURLs      [][]string `json:"batch_next_urls"`

	// TemplateGroups indexes selected URLs by origin (scheme+host). Cumulative,
	// never shrinks. Collected for per-template routing that is not yet enabled.
	TemplateGroups map[string][]string `json:"template_groups"`

	ExtractedCount int   `json:"extracted_count"`
	PagesScanned   int   `json:"pages_scanned"`
	Errors         int   `json:"errors"`
	BandwidthSaved int64 `json:"bandwidth_saved"`
}

// NewCrawlState creates the initial state for a session: the seed URL is the
// sole frontier entry and the title carries the pending sentinel.
func NewCrawlState(sessionID, objective, seedURL string) *CrawlState {
	return &CrawlState{
		SessionID:      sessionID,
		Objective:      objective,
		Title:          TitlePending,
		Queue:          []string{seedURL},
		Visited:        make(map[string]bool),
		Failed:         make(map[string]bool),
		TemplateGroups: make(map[string][]string),
	}
}

// StateUpdate is the partial update a phase returns. Nil pointer fields leave
// the state untouched; each field has exactly one merge rule, applied by the
// machine's reducers:
//
//	replace: Title, Schema, Queue, CurrentBatch, CurrentContents,
//	         CurrentScreenshots, RelevantFlags, BatchNextURLs
//	union:   AddVisited, AddFailed
//	append:  TemplateGroups (per origin)
//	add:     ExtractedDelta, ScannedDelta, ErrorsDelta, BandwidthDelta
type StateUpdate struct {
	Title  *string
	Schema *string

	Queue *[]string

	AddVisited []string
	AddFailed  []string

	CurrentBatch       *[]string
	CurrentContents    *[]string
	CurrentScreenshots *[][]byte
	RelevantFlags      *[]bool
	BatchNextURLs      *[][]string

	TemplateGroups map[string][]string

	ExtractedDelta int
	ScannedDelta   int
	ErrorsDelta    int
	BandwidthDelta int64
}

// SessionResult summarizes a finished crawl for callers of RunSession.
type SessionResult struct {
	SessionID      string        `json:"session_id"`
	Title          string        `json:"title"`
	Status         SessionStatus `json:"status"`
	PagesScanned   int           `json:"pages_scanned"`
	ExtractedCount int           `json:"extracted_count"`
	Errors         int           `json:"errors"`
	BandwidthSaved int64         `json:"bandwidth_saved"`
	Duration       time.Duration `json:"duration"`
	OutputDir      string        `json:"output_dir"`
}
