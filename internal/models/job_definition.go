package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// SeedSourceType selects a configured seed source implementation.
type SeedSourceType string

const (
	SeedSourceIMAP   SeedSourceType = "imap"
	SeedSourceGitHub SeedSourceType = "github"
)

// SeedSourceRef attaches one seed source to a job. Filter is source-specific:
// a subject substring for imap, an "owner/repo[/path]" spec for github.
type SeedSourceRef struct {
	Type   SeedSourceType `yaml:"type" json:"type"`
	Filter string         `yaml:"filter,omitempty" json:"filter,omitempty"`
}

// JobDefinition describes one crawl job as loaded from a YAML file. A job
// either runs immediately (`indago -job crawl.yaml`) or is registered with
// the scheduler when Schedule is set.
type JobDefinition struct {
	Name      string `yaml:"name" json:"name"`
	Objective string `yaml:"objective" json:"objective"`
	SeedURL   string `yaml:"seed_url" json:"seed_url"`
	Schedule  string `yaml:"schedule,omitempty" json:"schedule,omitempty"` // Cron expression; empty = run once

	// Per-job overrides; zero values fall back to the configured defaults.
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	MaxPages  int `yaml:"max_pages,omitempty" json:"max_pages,omitempty"`

	// Extra seed sources harvested before the crawl starts.
	Sources []SeedSourceRef `yaml:"sources,omitempty" json:"sources,omitempty"`
}

// Validate checks the definition is runnable.
func (d *JobDefinition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("job definition name is required")
	}
	if strings.TrimSpace(d.Objective) == "" {
		return fmt.Errorf("job %q: objective is required", d.Name)
	}
	if strings.TrimSpace(d.SeedURL) == "" && len(d.Sources) == 0 {
		return fmt.Errorf("job %q: seed_url or at least one source is required", d.Name)
	}
	if d.BatchSize < 0 || d.BatchSize > 20 {
		return fmt.Errorf("job %q: batch_size %d out of range [0,20]", d.Name, d.BatchSize)
	}
	for i, s := range d.Sources {
		switch s.Type {
		case SeedSourceIMAP, SeedSourceGitHub:
		default:
			return fmt.Errorf("job %q: source %d has unknown type %q", d.Name, i, s.Type)
		}
	}
	if d.Schedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(d.Schedule); err != nil {
			return fmt.Errorf("job %q: invalid cron schedule %q: %w", d.Name, d.Schedule, err)
		}
	}
	return nil
}
