package scheduler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/indago/internal/models"
	"gopkg.in/yaml.v3"
)

// LoadDefinition reads and validates one job definition YAML file. It is
// also used for one-shot runs (`indago -job crawl.yaml`), so the schedule
// field may be empty.
func LoadDefinition(path string) (*models.JobDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	var def models.JobDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", filepath.Base(path), err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDir scans a directory for job definition YAML files and registers the
// scheduled ones. Unparseable files are skipped with a warning so one bad
// definition does not block the rest. Returns the number registered.
func (s *Service) LoadDir(dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		s.logger.Debug().Str("dir", dir).Msg("Jobs directory does not exist, skipping")
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read jobs directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		def, err := LoadDefinition(filepath.Join(dir, entry.Name()))
		if err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to load job definition")
			continue
		}
		if def.Schedule == "" {
			s.logger.Warn().Str("file", entry.Name()).Str("job", def.Name).Msg("Job has no schedule, skipping (run it directly with -job)")
			continue
		}

		if err := s.Register(def); err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to register job")
			continue
		}
		loaded++
	}

	if loaded > 0 {
		s.logger.Info().Int("count", loaded).Str("dir", dir).Msg("Scheduled jobs loaded")
	} else {
		s.logger.Debug().Str("dir", dir).Msg("No scheduled jobs loaded")
	}
	return loaded, nil
}
