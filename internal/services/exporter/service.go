package exporter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// Service implements interfaces.ExportService. During a crawl it appends
// records to the record store and mirrors them into raw JSONL/CSV files under
// the session's output directory. Finalize reads the records back,
// deduplicates them, and writes the clean exports, knowledge graph, and
// session report.
type Service struct {
	cfg      *common.ExportConfig
	records  interfaces.RecordStorage
	embedder interfaces.EmbeddingOracle
	events   interfaces.EventService
	logger   arbor.ILogger

	mu    sync.Mutex
	sinks map[string]*rawSink
}

// Compile-time assertion
var _ interfaces.ExportService = (*Service)(nil)

// NewService creates the export service. The embedder is optional; without it
// semantic deduplication degrades to key-based deduplication.
func NewService(cfg *common.ExportConfig, records interfaces.RecordStorage, embedder interfaces.EmbeddingOracle, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		cfg:      cfg,
		records:  records,
		embedder: embedder,
		events:   events,
		logger:   logger,
		sinks:    make(map[string]*rawSink),
	}
}

// SessionDir returns the output directory for a session.
func (s *Service) SessionDir(sessionID string) string {
	return filepath.Join(s.cfg.OutputDir, sessionID)
}

// Append stores one record durably and mirrors it into the session's raw
// JSONL and CSV files. The record store is authoritative; raw file failures
// are logged and do not fail the append.
func (s *Service) Append(ctx context.Context, record *models.ExtractedRecord) error {
	if record == nil {
		return fmt.Errorf("nil record")
	}

	if err := s.records.AppendRecord(ctx, record); err != nil {
		return fmt.Errorf("record store append failed: %w", err)
	}

	sink, err := s.sink(record.SessionID)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", record.SessionID).Msg("Raw data directory unavailable")
		return nil
	}
	if err := sink.append(record.Fields); err != nil {
		s.logger.Warn().Err(err).Str("record_id", record.ID).Msg("Raw file append failed")
	}
	return nil
}

// SaveScreenshot writes screenshot bytes under a content-derived filename in
// the session's images directory. Saving the same bytes twice reuses the file.
func (s *Service) SaveScreenshot(sessionID string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty screenshot")
	}

	dir := filepath.Join(s.SessionDir(sessionID), "images")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create images dir: %w", err)
	}

	path := filepath.Join(dir, common.HashBytes(data)[:16]+".png")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

// Finalize deduplicates the session's records and writes the clean exports,
// knowledge graph, and report. Individual artifact failures are logged and
// skipped; the remaining artifacts are still produced.
func (s *Service) Finalize(ctx context.Context, session *models.Session) (string, error) {
	if session == nil {
		return "", fmt.Errorf("nil session")
	}

	records, err := s.records.GetRecords(ctx, session.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load session records: %w", err)
	}

	sessionDir := s.SessionDir(session.ID)
	dataDir := filepath.Join(sessionDir, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data dir: %w", err)
	}

	rawCount := len(records)
	clean := s.dedupe(ctx, records)
	s.logger.Info().
		Str("session_id", session.ID).
		Int("raw", rawCount).
		Int("clean", len(clean)).
		Msg("Deduplication complete")

	report := buildReportMarkdown(session, clean, rawCount)

	tasks := []artifactTask{
		{"session.json", func() (string, error) { return s.writeSessionMeta(sessionDir, session) }},
		{"report.html", func() (string, error) { return writeReportHTML(sessionDir, session.Title, report) }},
	}
	if s.cfg.ReportPDF {
		tasks = append(tasks, artifactTask{"report.pdf", func() (string, error) {
			return writeReportPDF(sessionDir, session.Title, report)
		}})
	}
	if len(clean) > 0 {
		tasks = append(tasks,
			artifactTask{"clean_data.jsonl", func() (string, error) { return writeCleanJSONL(dataDir, clean) }},
			artifactTask{"clean_data.csv", func() (string, error) { return writeCleanCSV(dataDir, clean) }},
			artifactTask{"knowledge_graph.graphml", func() (string, error) { return writeGraphML(dataDir, clean) }},
		)
	} else {
		s.logger.Info().Str("session_id", session.ID).Msg("No records extracted, skipping data exports")
	}

	s.runArtifacts(ctx, session.ID, tasks)

	s.logger.Info().
		Str("session_id", session.ID).
		Str("dir", sessionDir).
		Msg("Session exports written")
	return sessionDir, nil
}

// artifactTask is one independent finalize output. The function returns the
// written path.
type artifactTask struct {
	name string
	fn   func() (string, error)
}

// runArtifacts writes all artifacts concurrently. Each failure is logged and
// the rest continue; each success publishes an event.
func (s *Service) runArtifacts(ctx context.Context, sessionID string, tasks []artifactTask) {
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task artifactTask) {
			defer wg.Done()

			path, err := task.fn()
			if err != nil {
				s.logger.Warn().Err(err).
					Str("session_id", sessionID).
					Str("artifact", task.name).
					Msg("Artifact export failed")
				return
			}

			s.logger.Debug().Str("artifact", task.name).Str("path", path).Msg("Artifact written")
			if s.events != nil {
				s.events.Publish(ctx, interfaces.Event{
					Type: interfaces.EventFinalizeArtifact,
					Payload: map[string]interface{}{
						"session_id": sessionID,
						"artifact":   task.name,
						"path":       path,
					},
				})
			}
		}(task)
	}
	wg.Wait()
}

func (s *Service) writeSessionMeta(sessionDir string, session *models.Session) (string, error) {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(sessionDir, "session.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// sink returns the raw-file sink for a session, creating its data directory
// on first use.
func (s *Service) sink(sessionID string) (*rawSink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sink, ok := s.sinks[sessionID]; ok {
		return sink, nil
	}

	dir := filepath.Join(s.SessionDir(sessionID), "data")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	sink := &rawSink{dir: dir}
	s.sinks[sessionID] = sink
	return sink, nil
}

// rawSink owns the append-only raw files for one session. The CSV column set
// is fixed by the first record; later records fill missing columns with "".
type rawSink struct {
	mu     sync.Mutex
	dir    string
	header []string
}

func (r *rawSink) append(fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	line, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := appendLine(filepath.Join(r.dir, "raw_data.jsonl"), append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append raw JSONL: %w", err)
	}

	if err := r.appendCSV(fields); err != nil {
		return fmt.Errorf("failed to append raw CSV: %w", err)
	}
	return nil
}

func (r *rawSink) appendCSV(fields map[string]any) error {
	f, err := os.OpenFile(filepath.Join(r.dir, "raw_data.csv"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if r.header == nil {
		r.header = sortedFieldNames(fields)
		if err := w.Write(r.header); err != nil {
			return err
		}
	}

	row := make([]string, len(r.header))
	for i, name := range r.header {
		row[i] = csvValue(fields[name])
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(line)
	return err
}

func sortedFieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// csvValue renders a field for a CSV cell. Strings pass through, nil becomes
// empty, everything else is JSON-encoded.
func csvValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

func writeCleanJSONL(dataDir string, records []*models.ExtractedRecord) (string, error) {
	path := filepath.Join(dataDir, "clean_data.jsonl")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, record := range records {
		if err := enc.Encode(record.Fields); err != nil {
			return "", err
		}
	}
	return path, nil
}

func writeCleanCSV(dataDir string, records []*models.ExtractedRecord) (string, error) {
	path := filepath.Join(dataDir, "clean_data.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Columns are the union of all field names so late-schema records are
	// not silently truncated.
	seen := make(map[string]bool)
	var header []string
	for _, record := range records {
		for name := range record.Fields {
			if !seen[name] {
				seen[name] = true
				header = append(header, name)
			}
		}
	}
	sort.Strings(header)

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", err
	}
	row := make([]string, len(header))
	for _, record := range records {
		for i, name := range header {
			row[i] = csvValue(record.Fields[name])
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return path, nil
}

func writeGraphML(dataDir string, records []*models.ExtractedRecord) (string, error) {
	graph := buildGraph(records)
	path := filepath.Join(dataDir, "knowledge_graph.graphml")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := graph.WriteGraphML(f); err != nil {
		return "", err
	}
	return path, nil
}

func writeReportHTML(sessionDir, title, markdown string) (string, error) {
	html, err := renderReportHTML(title, markdown)
	if err != nil {
		return "", err
	}
	path := filepath.Join(sessionDir, "report.html")
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func writeReportPDF(sessionDir, title, markdown string) (string, error) {
	pdf, err := renderReportPDF(title, markdown)
	if err != nil {
		return "", err
	}
	path := filepath.Join(sessionDir, "report.pdf")
	if err := os.WriteFile(path, pdf, 0644); err != nil {
		return "", err
	}
	return path, nil
}
