package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/models"
)

type fakeRunner struct {
	mu     sync.Mutex
	jobs   []*models.JobDefinition
	result *models.SessionResult
	err    error
}

func (f *fakeRunner) RunSession(ctx context.Context, objective, seedURL string) (*models.SessionResult, error) {
	return f.result, f.err
}

func (f *fakeRunner) RunJob(ctx context.Context, job *models.JobDefinition) (*models.SessionResult, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestScheduler() (*Service, *fakeRunner) {
	runner := &fakeRunner{result: &models.SessionResult{SessionID: "sess_1", PagesScanned: 4, ExtractedCount: 9}}
	return NewService(runner, arbor.NewLogger()), runner
}

func scheduledJob(name string) *models.JobDefinition {
	return &models.JobDefinition{
		Name:      name,
		Objective: "Track widget prices",
		SeedURL:   "https://example.com/widgets",
		Schedule:  "0 2 * * *",
	}
}

func TestRegisterRejectsInvalidDefinition(t *testing.T) {
	s, _ := newTestScheduler()

	if err := s.Register(nil); err == nil {
		t.Fatal("nil definition must be rejected")
	}

	def := scheduledJob("nightly")
	def.Objective = ""
	if err := s.Register(def); err == nil {
		t.Fatal("invalid definition must be rejected")
	}
}

func TestRegisterRequiresSchedule(t *testing.T) {
	s, _ := newTestScheduler()
	def := scheduledJob("nightly")
	def.Schedule = ""

	if err := s.Register(def); err == nil {
		t.Fatal("unscheduled definition must be rejected")
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	s, _ := newTestScheduler()
	if err := s.Register(scheduledJob("nightly")); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := s.Register(scheduledJob("nightly")); err == nil {
		t.Fatal("duplicate name must be rejected")
	}
}

func TestRunJobRecordsResult(t *testing.T) {
	s, runner := newTestScheduler()
	if err := s.Register(scheduledJob("nightly")); err != nil {
		t.Fatalf("register: %v", err)
	}

	s.runJob("nightly")

	if len(runner.jobs) != 1 || runner.jobs[0].Name != "nightly" {
		t.Fatalf("runner received %v", runner.jobs)
	}
	status := s.Statuses()["nightly"]
	if status.LastRun == nil {
		t.Fatal("last run must be recorded")
	}
	if status.LastError != "" {
		t.Fatalf("unexpected last error %q", status.LastError)
	}
	if status.IsRunning {
		t.Fatal("job must not stay marked running")
	}
}

func TestRunJobRecordsError(t *testing.T) {
	s, runner := newTestScheduler()
	runner.err = errors.New("seed unreachable")
	if err := s.Register(scheduledJob("nightly")); err != nil {
		t.Fatalf("register: %v", err)
	}

	s.runJob("nightly")

	status := s.Statuses()["nightly"]
	if status.LastError != "seed unreachable" {
		t.Fatalf("last error = %q", status.LastError)
	}
	if status.LastRun == nil {
		t.Fatal("failed runs still record last run")
	}

	runner.err = nil
	s.runJob("nightly")
	if got := s.Statuses()["nightly"].LastError; got != "" {
		t.Fatalf("success must clear last error, got %q", got)
	}
}

func TestRunJobSkipsWhenAlreadyRunning(t *testing.T) {
	s, runner := newTestScheduler()
	if err := s.Register(scheduledJob("nightly")); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.mu.Lock()
	s.jobs["nightly"].running = true
	s.mu.Unlock()

	s.runJob("nightly")

	if len(runner.jobs) != 0 {
		t.Fatal("overlapping cycle must be skipped")
	}
}

func TestStartStop(t *testing.T) {
	s, _ := newTestScheduler()
	if err := s.Register(scheduledJob("nightly")); err != nil {
		t.Fatalf("register: %v", err)
	}

	if s.Statuses()["nightly"].NextRun != nil {
		t.Fatal("stopped scheduler must not report a next run")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatal("second start must fail")
	}
	if s.Statuses()["nightly"].NextRun == nil {
		t.Fatal("running scheduler must report the next run time")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop on stopped scheduler: %v", err)
	}
}

func TestLoadDefinition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	body := "name: price-watch\nobjective: Track widget prices\nseed_url: https://example.com\nbatch_size: 8\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if def.Name != "price-watch" || def.BatchSize != 8 {
		t.Fatalf("def = %+v", def)
	}

	if _, err := LoadDefinition(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("missing file must fail")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("name: bad\nobjective: x\nseed_url: https://example.com\nbatch_size: 99\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadDefinition(invalid); err == nil {
		t.Fatal("invalid definition must fail")
	}
}

func TestLoadDirRegistersScheduledJobs(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("nightly.yaml", "name: nightly-widgets\nobjective: Track widget prices\nseed_url: https://example.com/widgets\nschedule: \"0 2 * * *\"\n")
	write("oneshot.yml", "name: oneshot\nobjective: One-off price check\nseed_url: https://example.com\n")
	write("broken.yaml", "{{not yaml")
	write("notes.txt", "name: ignored\n")
	if err := os.Mkdir(filepath.Join(dir, "archive.yaml"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	s, _ := newTestScheduler()
	loaded, err := s.LoadDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if loaded != 1 {
		t.Fatalf("loaded = %d, want 1", loaded)
	}
	if _, ok := s.Statuses()["nightly-widgets"]; !ok {
		t.Fatal("scheduled job must be registered")
	}
}

func TestLoadDirMissingDirectory(t *testing.T) {
	s, _ := newTestScheduler()

	loaded, err := s.LoadDir(filepath.Join(t.TempDir(), "absent"))
	if err != nil || loaded != 0 {
		t.Fatalf("missing dir: loaded=%d err=%v", loaded, err)
	}
}
