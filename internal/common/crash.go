// -----------------------------------------------------------------------
// Crash Protection - post-mortem report for unrecovered panics
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// maxGoroutineDump caps the buffer used for the all-goroutine stack dump.
const maxGoroutineDump = 64 << 20

// CrashReporter writes a post-mortem report file when the process dies on
// an unrecovered panic. It is built once in main, after the logger, so the
// report lands next to the log files.
type CrashReporter struct {
	dir    string
	logger arbor.ILogger
}

// NewCrashReporter prepares the report directory. When the directory cannot
// be created the failure is logged and reports fall back to stderr.
func NewCrashReporter(dir string, logger arbor.ILogger) *CrashReporter {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("Cannot create crash report directory")
	}
	return &CrashReporter{dir: dir, logger: logger}
}

// Recover is deferred at the top of main. It converts an unrecovered panic
// into a report file plus a final log line, then exits non-zero.
func (c *CrashReporter) Recover() {
	r := recover()
	if r == nil {
		return
	}
	path := c.WriteReport(r, currentStack())
	event := c.logger.Error().Str("panic", fmt.Sprint(r))
	if path != "" {
		event = event.Str("report", path)
	}
	event.Msg("Process terminated by unrecovered panic")
	os.Exit(1)
}

// WriteReport renders and writes the report, returning its path. On a write
// failure the report goes to stderr instead and "" is returned.
func (c *CrashReporter) WriteReport(panicVal interface{}, stackTrace string) string {
	now := time.Now()
	report := c.render(panicVal, stackTrace, now)
	path := filepath.Join(c.dir, fmt.Sprintf("crash-%s.log", now.Format("2006-01-02T15-04-05")))
	if err := os.WriteFile(path, []byte(report), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write crash report: %v\n%s", err, report)
		return ""
	}
	return path
}

func (c *CrashReporter) render(panicVal interface{}, stackTrace string, now time.Time) string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var b strings.Builder
	fmt.Fprintf(&b, "indago crash report\ngenerated: %s\nversion: %s\n",
		now.Format(time.RFC3339), GetFullVersion())
	fmt.Fprintf(&b, "\n-- panic --\n%v\n", panicVal)
	fmt.Fprintf(&b, "\n-- stack --\n%s\n", stackTrace)
	fmt.Fprintf(&b, "\n-- goroutines --\n%s\n", allStacks())
	fmt.Fprintf(&b, "\n-- runtime --\n")
	fmt.Fprintf(&b, "go %s %s/%s, %d cpus, %d goroutines\n",
		runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.NumGoroutine())
	fmt.Fprintf(&b, "heap alloc %d MB, sys %d MB, gc cycles %d\n",
		m.Alloc/1024/1024, m.Sys/1024/1024, m.NumGC)
	return b.String()
}

// currentStack returns the calling goroutine's stack.
func currentStack() string {
	buf := make([]byte, 8192)
	return string(buf[:runtime.Stack(buf, false)])
}

// allStacks dumps every goroutine, growing the buffer until the dump fits.
func allStacks() string {
	for size := 64 << 10; size <= maxGoroutineDump; size *= 2 {
		buf := make([]byte, size)
		if n := runtime.Stack(buf, true); n < size {
			return string(buf[:n])
		}
	}
	return "goroutine dump truncated"
}
