package handlers

import (
	"strings"
	"sync"

	plog "github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	arborlevels "github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/indago/internal/common"
)

// logChannelCapacity bounds the queue between arbor and the feed; a full
// channel drops batches rather than blocking the logger.
const logChannelCapacity = 10

// LogEntry is the shape log lines take on the feed.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// LogFeed consumes log batches from arbor's channel and relays qualifying
// lines to connected feed clients. Register its channel on the logger with
// SetChannel; filtering happens here, off the logging path.
type LogFeed struct {
	handler         *WebSocketHandler
	logger          arbor.ILogger
	channel         chan []arbormodels.LogEvent
	minLevel        arbor.LogLevel
	excludePatterns []string
	done            chan struct{}
	wg              sync.WaitGroup
	closeOnce       sync.Once
}

// NewLogFeed builds the feed consumer. wsConfig controls the minimum
// broadcast level and message patterns to suppress; nil falls back to
// info-level with the connection-churn messages excluded.
func NewLogFeed(handler *WebSocketHandler, logger arbor.ILogger, wsConfig *common.WebSocketConfig) *LogFeed {
	minLevel := arbor.InfoLevel
	excludePatterns := []string{
		"WebSocket client connected",
		"WebSocket client disconnected",
	}
	if wsConfig != nil {
		minLevel = parseLogLevel(wsConfig.MinLevel)
		if len(wsConfig.ExcludePatterns) > 0 {
			excludePatterns = wsConfig.ExcludePatterns
		}
	}
	// A failed feed write logs a warning; broadcasting that warning would
	// feed straight back into this consumer.
	excludePatterns = append(excludePatterns, "Failed to send feed message")

	return &LogFeed{
		handler:         handler,
		logger:          logger,
		channel:         make(chan []arbormodels.LogEvent, logChannelCapacity),
		minLevel:        minLevel,
		excludePatterns: excludePatterns,
		done:            make(chan struct{}),
	}
}

// Channel returns the channel to register on the logger with SetChannel.
func (f *LogFeed) Channel() chan []arbormodels.LogEvent {
	return f.channel
}

// Start launches the consumer goroutine.
func (f *LogFeed) Start() {
	f.wg.Add(1)
	go f.consume()
}

// Close stops the consumer after draining queued batches.
func (f *LogFeed) Close() error {
	f.closeOnce.Do(func() { close(f.done) })
	f.wg.Wait()
	return nil
}

func (f *LogFeed) consume() {
	defer f.wg.Done()

	for {
		select {
		case batch, ok := <-f.channel:
			if !ok {
				return
			}
			for _, event := range batch {
				f.relay(event)
			}
		case <-f.done:
			// Drain whatever arrived before shutdown.
			for {
				select {
				case batch := <-f.channel:
					for _, event := range batch {
						f.relay(event)
					}
				default:
					return
				}
			}
		}
	}
}

// relay broadcasts one log event if it clears the level and pattern filters.
func (f *LogFeed) relay(event arbormodels.LogEvent) {
	if arborlevels.FromLogLevel(event.Level) < f.minLevel {
		return
	}
	for _, pattern := range f.excludePatterns {
		if strings.Contains(event.Message, pattern) {
			return
		}
	}

	f.handler.BroadcastLog(LogEntry{
		Timestamp: event.Timestamp.Format("15:04:05"),
		Level:     levelString(event.Level),
		Message:   event.Message,
		SessionID: event.CorrelationID,
	})
}

// parseLogLevel converts a config string to an arbor level.
func parseLogLevel(level string) arbor.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return arbor.DebugLevel
	case "info":
		return arbor.InfoLevel
	case "warn", "warning":
		return arbor.WarnLevel
	case "error":
		return arbor.ErrorLevel
	default:
		return arbor.InfoLevel
	}
}

// levelString maps a phuslu level onto the feed's lowercase names.
func levelString(level plog.Level) string {
	switch level {
	case plog.ErrorLevel, plog.FatalLevel, plog.PanicLevel:
		return "error"
	case plog.WarnLevel:
		return "warn"
	case plog.InfoLevel:
		return "info"
	case plog.DebugLevel, plog.TraceLevel:
		return "debug"
	default:
		return "info"
	}
}
