package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventSessionCompleted EventType = "session_completed"
	EventPhaseCompleted   EventType = "phase_completed"
	EventURLFetched       EventType = "url_fetched"
	EventURLFailed        EventType = "url_failed"
	EventRenderEscalated  EventType = "render_escalated"
	EventRecordExtracted  EventType = "record_extracted"
	EventTitleGenerated   EventType = "title_generated"
	EventFinalizeArtifact EventType = "finalize_artifact"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the pub/sub event bus. Publish is fire-and-forget:
// publishers never block on, or fail because of, a slow or broken subscriber.
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes an event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
