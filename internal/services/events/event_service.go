package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
)

// Service is the in-process pub/sub bus. Publish never blocks the caller on
// a subscriber: every handler runs in its own goroutine and a panicking or
// failing handler is logged, not propagated.
type Service struct {
	subscribers map[interfaces.EventType][]interfaces.EventHandler
	mu          sync.RWMutex
	closed      bool
	logger      arbor.ILogger
}

// NewService creates the event service.
func NewService(logger arbor.ILogger) interfaces.EventService {
	return &Service{
		subscribers: make(map[interfaces.EventType][]interfaces.EventHandler),
		logger:      logger,
	}
}

// Subscribe registers a handler for an event type.
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("event service is closed")
	}

	s.subscribers[eventType] = append(s.subscribers[eventType], handler)

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", len(s.subscribers[eventType])).
		Msg("Event handler subscribed")

	return nil
}

// Publish sends an event to all subscribers asynchronously.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	for _, handler := range s.handlersFor(event.Type) {
		go s.dispatch(ctx, handler, event)
	}
	return nil
}

// PublishSync sends an event and waits for every handler to finish. Handler
// errors are collected; panics are still contained.
func (s *Service) PublishSync(ctx context.Context, event interfaces.Event) error {
	handlers := s.handlersFor(event.Type)
	if len(handlers) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(handlers))

	for _, handler := range handlers {
		wg.Add(1)
		go func(h interfaces.EventHandler) {
			defer wg.Done()
			if err := s.dispatch(ctx, h, event); err != nil {
				errChan <- err
			}
		}(handler)
	}

	wg.Wait()
	close(errChan)

	var failed int
	for range errChan {
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d handlers failed for %s", failed, len(handlers), event.Type)
	}
	return nil
}

// Close drops all subscriptions. Events published after Close go nowhere.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = make(map[interfaces.EventType][]interfaces.EventHandler)
	s.closed = true
	s.logger.Debug().Msg("Event service closed")

	return nil
}

// handlersFor snapshots the subscriber list so dispatch never races a
// concurrent Subscribe.
func (s *Service) handlersFor(eventType interfaces.EventType) []interfaces.EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	registered := s.subscribers[eventType]
	if len(registered) == 0 {
		return nil
	}
	handlers := make([]interfaces.EventHandler, len(registered))
	copy(handlers, registered)
	return handlers
}

// dispatch runs one handler with panic containment.
func (s *Service) dispatch(ctx context.Context, handler interfaces.EventHandler, event interfaces.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			s.logger.Error().
				Str("event_type", string(event.Type)).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC in event handler - recovered")
		}
	}()

	if err = handler(ctx, event); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Msg("Event handler failed")
	}
	return err
}
