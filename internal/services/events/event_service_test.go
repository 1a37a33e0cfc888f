package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
)

func TestSubscribeRejectsNilHandler(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	if err := svc.Subscribe(interfaces.EventURLFetched, nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestPublishSyncDeliversToAllSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var mu sync.Mutex
	var got []string

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("handler-%d", i)
		err := svc.Subscribe(interfaces.EventURLFetched, func(ctx context.Context, event interfaces.Event) error {
			mu.Lock()
			got = append(got, name)
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
	}

	event := interfaces.Event{Type: interfaces.EventURLFetched, Payload: map[string]interface{}{"url": "https://example.com"}}
	if err := svc.PublishSync(context.Background(), event); err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(got))
	}
}

func TestPublishIsFireAndForget(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	release := make(chan struct{})
	var delivered atomic.Int32

	err := svc.Subscribe(interfaces.EventSessionStarted, func(ctx context.Context, event interfaces.Event) error {
		<-release
		delivered.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	start := time.Now()
	if err := svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventSessionStarted}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Publish blocked on slow handler: %v", elapsed)
	}

	close(release)
	deadline := time.After(2 * time.Second)
	for delivered.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("handler never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPublishSyncReportsHandlerErrors(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	svc.Subscribe(interfaces.EventURLFailed, func(ctx context.Context, event interfaces.Event) error {
		return fmt.Errorf("boom")
	})
	svc.Subscribe(interfaces.EventURLFailed, func(ctx context.Context, event interfaces.Event) error {
		return nil
	})

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventURLFailed})
	if err == nil {
		t.Fatal("expected aggregated handler error")
	}
}

func TestPublishSyncContainsPanics(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	svc.Subscribe(interfaces.EventRecordExtracted, func(ctx context.Context, event interfaces.Event) error {
		panic("handler exploded")
	})

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventRecordExtracted})
	if err == nil {
		t.Fatal("expected error from panicking handler")
	}
}

func TestPublishToEventTypeWithoutSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	if err := svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventPhaseCompleted}); err != nil {
		t.Fatalf("Publish without subscribers should be a no-op, got: %v", err)
	}
	if err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventPhaseCompleted}); err != nil {
		t.Fatalf("PublishSync without subscribers should be a no-op, got: %v", err)
	}
}

func TestCloseDropsSubscriptions(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var delivered atomic.Int32
	svc.Subscribe(interfaces.EventSessionCompleted, func(ctx context.Context, event interfaces.Event) error {
		delivered.Add(1)
		return nil
	})

	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventSessionCompleted})
	if delivered.Load() != 0 {
		t.Fatal("handler ran after Close")
	}

	if err := svc.Subscribe(interfaces.EventSessionCompleted, func(ctx context.Context, event interfaces.Event) error { return nil }); err == nil {
		t.Fatal("expected Subscribe after Close to fail")
	}
}
