package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

func TestAcquireFirstIsImmediate(t *testing.T) {
	limiter := NewLimiter(10, 2, arbor.NewLogger())

	start := time.Now()
	if err := limiter.Acquire(context.Background(), "https://example.com/a"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Expected first acquire to be immediate, took %v", elapsed)
	}
}

func TestAcquireEnforcesDomainSpacing(t *testing.T) {
	// Domain gap 500ms, global effectively unlimited.
	limiter := NewLimiter(1000, 2, arbor.NewLogger())

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background(), "https://example.com/page"); err != nil {
				t.Errorf("Acquire failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// Five acquires at 2 req/s span four 500ms gaps.
	if elapsed := time.Since(start); elapsed < 2*time.Second {
		t.Errorf("Expected 5 acquires to take at least 2s, took %v", elapsed)
	}
}

func TestAcquireEnforcesGlobalSpacing(t *testing.T) {
	// Global gap 100ms, domain effectively unlimited; distinct domains so
	// only the global clock applies.
	limiter := NewLimiter(10, 1000, arbor.NewLogger())

	start := time.Now()
	for _, url := range []string{
		"https://one.example.com/",
		"https://two.example.com/",
		"https://three.example.com/",
	} {
		if err := limiter.Acquire(context.Background(), url); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("Expected 3 acquires to take at least 200ms, took %v", elapsed)
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	// Domain gap 200ms.
	limiter := NewLimiter(1000, 5, arbor.NewLogger())
	url := "https://example.com/page"

	start := time.Now()
	if err := limiter.Acquire(context.Background(), url); err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := limiter.Acquire(cancelled, url)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	// The cancelled caller's slot stays booked, so the next acquire lands
	// in the third slot.
	if err := limiter.Acquire(context.Background(), url); err != nil {
		t.Fatalf("Third acquire failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("Expected cancelled slot to stay booked, total %v", elapsed)
	}
}

func TestAcquireUnparseableURLUsesGlobalClock(t *testing.T) {
	limiter := NewLimiter(1000, 1000, arbor.NewLogger())

	start := time.Now()
	if err := limiter.Acquire(context.Background(), "::not-a-url"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := limiter.Acquire(context.Background(), "https://example.com/"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Expected near-immediate acquires, took %v", elapsed)
	}
}
