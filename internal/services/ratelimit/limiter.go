package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

// Limiter enforces a global and a per-domain minimum interval between
// requests. Acquire books the next free slot while holding the lock and
// sleeps outside it, so concurrent callers space themselves out instead of
// stampeding when the lock is released.
type Limiter struct {
	mu         sync.Mutex
	globalGap  time.Duration
	domainGap  time.Duration
	lastGlobal time.Time
	lastDomain map[string]time.Time
	logger     arbor.ILogger
}

// NewLimiter builds a limiter from requests-per-second rates. Rates at or
// below zero fall back to the config defaults.
func NewLimiter(globalRate, domainRate float64, logger arbor.ILogger) *Limiter {
	if globalRate <= 0 {
		globalRate = common.DefaultGlobalRate
	}
	if domainRate <= 0 {
		domainRate = common.DefaultDomainRate
	}
	return &Limiter{
		globalGap:  time.Duration(float64(time.Second) / globalRate),
		domainGap:  time.Duration(float64(time.Second) / domainRate),
		lastDomain: make(map[string]time.Time),
		logger:     logger,
	}
}

var _ interfaces.RateLimiter = (*Limiter)(nil)

// Acquire blocks until a request to rawURL's domain is admissible. The slot
// is reserved before sleeping; a cancelled context returns ctx.Err() but the
// reservation stands, which errs on the polite side.
func (l *Limiter) Acquire(ctx context.Context, rawURL string) error {
	domain := common.Domain(rawURL)

	l.mu.Lock()
	now := time.Now()
	wait := l.globalGap - now.Sub(l.lastGlobal)
	if d := l.domainGap - now.Sub(l.lastDomain[domain]); d > wait {
		wait = d
	}
	if wait < 0 {
		wait = 0
	}
	slot := now.Add(wait)
	l.lastGlobal = slot
	l.lastDomain[domain] = slot
	l.mu.Unlock()

	if wait == 0 {
		return nil
	}

	l.logger.Debug().
		Str("domain", domain).
		Dur("wait", wait).
		Msg("Rate limit wait")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
