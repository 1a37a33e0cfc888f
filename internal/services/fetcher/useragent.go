package fetcher

import "sync/atomic"

// userAgents hands out User-Agent strings round-robin so consecutive
// requests do not present an identical fingerprint.
type userAgents struct {
	pool    []string
	counter atomic.Uint64
}

func newUserAgents(pool []string) *userAgents {
	return &userAgents{pool: pool}
}

func (u *userAgents) next() string {
	if len(u.pool) == 0 {
		return ""
	}
	next := u.counter.Add(1) - 1
	return u.pool[next%uint64(len(u.pool))]
}
