package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterSet holds one token bucket per conversation.
type limiterSet struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

func newLimiterSet(rps float64, burst int) *limiterSet {
	if burst < 1 {
		burst = 1
	}
	return &limiterSet{
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		entries: make(map[string]*limiterEntry),
	}
}

// allow takes a token for key. When none is available it reports how long
// the caller should wait.
func (l *limiterSet) allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastUse = now
	l.mu.Unlock()

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// evictIdle drops limiters not used since cutoff.
func (l *limiterSet) evictIdle(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, e := range l.entries {
		if e.lastUse.Before(cutoff) {
			delete(l.entries, key)
			n++
		}
	}
	return n
}

func (l *limiterSet) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
