package ratelimit

import (
	"sync"
	"time"
)

// Gate is an in-process minimum-interval gate keyed by string. It is the
// local fallback used when the shared throttle store is unreachable: same
// decision rule, same key shape, bounded memory.
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	max      int
	last     map[string]time.Time
}

func New(interval time.Duration, max int) *Gate {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if max <= 0 {
		max = 1000
	}
	return &Gate{interval: interval, max: max, last: make(map[string]time.Time, max)}
}

// ShouldAccept returns true and records now when no accepted timestamp is
// known for key, or the recorded one is at least one interval old.
func (g *Gate) ShouldAccept(key string, now time.Time) bool {
	if key == "" {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.last[key]; ok && now.Sub(prev) < g.interval {
		return false
	}
	g.last[key] = now
	if len(g.last) > g.max {
		g.prune(now)
	}
	return true
}

// prune drops entries older than twice the interval, mirroring the TTL the
// shared store applies. Called inline by the writer that tips the map over
// the threshold; caller holds the lock.
func (g *Gate) prune(now time.Time) {
	cutoff := now.Add(-2 * g.interval)
	for k, t := range g.last {
		if t.Before(cutoff) {
			delete(g.last, k)
		}
	}
}

// Len reports the current number of tracked keys.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}
