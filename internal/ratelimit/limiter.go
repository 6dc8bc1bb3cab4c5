// Package ratelimit throttles MCP tool calls. Each tool has its own token
// bucket; tools without a configured rate are never limited.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is returned when a call arrives with an empty bucket.
var ErrLimited = errors.New("rate limit exceeded")

// Rate is a sustained call rate and the number of calls allowed at once.
type Rate struct {
	PerMinute float64
	Burst     int
}

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter holds one bucket per tool. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	rates   map[string]Rate
	buckets map[string]*bucket
	now     func() time.Time
}

// New creates a limiter for the given per-tool rates. Buckets start full.
func New(rates map[string]Rate) *Limiter {
	copied := make(map[string]Rate, len(rates))
	for k, v := range rates {
		copied[k] = v
	}
	return &Limiter{
		rates:   copied,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow takes one token from tool's bucket. The error wraps ErrLimited.
// A nil Limiter allows everything.
func (l *Limiter) Allow(tool string) error {
	if l == nil {
		return nil
	}
	rate, ok := l.rates[tool]
	if !ok {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[tool]
	if !ok {
		b = &bucket{tokens: float64(rate.Burst), last: now}
		l.buckets[tool] = b
	}

	if elapsed := now.Sub(b.last).Minutes(); elapsed > 0 {
		b.tokens = min(b.tokens+rate.PerMinute*elapsed, float64(rate.Burst))
		b.last = now
	}

	if b.tokens < 1 {
		return fmt.Errorf("%w for %s, try again shortly", ErrLimited, tool)
	}
	b.tokens--
	return nil
}
