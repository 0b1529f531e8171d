// Package ratelimit implements a per-host token bucket guarding the
// KNOWLEDGE-phase fetcher against hammering any single API endpoint.
package ratelimit

import (
	"sync"
	"time"
)

// Status is the introspection shape named in the spec: tokens remaining,
// requests already made in the current window, and the window's start time.
type Status struct {
	Tokens       int       `json:"tokens"`
	RequestCount int       `json:"requestCount"`
	WindowStart  time.Time `json:"windowStart"`
}

type bucket struct {
	windowStart time.Time
	count       int
}

// Limiter tracks one token bucket per host. The zero value is not usable;
// use New.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// New returns a Limiter using the real wall clock.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// CanMakeRequest reports whether host may make another request under the
// given per-window budget, and records the attempt if so. A request beyond
// maxRequests within the current window is denied without being counted.
func (l *Limiter) CanMakeRequest(host string, maxRequests int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.buckets[host]
	if b == nil || now.Sub(b.windowStart) >= window {
		b = &bucket{windowStart: now, count: 0}
		l.buckets[host] = b
	}

	if b.count >= maxRequests {
		return false
	}
	b.count++
	return true
}

// Reset clears host's bucket, allowing it to make requests immediately as
// if no window had elapsed.
func (l *Limiter) Reset(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, host)
}

// Status reports host's current bucket state against the given budget
// without consuming a token.
func (l *Limiter) Status(host string, maxRequests int, window time.Duration) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.buckets[host]
	if b == nil || now.Sub(b.windowStart) >= window {
		return Status{Tokens: maxRequests, RequestCount: 0, WindowStart: now}
	}
	remaining := maxRequests - b.count
	if remaining < 0 {
		remaining = 0
	}
	return Status{Tokens: remaining, RequestCount: b.count, WindowStart: b.windowStart}
}
