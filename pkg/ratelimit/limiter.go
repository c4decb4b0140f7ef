package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// MultiLimiter manages multiple rate limiters for different services
type MultiLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter adds a new rate limiter for a service
// requestsPerSecond: the rate limit (e.g., 10 means 10 requests per second)
// burst: maximum burst size
func (m *MultiLimiter) AddLimiter(name string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Wait blocks until the limiter allows an event
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("limiter %s not found", name)
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (m *MultiLimiter) Allow(name string) bool {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return false
	}

	return limiter.Allow()
}

// Default rate limiter names
const (
	LimiterExtract  = "extract"
	LimiterChat     = "chat"
	LimiterGeocode  = "geocode"
	LimiterFeeds    = "feeds"
	LimiterStorage  = "storage"
)

// NewDefaultLimiter creates a limiter with default rate limits
func NewDefaultLimiter() *MultiLimiter {
	m := NewMultiLimiter()

	// Extraction: one call per second, no burst. The pipeline relies on
	// this as the per-message pacing delay before each extraction call.
	m.AddLimiter(LimiterExtract, 1, 1)

	// Chat gateway: 30 requests per minute, burst 5
	m.AddLimiter(LimiterChat, 30.0/60, 5)

	// Geocoder: public instances allow ~1 per second
	m.AddLimiter(LimiterGeocode, 1, 1)

	// Feeds: be polite - 1 per second, burst 10
	m.AddLimiter(LimiterFeeds, 1, 10)

	// Object storage: 10 per second, burst 10
	m.AddLimiter(LimiterStorage, 10, 10)

	return m
}
