package geo

import (
	"context"
	"strings"
	"sync"
)

// Cache wraps a Geocoder with an in-memory result cache keyed by the
// joined address lines. Misses are cached too, so an unknown address is
// only looked up once per run.
type Cache struct {
	inner Geocoder

	mu      sync.Mutex
	results map[string]*Point
}

// NewCache creates a caching wrapper around a geocoder
func NewCache(inner Geocoder) *Cache {
	return &Cache{
		inner:   inner,
		results: make(map[string]*Point),
	}
}

// Geocode returns the cached result for the address, resolving it
// through the wrapped geocoder on first sight.
func (c *Cache) Geocode(ctx context.Context, lines []string) (*Point, error) {
	key := strings.ToLower(strings.Join(lines, "|"))

	c.mu.Lock()
	cached, ok := c.results[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	point, err := c.inner.Geocode(ctx, lines)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.results[key] = point
	c.mu.Unlock()

	return point, nil
}
