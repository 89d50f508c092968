package metric

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// CachedScope memoizes handles by kind and name so that ad-hoc lookups
// by string do not parse and qualify the name on every call.
type CachedScope struct {
	scope Scope
	cache *lru.Cache
}

type cacheKey struct {
	kind Kind
	name string
}

// Cached wraps scope with an LRU of at most size handles.
func Cached(scope Scope, size int) (*CachedScope, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create handle cache: %w", err)
	}
	return &CachedScope{scope: scope, cache: c}, nil
}

// Scope returns the wrapped scope.
func (c *CachedScope) Scope() Scope {
	return c.scope
}

// Counter returns a cached counter handle.
func (c *CachedScope) Counter(name string) Counter {
	k := cacheKey{KindCounter, name}
	if v, ok := c.cache.Get(k); ok {
		return v.(Counter)
	}
	h := c.scope.Counter(name)
	c.cache.Add(k, h)
	return h
}

// Marker returns a cached marker handle.
func (c *CachedScope) Marker(name string) Marker {
	k := cacheKey{KindMarker, name}
	if v, ok := c.cache.Get(k); ok {
		return v.(Marker)
	}
	h := c.scope.Marker(name)
	c.cache.Add(k, h)
	return h
}

// Timer returns a cached timer handle.
func (c *CachedScope) Timer(name string) Timer {
	k := cacheKey{KindTimer, name}
	if v, ok := c.cache.Get(k); ok {
		return v.(Timer)
	}
	h := c.scope.Timer(name)
	c.cache.Add(k, h)
	return h
}

// Gauge returns a cached gauge handle.
func (c *CachedScope) Gauge(name string) Gauge {
	k := cacheKey{KindGauge, name}
	if v, ok := c.cache.Get(k); ok {
		return v.(Gauge)
	}
	h := c.scope.Gauge(name)
	c.cache.Add(k, h)
	return h
}

// Len returns the number of cached handles.
func (c *CachedScope) Len() int {
	return c.cache.Len()
}
