package videos

import (
	"context"
	"sync"
	"time"
)

// Cache stores values with a per-entry time to live. Expired entries must
// behave as misses.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, value T, ttl time.Duration)
}

type cacheEntry[T any] struct {
	value    T
	storedAt time.Time
	ttl      time.Duration
}

func (e cacheEntry[T]) validAt(now time.Time) bool {
	return now.Before(e.storedAt.Add(e.ttl))
}

// MemoryCache is an in-process Cache guarded by a RWMutex.
type MemoryCache[T any] struct {
	mu    sync.RWMutex
	items map[string]cacheEntry[T]
	now   func() time.Time
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		items: make(map[string]cacheEntry[T]),
		now:   time.Now,
	}
}

// WithNowFunc allows tests to override the time source.
func (c *MemoryCache[T]) WithNowFunc(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the value stored under key if it has not expired. The expiry
// check does not depend on the sweeper having run.
func (c *MemoryCache[T]) Get(_ context.Context, key string) (T, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	now := c.now()
	c.mu.RUnlock()

	if !ok || !entry.validAt(now) {
		var zero T
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key. Non-positive TTLs are ignored.
func (c *MemoryCache[T]) Set(_ context.Context, key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.items[key] = cacheEntry[T]{value: value, storedAt: c.now(), ttl: ttl}
	c.mu.Unlock()
}

// Delete evicts key.
func (c *MemoryCache[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len reports the number of physically stored entries, expired or not.
func (c *MemoryCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Sweep removes expired entries and returns how many were evicted.
func (c *MemoryCache[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for key, entry := range c.items {
		if !entry.validAt(now) {
			delete(c.items, key)
			evicted++
		}
	}
	return evicted
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (c *MemoryCache[T]) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Sweep()
		}
	}
}
