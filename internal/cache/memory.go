package cache

import (
	"context"
	"sync"
	"time"

	"corrboard/internal/domain"
)

var _ Store = (*Memory)(nil)

type memoryEntry struct {
	m       *domain.PriceMatrix
	expires time.Time // zero means no expiry
}

// Memory is an in-process Store. Expired entries are dropped on read and
// swept on every Set, so keys that are never read again do not accumulate.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// Now returns the current time; tests replace it.
	Now func() time.Time
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		Now:     time.Now,
	}
}

// Get returns a copy of the cached matrix.
func (c *Memory) Get(_ context.Context, key string) (*domain.PriceMatrix, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !c.Now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.m.Clone(), true, nil
}

// Set stores a copy of m.
func (c *Memory) Set(_ context.Context, key string, m *domain.PriceMatrix, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.Now()
	c.sweep(now)

	e := memoryEntry{m: m.Clone()}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// sweep deletes every entry expired at now. c.mu must be held.
func (c *Memory) sweep(now time.Time) {
	for k, e := range c.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
