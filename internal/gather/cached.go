package gather

import (
	"context"
	"log/slog"
	"time"

	"corrboard/internal/cache"
	"corrboard/internal/domain"
)

var _ Fetcher = (*Cached)(nil)

// Cached memoizes a Fetcher by request parameters. Cache failures are logged
// and bypassed.
type Cached struct {
	next  Fetcher
	store cache.Store
	ttl   time.Duration
	log   *slog.Logger
}

// NewCached wraps next with the given cache store and entry TTL.
func NewCached(next Fetcher, store cache.Store, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		store: store,
		ttl:   ttl,
		log:   slog.Default().With("component", "fetch-cache", "provider", next.Name()),
	}
}

// Name returns the wrapped provider's name.
func (c *Cached) Name() string { return c.next.Name() }

// Fetch returns the cached matrix for req when present, otherwise fetches
// and stores it. Empty results are not cached.
func (c *Cached) Fetch(ctx context.Context, req Request) (*domain.PriceMatrix, error) {
	key := cache.Key(req.Tickers, req.Period, req.Interval)

	m, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache get failed", "key", key, "err", err)
	} else if ok {
		c.log.Debug("cache hit", "key", key)
		return m, nil
	}

	m, err = c.next.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if m != nil && !m.Empty() {
		if err := c.store.Set(ctx, key, m, c.ttl); err != nil {
			c.log.Warn("cache set failed", "key", key, "err", err)
		}
	}
	return m, nil
}
