// Package cache memoizes fetched price matrices by request parameters.
package cache

import (
	"context"
	"strings"
	"time"

	"corrboard/internal/domain"
)

// Store is a TTL cache of price matrices.
type Store interface {
	// Get returns the cached matrix for key. ok is false on a miss or an
	// expired entry.
	Get(ctx context.Context, key string) (m *domain.PriceMatrix, ok bool, err error)

	// Set stores m under key for ttl. A non-positive ttl never expires.
	Set(ctx context.Context, key string, m *domain.PriceMatrix, ttl time.Duration) error
}

const keyPrefix = "corrboard:prices:"

// Key builds the memo key for a fetch. Ticker order is kept because it
// decides the column order of the cached matrix.
func Key(tickers []string, period domain.Period, interval domain.Interval) string {
	return keyPrefix + strings.Join(tickers, ",") + "|" + string(period) + "|" + string(interval)
}
