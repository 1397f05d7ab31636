// Package gather fetches historical prices from market-data providers.
package gather

import (
	"context"
	"time"

	"corrboard/internal/domain"
)

// Request selects the price series to fetch.
type Request struct {
	Tickers  []string
	Period   domain.Period
	Interval domain.Interval
}

// Range resolves the request period to a window ending at now.
func (r Request) Range(now time.Time) (DateRange, error) {
	start, err := r.Period.Start(now)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: start, End: now}, nil
}

// Fetcher returns closing prices for the requested tickers. Providers may
// return partial results: a ticker without data is an absent column, not an
// error.
type Fetcher interface {
	// Name returns the provider identifier.
	Name() string
	// Fetch returns a price matrix whose columns follow the request order.
	Fetch(ctx context.Context, req Request) (*domain.PriceMatrix, error)
}

// Gatherer is the interface for long-running data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs the gathering. It returns when done or when ctx is
	// cancelled.
	Run(ctx context.Context) error
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}
