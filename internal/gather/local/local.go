// Package local serves daily prices from the on-disk bar store.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"corrboard/internal/domain"
	"corrboard/internal/gather"
	"corrboard/internal/store"
)

var _ gather.Fetcher = (*Provider)(nil)

// Provider implements gather.Fetcher over a BarStore. Only the 1d interval
// is available.
type Provider struct {
	store  store.BarStore
	market string
	now    func() time.Time
	log    *slog.Logger
}

// NewProvider creates a Provider reading US daily bars from s.
func NewProvider(s store.BarStore) *Provider {
	return &Provider{
		store:  s,
		market: string(domain.MarketUS),
		now:    time.Now,
		log:    slog.Default().With("provider", "local"),
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "local" }

// Fetch reads stored bars for each ticker within the request period.
func (p *Provider) Fetch(ctx context.Context, req gather.Request) (*domain.PriceMatrix, error) {
	if req.Interval != "1d" {
		return nil, fmt.Errorf("%w: local provider serves 1d bars, got %q", domain.ErrInvalidParams, req.Interval)
	}
	rng, err := req.Range(p.now().UTC())
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for _, sym := range req.Tickers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		got, err := p.store.ReadBars(ctx, sym, p.market, rng.Start, rng.End)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", sym, err)
		}
		if len(got) == 0 {
			p.log.Debug("no stored bars", "symbol", sym)
		}
		bars = append(bars, got...)
	}
	return domain.MatrixFromBars(bars, req.Tickers), nil
}
