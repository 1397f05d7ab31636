// Package alpaca fetches bars from the Alpaca market-data API.
package alpaca

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"corrboard/internal/domain"
	"corrboard/internal/gather"
)

var _ gather.Fetcher = (*Provider)(nil)

// Config holds Alpaca credentials and endpoints.
type Config struct {
	APIKey    string
	APISecret string
	DataURL   string // market-data API; empty uses the SDK default
	BaseURL   string // trading API, used for the calendar
	Feed      string // "iex" or "sip"
}

// Provider implements gather.Fetcher with multi-symbol bar requests.
type Provider struct {
	client *marketdata.Client
	feed   string
	now    func() time.Time
	log    *slog.Logger
}

// NewProvider creates a Provider from the given config.
func NewProvider(cfg Config) *Provider {
	return &Provider{
		client: newMarketDataClient(cfg),
		feed:   cfg.Feed,
		now:    time.Now,
		log:    slog.Default().With("provider", "alpaca"),
	}
}

func newMarketDataClient(cfg Config) *marketdata.Client {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return marketdata.NewClient(opts)
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "alpaca" }

// Fetch requests all tickers in one call with split and dividend adjusted
// prices and builds a close-price matrix in request order.
func (p *Provider) Fetch(ctx context.Context, req gather.Request) (*domain.PriceMatrix, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	tf, err := timeFrameFor(req.Interval)
	if err != nil {
		return nil, err
	}
	rng, err := req.Range(p.now().UTC())
	if err != nil {
		return nil, err
	}

	multiBars, err := p.client.GetMultiBars(req.Tickers, marketdata.GetBarsRequest{
		TimeFrame:  tf,
		Start:      rng.Start,
		End:        rng.End,
		Adjustment: marketdata.All,
		Feed:       marketdata.Feed(p.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	bars := convertBars(multiBars)
	p.log.Debug("fetched bars", "symbols", len(multiBars), "bars", len(bars), "interval", req.Interval)
	return domain.MatrixFromBars(bars, req.Tickers), nil
}

// timeFrameFor maps an interval such as "1h" to an Alpaca timeframe.
func timeFrameFor(iv domain.Interval) (marketdata.TimeFrame, error) {
	n, unit, err := iv.Split()
	if err != nil {
		return marketdata.TimeFrame{}, err
	}
	switch unit {
	case "m":
		return marketdata.NewTimeFrame(n, marketdata.Min), nil
	case "h":
		return marketdata.NewTimeFrame(n, marketdata.Hour), nil
	case "d":
		return marketdata.NewTimeFrame(n, marketdata.Day), nil
	case "wk":
		return marketdata.NewTimeFrame(n, marketdata.Week), nil
	case "mo":
		return marketdata.NewTimeFrame(n, marketdata.Month), nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("%w: interval %q", domain.ErrInvalidParams, iv)
}

// convertBars flattens a multi-symbol response into domain bars.
func convertBars(multiBars map[string][]marketdata.Bar) []domain.Bar {
	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp.UTC(),
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars
}
