// Package yahoo fetches price history from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // exchange timezones without a system zoneinfo

	"golang.org/x/sync/errgroup"

	"corrboard/internal/domain"
	"corrboard/internal/gather"
	"corrboard/internal/util"
)

var _ gather.Fetcher = (*Provider)(nil)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"

// Config configures the Yahoo provider.
type Config struct {
	BaseURL         string // e.g. https://query1.finance.yahoo.com
	MaxWorkers      int
	RateLimitPerMin int
}

// Provider implements gather.Fetcher with one chart request per symbol,
// run concurrently.
type Provider struct {
	baseURL    string
	http       *http.Client
	maxWorkers int
	limiter    *util.RateLimiter
	log        *slog.Logger
}

// NewProvider creates a Provider. A nil client uses a 20s-timeout client.
func NewProvider(cfg Config, client *http.Client) *Provider {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Provider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       client,
		maxWorkers: max(cfg.MaxWorkers, 1),
		limiter:    util.NewRateLimiter(cfg.RateLimitPerMin),
		log:        slog.Default().With("provider", "yahoo"),
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "yahoo" }

// Fetch downloads every ticker in parallel. A ticker whose request fails is
// logged and left out of the matrix.
func (p *Provider) Fetch(ctx context.Context, req gather.Request) (*domain.PriceMatrix, error) {
	var (
		mu   sync.Mutex
		bars []domain.Bar
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)
	for _, sym := range req.Tickers {
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return err
			}
			got, err := p.fetchSymbol(gctx, sym, req.Period, req.Interval)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.log.Warn("symbol fetch failed", "symbol", sym, "err", err)
				return nil
			}
			mu.Lock()
			bars = append(bars, got...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return domain.MatrixFromBars(bars, req.Tickers), nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
				GMTOffset            int    `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *Provider) fetchSymbol(ctx context.Context, symbol string, period domain.Period, interval domain.Interval) ([]domain.Bar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s&events=div,splits",
		p.baseURL, url.PathEscape(symbol), url.QueryEscape(string(period)), url.QueryEscape(string(interval)))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > 120 {
			preview = preview[:120]
		}
		return nil, fmt.Errorf("yahoo returned %d: %s", resp.StatusCode, preview)
	}

	var cr chartResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("decoding chart: %w", err)
	}
	if cr.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error %s: %s", cr.Chart.Error.Code, cr.Chart.Error.Description)
	}
	return parseChart(symbol, cr, interval), nil
}

// parseChart converts the first chart result to bars, preferring adjusted
// closes. Points without a price are skipped. For intervals of a day or
// longer each bar is stamped with midnight UTC of its date in the exchange
// timezone, so venues with different session opens share a row; a later
// point on the same date replaces an earlier one.
func parseChart(symbol string, cr chartResponse, interval domain.Interval) []domain.Bar {
	if len(cr.Chart.Result) == 0 {
		return nil
	}
	res := cr.Chart.Result[0]

	var loc *time.Location
	if dailyOrLonger(interval) {
		loc = exchangeLocation(res.Meta.ExchangeTimezoneName, res.Meta.GMTOffset)
	}

	var closes []*float64
	if len(res.Indicators.AdjClose) > 0 && len(res.Indicators.AdjClose[0].AdjClose) > 0 {
		closes = res.Indicators.AdjClose[0].AdjClose
	} else if len(res.Indicators.Quote) > 0 {
		closes = res.Indicators.Quote[0].Close
	}

	at := func(s []*float64, i int) float64 {
		if i < len(s) && s[i] != nil {
			return *s[i]
		}
		return 0
	}

	symbol = strings.ToUpper(symbol)
	bars := make([]domain.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		stamp := time.Unix(ts, 0).UTC()
		if loc != nil {
			local := stamp.In(loc)
			stamp = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		}
		b := domain.Bar{
			Symbol:    symbol,
			Timestamp: stamp,
			Close:     *closes[i],
		}
		if len(res.Indicators.Quote) > 0 {
			q := res.Indicators.Quote[0]
			b.Open = at(q.Open, i)
			b.High = at(q.High, i)
			b.Low = at(q.Low, i)
			b.Volume = int64(at(q.Volume, i))
		}
		if n := len(bars); n > 0 && bars[n-1].Timestamp.Equal(b.Timestamp) {
			bars[n-1] = b
			continue
		}
		bars = append(bars, b)
	}
	return bars
}

func dailyOrLonger(iv domain.Interval) bool {
	if iv.Months() > 0 {
		return true
	}
	d, ok := iv.Duration()
	return ok && d >= 24*time.Hour
}

// exchangeLocation resolves the exchange timezone by name, falling back to
// the fixed UTC offset in seconds.
func exchangeLocation(name string, gmtOffset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", gmtOffset)
}
