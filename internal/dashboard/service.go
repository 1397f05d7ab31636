// Package dashboard runs correlation rankings end to end and renders the
// results for terminals, charts and APIs.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"corrboard/internal/correlation"
	"corrboard/internal/domain"
	"corrboard/internal/gather"
)

const (
	DefaultTopN = 20
	MaxTopN     = 100
)

// Params are the user-facing request parameters. Empty fields take the
// service defaults.
type Params struct {
	Tickers   string // comma-separated
	Timeframe string
	Method    string
	Lag       string
	TopN      int
}

// Report is the result of one ranking request.
type Report struct {
	Tickers      []string                  `json:"tickers"`
	Present      []string                  `json:"present"`
	Missing      []string                  `json:"missing,omitempty"`
	Dropped      []string                  `json:"dropped,omitempty"`
	Timeframe    domain.Timeframe          `json:"timeframe"`
	Method       domain.Method             `json:"method"`
	Lag          string                    `json:"lag"`
	LagSteps     int                       `json:"lag_steps"`
	TopN         int                       `json:"top_n"`
	Observations int                       `json:"observations"`
	Matrix       *domain.CorrelationMatrix `json:"matrix"`
	Pairs        []domain.RankedPair       `json:"pairs"`
	LaggedMatrix *domain.CorrelationMatrix `json:"lagged_matrix,omitempty"`
	LaggedPairs  []domain.RankedPair       `json:"lagged_pairs,omitempty"`
	Warnings     []string                  `json:"warnings,omitempty"`
	GeneratedAt  time.Time                 `json:"generated_at"`
}

// Recorder persists completed runs.
type Recorder interface {
	SaveRun(ctx context.Context, run *domain.Run) error
}

// Service ties a price Fetcher to the correlation ranker.
type Service struct {
	fetcher  gather.Fetcher
	recorder Recorder
	defaults Params
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder records every successful report.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithDefaults sets the parameters used for empty request fields.
func WithDefaults(p Params) Option {
	return func(s *Service) { s.defaults = p }
}

// WithLogger replaces the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a Service fetching prices through f.
func NewService(f gather.Fetcher, opts ...Option) *Service {
	s := &Service{
		fetcher: f,
		defaults: Params{
			Timeframe: domain.DefaultTimeframe,
			Method:    string(domain.MethodPearson),
			TopN:      DefaultTopN,
		},
		now: time.Now,
		log: slog.Default().With("component", "dashboard"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ParseTickers splits a comma-separated list, trims and upper-cases each
// entry, and drops blanks and duplicates while keeping first-seen order.
func ParseTickers(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

// ClampTopN applies the default for n <= 0 and caps n at MaxTopN.
func ClampTopN(n int) int {
	switch {
	case n <= 0:
		return DefaultTopN
	case n > MaxTopN:
		return MaxTopN
	}
	return n
}

// Run fetches prices for p.Tickers and ranks their correlations. Sentinel
// errors from the domain package report why no ranking was possible.
func (s *Service) Run(ctx context.Context, p Params) (*Report, error) {
	tickers := ParseTickers(p.Tickers)
	if len(tickers) < 2 {
		return nil, domain.ErrNeedTwoAssets
	}

	tf, err := domain.ParseTimeframe(firstNonEmpty(p.Timeframe, s.defaults.Timeframe))
	if err != nil {
		return nil, err
	}
	method, err := domain.ParseMethod(firstNonEmpty(p.Method, s.defaults.Method))
	if err != nil {
		return nil, err
	}
	lag, err := domain.ParseLag(firstNonEmpty(p.Lag, s.defaults.Lag))
	if err != nil {
		return nil, err
	}
	topN := p.TopN
	if topN == 0 {
		topN = s.defaults.TopN
	}
	topN = ClampTopN(topN)

	prices, err := s.fetcher.Fetch(ctx, gather.Request{
		Tickers:  tickers,
		Period:   tf.Period,
		Interval: tf.Interval,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}
	if prices.Empty() {
		return nil, domain.ErrNoData
	}

	opts := correlation.Options{Method: method, TopN: topN}
	res, err := correlation.Rank(prices, opts)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Tickers:      tickers,
		Dropped:      res.Dropped,
		Timeframe:    tf,
		Method:       method,
		Lag:          lag.String(),
		TopN:         topN,
		Observations: res.Returns.Rows(),
		Matrix:       res.Matrix,
		Pairs:        res.Pairs,
		GeneratedAt:  s.now().UTC(),
	}
	rep.Missing = missing(tickers, prices, res.Empty)
	rep.Present = without(tickers, rep.Missing)

	steps, err := lag.Steps(tf.Interval)
	if err != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("lag %s not applicable for %s interval data; lag ignored", lag, tf.Interval))
		steps = 0
	}
	if steps > 0 {
		rep.LagSteps = steps
		lm, lp, err := correlation.RankLagged(res.Returns, steps, opts)
		switch {
		case errors.Is(err, domain.ErrEmptyMatrix):
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("lagged correlation matrix is empty for lag %s", lag))
		case err != nil:
			return nil, err
		default:
			rep.LaggedMatrix = lm
			rep.LaggedPairs = lp
		}
	}

	s.log.Info("ranked",
		"tickers", len(tickers),
		"present", len(rep.Present),
		"timeframe", tf.Name,
		"method", method,
		"lag", rep.Lag,
		"pairs", len(rep.Pairs),
	)

	if s.recorder != nil {
		run := rep.Run()
		if err := s.recorder.SaveRun(ctx, run); err != nil {
			s.log.Warn("recording run failed", "err", err)
		}
	}
	return rep, nil
}

// Run converts the report to a history record.
func (r *Report) Run() *domain.Run {
	return &domain.Run{
		CreatedAt:   r.GeneratedAt,
		Tickers:     r.Tickers,
		Missing:     r.Missing,
		Timeframe:   r.Timeframe.Name,
		Method:      r.Method,
		Lag:         r.Lag,
		LagSteps:    r.LagSteps,
		TopN:        r.TopN,
		Pairs:       r.Pairs,
		LaggedPairs: r.LaggedPairs,
	}
}

// missing lists requested tickers that came back without any observation.
func missing(tickers []string, prices *domain.PriceMatrix, empty []string) []string {
	isEmpty := make(map[string]bool, len(empty))
	for _, sym := range empty {
		isEmpty[sym] = true
	}
	var out []string
	for _, sym := range tickers {
		if _, ok := prices.Index(sym); !ok || isEmpty[sym] {
			out = append(out, sym)
		}
	}
	return out
}

func without(list, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, s := range drop {
		skip[s] = true
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		if !skip[s] {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
