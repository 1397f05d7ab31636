package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"corrboard/internal/domain"
	"corrboard/internal/gather"
	"corrboard/internal/gather/yahoo"
)

type fakeFetcher struct {
	m     *domain.PriceMatrix
	err   error
	calls int
	last  gather.Request
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(_ context.Context, req gather.Request) (*domain.PriceMatrix, error) {
	f.calls++
	f.last = req
	return f.m, f.err
}

type memRecorder struct{ runs []*domain.Run }

func (r *memRecorder) SaveRun(_ context.Context, run *domain.Run) error {
	run.ID = int64(len(r.runs) + 1)
	r.runs = append(r.runs, run)
	return nil
}

// prices builds a daily matrix where B moves with A, C moves against A and
// D is unrelated.
func prices(t *testing.T, symbols ...string) *domain.PriceMatrix {
	t.Helper()
	base := map[string][]float64{
		"A": {100, 101, 103, 102, 105, 107, 106, 109, 111, 110},
		"B": {50, 50.6, 51.7, 51.1, 52.8, 53.7, 53.2, 54.9, 55.8, 55.2},
		"C": {80, 79.2, 77.6, 78.4, 76.1, 74.6, 75.4, 73.2, 71.8, 72.5},
		"D": {20, 20.5, 20.1, 20.9, 20.2, 20.8, 21.5, 20.7, 21.0, 21.9},
		"E": {math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()},
	}
	times := make([]time.Time, 10)
	for i := range times {
		times[i] = time.Date(2024, 1, 2+i, 0, 0, 0, 0, time.UTC)
	}
	cols := make([][]float64, len(symbols))
	for i, s := range symbols {
		cols[i] = base[s]
	}
	m, err := domain.NewPriceMatrix(times, symbols, cols)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestParseTickers(t *testing.T) {
	got := ParseTickers(" spy, QQQ,,spy , gld ,")
	want := []string{"SPY", "QQQ", "GLD"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ParseTickers = %v, want %v", got, want)
	}
	if len(ParseTickers("  ,  ")) != 0 {
		t.Error("blank input should yield no tickers")
	}
}

func TestClampTopN(t *testing.T) {
	cases := map[int]int{-3: DefaultTopN, 0: DefaultTopN, 1: 1, 50: 50, 100: 100, 500: MaxTopN}
	for in, want := range cases {
		if got := ClampTopN(in); got != want {
			t.Errorf("ClampTopN(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRunNeedsTwoAssets(t *testing.T) {
	f := &fakeFetcher{}
	svc := NewService(f)
	for _, tickers := range []string{"", "SPY", "spy, SPY ,"} {
		_, err := svc.Run(context.Background(), Params{Tickers: tickers})
		if !errors.Is(err, domain.ErrNeedTwoAssets) {
			t.Errorf("Run(%q) error = %v, want ErrNeedTwoAssets", tickers, err)
		}
	}
	if f.calls != 0 {
		t.Errorf("fetcher called %d times, want 0", f.calls)
	}
}

func TestRunNoData(t *testing.T) {
	svc := NewService(&fakeFetcher{m: &domain.PriceMatrix{}})
	_, err := svc.Run(context.Background(), Params{Tickers: "A,B"})
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("error = %v, want ErrNoData", err)
	}
}

func TestRunInsufficientData(t *testing.T) {
	// One of three tickers has data.
	svc := NewService(&fakeFetcher{m: prices(t, "A", "E")})
	_, err := svc.Run(context.Background(), Params{Tickers: "A,E,Z"})
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("error = %v, want ErrInsufficientData", err)
	}
}

func TestRunInvalidParams(t *testing.T) {
	svc := NewService(&fakeFetcher{m: prices(t, "A", "B")})
	for _, p := range []Params{
		{Tickers: "A,B", Method: "kendall"},
		{Tickers: "A,B", Timeframe: "5y"},
		{Tickers: "A,B", Lag: "3 fortnights"},
	} {
		if _, err := svc.Run(context.Background(), p); !errors.Is(err, domain.ErrInvalidParams) {
			t.Errorf("Run(%+v) error = %v, want ErrInvalidParams", p, err)
		}
	}
}

func TestRunRanksPairs(t *testing.T) {
	f := &fakeFetcher{m: prices(t, "A", "B", "C", "D")}
	rec := &memRecorder{}
	svc := NewService(f, WithRecorder(rec))

	rep, err := svc.Run(context.Background(), Params{Tickers: "a, b, c, d, zzz", TopN: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if f.last.Period != "1mo" || f.last.Interval != "1d" {
		t.Errorf("request = %+v, want default 1mo/1d", f.last)
	}
	if strings.Join(rep.Missing, ",") != "ZZZ" {
		t.Errorf("Missing = %v, want [ZZZ]", rep.Missing)
	}
	if strings.Join(rep.Present, ",") != "A,B,C,D" {
		t.Errorf("Present = %v", rep.Present)
	}
	if rep.Observations != 9 {
		t.Errorf("Observations = %d, want 9", rep.Observations)
	}
	if len(rep.Pairs) != 3 {
		t.Fatalf("len(Pairs) = %d, want 3", len(rep.Pairs))
	}
	for i := 1; i < len(rep.Pairs); i++ {
		if math.Abs(rep.Pairs[i].Value) > math.Abs(rep.Pairs[i-1].Value) {
			t.Errorf("pairs not sorted by |value|: %+v", rep.Pairs)
		}
	}
	for _, p := range rep.Pairs {
		if p.AssetA == p.AssetB {
			t.Errorf("self pair %+v", p)
		}
	}
	if v, ok := rep.Matrix.At("A", "C"); !ok || v > -0.9 {
		t.Errorf("corr(A, C) = %v, %v; want strongly negative", v, ok)
	}
	if rep.LaggedMatrix != nil || len(rep.Warnings) != 0 {
		t.Errorf("unexpected lag output: %+v %v", rep.LaggedMatrix, rep.Warnings)
	}

	if len(rec.runs) != 1 || rec.runs[0].TopN != 3 || len(rec.runs[0].Pairs) != 3 {
		t.Errorf("recorded runs = %+v", rec.runs)
	}
}

func TestRunUnsupportedLagWarns(t *testing.T) {
	svc := NewService(&fakeFetcher{m: prices(t, "A", "B", "C")})

	rep, err := svc.Run(context.Background(), Params{Tickers: "A,B,C", Lag: "1h"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Warnings) != 1 || !strings.Contains(rep.Warnings[0], "not applicable") {
		t.Errorf("Warnings = %v", rep.Warnings)
	}
	if rep.LagSteps != 0 || rep.LaggedMatrix != nil {
		t.Errorf("lag should fall back to 0, got steps %d", rep.LagSteps)
	}
	if len(rep.Pairs) == 0 {
		t.Error("contemporaneous pairs missing")
	}
}

func TestRunLagged(t *testing.T) {
	svc := NewService(&fakeFetcher{m: prices(t, "A", "B", "C")})

	rep, err := svc.Run(context.Background(), Params{Tickers: "A,B,C", Lag: "1d"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.LagSteps != 1 || rep.Lag != "1d" {
		t.Errorf("lag = %s/%d, want 1d/1", rep.Lag, rep.LagSteps)
	}
	if rep.LaggedMatrix == nil || len(rep.LaggedPairs) == 0 {
		t.Fatalf("lagged output missing: %+v", rep)
	}
	if rep.LaggedMatrix.Lag != 1 {
		t.Errorf("LaggedMatrix.Lag = %d, want 1", rep.LaggedMatrix.Lag)
	}
}

func TestRunLagTooLongWarns(t *testing.T) {
	svc := NewService(&fakeFetcher{m: prices(t, "A", "B", "C")})

	rep, err := svc.Run(context.Background(), Params{Tickers: "A,B,C", Lag: "40bars"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.LaggedMatrix != nil {
		t.Error("lagged matrix should be empty")
	}
	if len(rep.Warnings) != 1 || !strings.Contains(rep.Warnings[0], "empty") {
		t.Errorf("Warnings = %v", rep.Warnings)
	}
}

func TestRunAlignsVenuesByDate(t *testing.T) {
	// Equities open at 14:30 UTC, crypto bars start at midnight UTC.
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	closes := map[string][]float64{
		"AAPL":    {170, 172, 171, 174, 176, 175, 178, 179},
		"BTC-USD": {62000, 63500, 63100, 64800, 66000, 65200, 67100, 68000},
	}
	meta := map[string]map[string]any{
		"AAPL":    {"exchangeTimezoneName": "America/New_York", "gmtoffset": -14400},
		"BTC-USD": {"exchangeTimezoneName": "UTC", "gmtoffset": 0},
	}
	sessionOpen := map[string]time.Duration{"AAPL": 14*time.Hour + 30*time.Minute, "BTC-USD": 0}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v8/finance/chart/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		sym := r.PathValue("symbol")
		stamps := make([]int64, len(closes[sym]))
		for i := range stamps {
			stamps[i] = start.AddDate(0, 0, i).Add(sessionOpen[sym]).Unix()
		}
		json.NewEncoder(w).Encode(map[string]any{"chart": map[string]any{
			"result": []any{map[string]any{
				"meta":       meta[sym],
				"timestamp":  stamps,
				"indicators": map[string]any{"quote": []any{map[string]any{"close": closes[sym]}}},
			}},
		}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := yahoo.NewProvider(yahoo.Config{BaseURL: srv.URL, MaxWorkers: 2}, srv.Client())
	rep, err := NewService(p).Run(context.Background(), Params{Tickers: "AAPL,BTC-USD", Timeframe: "1d"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Observations != 7 {
		t.Errorf("Observations = %d, want 7", rep.Observations)
	}
	if len(rep.Pairs) != 1 || rep.Pairs[0].AssetA != "AAPL" || rep.Pairs[0].AssetB != "BTC-USD" {
		t.Errorf("Pairs = %+v, want [AAPL - BTC-USD]", rep.Pairs)
	}
}

func TestRunFetchError(t *testing.T) {
	boom := errors.New("upstream down")
	svc := NewService(&fakeFetcher{err: boom})
	if _, err := svc.Run(context.Background(), Params{Tickers: "A,B"}); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}

func TestFormatting(t *testing.T) {
	cases := map[float64]string{0.934: "0.93", -1: "-1.00", -0.001: "0.00", math.NaN(): "n/a"}
	for in, want := range cases {
		if got := FormatCorr(in); got != want {
			t.Errorf("FormatCorr(%v) = %q, want %q", in, got, want)
		}
	}
	p := domain.RankedPair{AssetA: "SPY", AssetB: "QQQ", Value: 0.934}
	if got := FormatPair(p); got != "SPY - QQQ: 0.93" {
		t.Errorf("FormatPair = %q", got)
	}
	if got := FormatInt(1234567); got != "1,234,567" {
		t.Errorf("FormatInt = %q", got)
	}
	if got := FormatInt(-1234); got != "-1,234" {
		t.Errorf("FormatInt(-1234) = %q", got)
	}
}

func TestRenderReport(t *testing.T) {
	svc := NewService(&fakeFetcher{m: prices(t, "A", "B", "C")})
	rep, err := svc.Run(context.Background(), Params{Tickers: "A,B,C,ZZZ", Lag: "1d"})
	if err != nil {
		t.Fatal(err)
	}

	out := RenderReport(rep)
	for _, want := range []string{"Top 20 Correlated Pairs", "with Lag (1d)", "Correlation Heatmap", "ZZZ", "1.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q", want)
		}
	}

	heat := RenderHeatmap(rep.Matrix)
	if lines := strings.Count(heat, "\n"); lines != 4 {
		t.Errorf("heatmap has %d lines, want header + 3 rows", lines)
	}
}

func TestRenderPairsChart(t *testing.T) {
	pairs := []domain.RankedPair{
		{AssetA: "A", AssetB: "B", Value: 0.98},
		{AssetA: "A", AssetB: "C", Value: -0.95},
	}
	png, err := RenderPairsChart("Top pairs", pairs)
	if err != nil {
		t.Fatalf("RenderPairsChart: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("output is not a PNG (% x)", png[:min(8, len(png))])
	}

	if _, err := RenderPairsChart("empty", nil); err == nil {
		t.Error("expected error for no pairs")
	}
}
