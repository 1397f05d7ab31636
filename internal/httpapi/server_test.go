package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"corrboard/internal/dashboard"
	"corrboard/internal/domain"
	"corrboard/internal/gather"
	"corrboard/internal/store"
)

type staticFetcher struct {
	m   *domain.PriceMatrix
	err error
}

func (f staticFetcher) Name() string { return "static" }

func (f staticFetcher) Fetch(context.Context, gather.Request) (*domain.PriceMatrix, error) {
	return f.m, f.err
}

func testPrices(t *testing.T) *domain.PriceMatrix {
	t.Helper()
	times := make([]time.Time, 8)
	for i := range times {
		times[i] = time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC)
	}
	m, err := domain.NewPriceMatrix(times, []string{"SPY", "QQQ", "TLT"}, [][]float64{
		{500, 505, 502, 510, 515, 511, 518, 520},
		{430, 436, 431, 441, 447, 442, 450, 453},
		{95, 94, 95.5, 93, 92, 93.4, 91.5, 91},
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func newTestServer(t *testing.T, f gather.Fetcher) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()
	runs, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { runs.Close() })

	svc := dashboard.NewService(f, dashboard.WithRecorder(runs))
	srv := httptest.NewServer(NewServer(svc, runs, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, runs
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestCorrelationsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, staticFetcher{m: testPrices(t)})

	var rep struct {
		Tickers []string            `json:"tickers"`
		Missing []string            `json:"missing"`
		Pairs   []domain.RankedPair `json:"pairs"`
		Matrix  struct {
			Symbols []string     `json:"symbols"`
			Values  [][]*float64 `json:"values"`
		} `json:"matrix"`
	}
	status := getJSON(t, srv.URL+"/api/correlations?tickers=spy,qqq,tlt,xyz&top=2", &rep)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if len(rep.Pairs) != 2 {
		t.Errorf("len(pairs) = %d, want 2", len(rep.Pairs))
	}
	if len(rep.Missing) != 1 || rep.Missing[0] != "XYZ" {
		t.Errorf("missing = %v, want [XYZ]", rep.Missing)
	}
	if len(rep.Matrix.Symbols) != 3 || len(rep.Matrix.Values) != 3 {
		t.Errorf("matrix = %+v", rep.Matrix)
	}
}

func TestCorrelationsStatusMapping(t *testing.T) {
	cases := []struct {
		name    string
		fetcher gather.Fetcher
		query   string
		want    int
	}{
		{"single ticker", staticFetcher{m: testPrices(t)}, "tickers=SPY", http.StatusUnprocessableEntity},
		{"no data", staticFetcher{m: &domain.PriceMatrix{}}, "tickers=SPY,QQQ", http.StatusUnprocessableEntity},
		{"bad method", staticFetcher{m: testPrices(t)}, "tickers=SPY,QQQ&method=kendall", http.StatusBadRequest},
		{"bad top", staticFetcher{m: testPrices(t)}, "tickers=SPY,QQQ&top=lots", http.StatusBadRequest},
		{"provider down", staticFetcher{err: errors.New("dial tcp: refused")}, "tickers=SPY,QQQ", http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tc.fetcher)
			var body ErrorResponse
			status := getJSON(t, srv.URL+"/api/correlations?"+tc.query, &body)
			if status != tc.want {
				t.Errorf("status = %d, want %d", status, tc.want)
			}
			if body.Error == "" {
				t.Error("error message missing")
			}
		})
	}
}

func TestStatusForWrapped(t *testing.T) {
	err := fmt.Errorf("ranking: %w", domain.ErrInsufficientData)
	if got := StatusFor(err); got != http.StatusUnprocessableEntity {
		t.Errorf("StatusFor(wrapped) = %d, want 422", got)
	}
}

func TestChartEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, staticFetcher{m: testPrices(t)})

	resp, err := http.Get(srv.URL + "/api/correlations/chart.png?tickers=SPY,QQQ,TLT")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}

	// Lagged chart without a lag has nothing to draw.
	var e ErrorResponse
	if status := getJSON(t, srv.URL+"/api/correlations/chart.png?tickers=SPY,QQQ&lagged=true", &e); status != http.StatusUnprocessableEntity {
		t.Errorf("lagged chart status = %d, want 422", status)
	}
}

func TestRunsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, staticFetcher{m: testPrices(t)})

	for i := 0; i < 2; i++ {
		if status := getJSON(t, srv.URL+"/api/correlations?tickers=SPY,QQQ,TLT", nil); status != http.StatusOK {
			t.Fatalf("ranking status = %d", status)
		}
	}

	var list RunsResponse
	if status := getJSON(t, srv.URL+"/api/runs?limit=1", &list); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if list.Count != 1 || len(list.Runs) != 1 {
		t.Fatalf("runs = %+v, want one", list)
	}

	var run domain.Run
	url := fmt.Sprintf("%s/api/runs/%d", srv.URL, list.Runs[0].ID)
	if status := getJSON(t, url, &run); status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if len(run.Pairs) != 3 {
		t.Errorf("run pairs = %d, want 3", len(run.Pairs))
	}

	if status := getJSON(t, srv.URL+"/api/runs/999", nil); status != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", status)
	}
	if status := getJSON(t, srv.URL+"/api/runs/abc", nil); status != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", status)
	}
}

func TestHealthAndCORS(t *testing.T) {
	srv := httptest.NewServer(NewServer(dashboard.NewService(staticFetcher{}), nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}

	// History routes are not registered without a run store.
	resp, err = http.Get(srv.URL + "/api/runs")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("runs status without store = %d, want 404", resp.StatusCode)
	}
}
