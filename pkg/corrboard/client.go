// Package corrboard is a Go client for the corr-server HTTP API.
package corrboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client provides a Go SDK for interacting with the corr-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new corr-server API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Query holds ranking parameters. Empty fields take the server defaults.
type Query struct {
	Tickers   []string
	Timeframe string
	Method    string
	Lag       string
	Top       int
}

func (q Query) values() url.Values {
	v := url.Values{}
	v.Set("tickers", strings.Join(q.Tickers, ","))
	if q.Timeframe != "" {
		v.Set("timeframe", q.Timeframe)
	}
	if q.Method != "" {
		v.Set("method", q.Method)
	}
	if q.Lag != "" {
		v.Set("lag", q.Lag)
	}
	if q.Top > 0 {
		v.Set("top", strconv.Itoa(q.Top))
	}
	return v
}

// Pair is one ranked asset pair.
type Pair struct {
	AssetA string  `json:"asset_a"`
	AssetB string  `json:"asset_b"`
	Value  float64 `json:"value"`
}

// Matrix is a square correlation matrix; nil entries are undefined.
type Matrix struct {
	Symbols []string     `json:"symbols"`
	Values  [][]*float64 `json:"values"`
	Lag     int          `json:"lag"`
}

// Timeframe describes the fetch window and bar interval of a report.
type Timeframe struct {
	Name     string `json:"name"`
	Period   string `json:"period"`
	Interval string `json:"interval"`
}

// Report is the response of GET /api/correlations.
type Report struct {
	Tickers      []string  `json:"tickers"`
	Present      []string  `json:"present"`
	Missing      []string  `json:"missing,omitempty"`
	Dropped      []string  `json:"dropped,omitempty"`
	Timeframe    Timeframe `json:"timeframe"`
	Method       string    `json:"method"`
	Lag          string    `json:"lag"`
	LagSteps     int       `json:"lag_steps"`
	TopN         int       `json:"top_n"`
	Observations int       `json:"observations"`
	Matrix       *Matrix   `json:"matrix"`
	Pairs        []Pair    `json:"pairs"`
	LaggedMatrix *Matrix   `json:"lagged_matrix,omitempty"`
	LaggedPairs  []Pair    `json:"lagged_pairs,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// RunSummary is one entry of the run history.
type RunSummary struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Tickers   []string  `json:"tickers"`
	Missing   []string  `json:"missing,omitempty"`
	Timeframe string    `json:"timeframe"`
	Method    string    `json:"method"`
	Lag       string    `json:"lag"`
	TopN      int       `json:"top_n"`
}

// Run is a recorded ranking with its pairs.
type Run struct {
	RunSummary
	LagSteps    int    `json:"lag_steps"`
	Pairs       []Pair `json:"pairs"`
	LaggedPairs []Pair `json:"lagged_pairs,omitempty"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("corr-server: %d: %s", e.StatusCode, e.Message)
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.getJSON(ctx, "/healthz", nil, &out)
}

// Correlations ranks the query's tickers.
func (c *Client) Correlations(ctx context.Context, q Query) (*Report, error) {
	var rep Report
	if err := c.getJSON(ctx, "/api/correlations", q.values(), &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Chart returns the PNG bar chart of the top pairs, or of the lagged pairs
// when lagged is set.
func (c *Client) Chart(ctx context.Context, q Query, lagged bool) ([]byte, error) {
	v := q.values()
	if lagged {
		v.Set("lagged", "true")
	}
	resp, err := c.get(ctx, "/api/correlations/chart.png", v)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Runs lists the most recent recorded runs. A non-positive limit uses the
// server default.
func (c *Client) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Count int          `json:"count"`
		Runs  []RunSummary `json:"runs"`
	}
	if err := c.getJSON(ctx, "/api/runs", v, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// Run fetches one recorded run by ID.
func (c *Client) Run(ctx context.Context, id int64) (*Run, error) {
	var run Run
	if err := c.getJSON(ctx, "/api/runs/"+strconv.FormatInt(id, 10), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v url.Values, out any) error {
	resp, err := c.get(ctx, path, v)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, v url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(v) > 0 {
		u += "?" + v.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	return resp, nil
}
