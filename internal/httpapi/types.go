// Package httpapi provides the HTTP JSON API over the correlation dashboard
// service and the run history.
package httpapi

import (
	"time"

	"corrboard/internal/domain"
)

// RunSummaryJSON is one entry of the run history listing.
type RunSummaryJSON struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Tickers   []string  `json:"tickers"`
	Missing   []string  `json:"missing,omitempty"`
	Timeframe string    `json:"timeframe"`
	Method    string    `json:"method"`
	Lag       string    `json:"lag"`
	TopN      int       `json:"top_n"`
}

// RunsResponse is the response of GET /api/runs.
type RunsResponse struct {
	Count int              `json:"count"`
	Runs  []RunSummaryJSON `json:"runs"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func toRunSummary(r domain.Run) RunSummaryJSON {
	return RunSummaryJSON{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Tickers:   r.Tickers,
		Missing:   r.Missing,
		Timeframe: r.Timeframe,
		Method:    string(r.Method),
		Lag:       r.Lag,
		TopN:      r.TopN,
	}
}
