package domain

import "time"

// Run is one recorded ranking request and its result pairs.
type Run struct {
	ID          int64        `json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	Tickers     []string     `json:"tickers"`
	Missing     []string     `json:"missing,omitempty"`
	Timeframe   string       `json:"timeframe"`
	Method      Method       `json:"method"`
	Lag         string       `json:"lag"`
	LagSteps    int          `json:"lag_steps"`
	TopN        int          `json:"top_n"`
	Pairs       []RankedPair `json:"pairs"`
	LaggedPairs []RankedPair `json:"lagged_pairs,omitempty"`
}
