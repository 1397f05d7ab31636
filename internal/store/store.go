// Package store defines storage interfaces for daily bars and the ranking
// run history, with Parquet and SQLite implementations.
package store

import (
	"context"
	"time"

	"corrboard/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// RunStore persists ranking runs.
type RunStore interface {
	// SaveRun inserts a run with its pairs and sets run.ID.
	SaveRun(ctx context.Context, run *domain.Run) error

	// GetRun returns the run with the given ID, or domain.ErrNotFound.
	GetRun(ctx context.Context, id int64) (*domain.Run, error)

	// ListRuns returns the most recent runs first, up to limit, without pairs.
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
}
