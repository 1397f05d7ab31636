package alpaca

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/sync/errgroup"

	"corrboard/internal/domain"
	"corrboard/internal/gather"
	"corrboard/internal/store"
)

var _ gather.Gatherer = (*Backfill)(nil)

// Backfill downloads daily bars for a fixed symbol list into a BarStore so
// the local provider can serve them offline. It is idempotent per trading
// day and resumable after a crash.
type Backfill struct {
	store      store.BarStore
	stateDir   string
	symbols    []string
	start      time.Time
	batchSize  int
	maxWorkers int
	log        *slog.Logger

	endDay func() (time.Time, error)
	fetch  func(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error)
}

// NewBackfill creates a Backfill writing into s. Progress files live under
// <dataDir>/us/daily.
func NewBackfill(cfg Config, s store.BarStore, dataDir string, symbols []string, start time.Time, batchSize, maxWorkers int) *Backfill {
	client := newMarketDataClient(cfg)
	feed := cfg.Feed

	upper := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			upper = append(upper, sym)
		}
	}

	return &Backfill{
		store:      s,
		stateDir:   filepath.Join(dataDir, string(domain.MarketUS), "daily"),
		symbols:    upper,
		start:      start,
		batchSize:  max(batchSize, 1),
		maxWorkers: max(maxWorkers, 1),
		log:        slog.Default().With("gatherer", "alpaca-backfill"),
		endDay:     func() (time.Time, error) { return LatestFinishedTradingDay(cfg) },
		fetch: func(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			multiBars, err := client.GetMultiBars(symbols, marketdata.GetBarsRequest{
				TimeFrame:  marketdata.OneDay,
				Start:      start,
				End:        end,
				Adjustment: marketdata.All,
				Feed:       marketdata.Feed(feed),
			})
			if err != nil {
				return nil, fmt.Errorf("GetMultiBars: %w", err)
			}
			return convertBars(multiBars), nil
		},
	}
}

// Name returns the gatherer identifier.
func (b *Backfill) Name() string { return "alpaca-backfill" }

// Run fetches daily bars from the start date through the latest finished
// trading day. A failed batch is logged and skipped.
func (b *Backfill) Run(ctx context.Context) error {
	endDate, err := b.endDay()
	if err != nil {
		return fmt.Errorf("determining end date: %w", err)
	}
	endStr := endDate.Format("2006-01-02")

	prog, err := openProgress(b.stateDir)
	if err != nil {
		return err
	}
	defer prog.Close()

	last := prog.LastCompleted()
	if last == endStr {
		b.log.Info("already completed", "endDate", endStr)
		return nil
	}
	if last != "" {
		// A new end date invalidates the previous no-data set.
		if err := prog.Reset(); err != nil {
			return fmt.Errorf("resetting progress: %w", err)
		}
	}

	var remaining []string
	for _, sym := range b.symbols {
		if !prog.IsEmpty(sym) {
			remaining = append(remaining, sym)
		}
	}

	var batches [][]string
	for i := 0; i < len(remaining); i += b.batchSize {
		batches = append(batches, remaining[i:min(i+b.batchSize, len(remaining))])
	}
	b.log.Info("starting backfill",
		"endDate", endStr,
		"symbols", len(b.symbols),
		"remaining", len(remaining),
		"batches", len(batches),
	)

	var (
		totalBars atomic.Int64
		totalMiss atomic.Int64
		runStart  = time.Now()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.maxWorkers)
	for i, batch := range batches {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			bars, err := b.fetch(gctx, batch, b.start, endDate)
			if err != nil {
				b.log.Error("batch fetch failed", "batch", fmt.Sprintf("%d/%d", i+1, len(batches)), "err", err)
				return nil
			}

			hit := make(map[string]bool)
			for _, bar := range bars {
				hit[bar.Symbol] = true
			}
			var empty []string
			for _, sym := range batch {
				if !hit[sym] {
					empty = append(empty, sym)
				}
			}

			if len(bars) > 0 {
				if err := b.store.WriteBars(gctx, bars); err != nil {
					return fmt.Errorf("writing bars: %w", err)
				}
			}
			if len(empty) > 0 {
				if err := prog.MarkEmpty(empty); err != nil {
					b.log.Error("marking empty failed", "err", err)
				}
			}

			totalBars.Add(int64(len(bars)))
			totalMiss.Add(int64(len(empty)))
			b.log.Info("batch done",
				"batch", fmt.Sprintf("%d/%d", i+1, len(batches)),
				"bars", len(bars),
				"empty", len(empty),
				"elapsed", time.Since(runStart).Round(time.Second),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := prog.MarkCompleted(endStr); err != nil {
		return fmt.Errorf("marking completed: %w", err)
	}
	b.log.Info("complete",
		"bars", totalBars.Load(),
		"empty", totalMiss.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

// Reset clears the recorded completion date and the no-data set so the next
// Run fetches every symbol again.
func (b *Backfill) Reset() error {
	prog, err := openProgress(b.stateDir)
	if err != nil {
		return err
	}
	defer prog.Close()
	if err := os.Remove(filepath.Join(b.stateDir, completedFile)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return prog.Reset()
}
