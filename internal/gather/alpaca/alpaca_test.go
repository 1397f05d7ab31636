package alpaca

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"corrboard/internal/domain"
	"corrboard/internal/store"
)

func TestTimeFrameFor(t *testing.T) {
	cases := []struct {
		iv   domain.Interval
		want marketdata.TimeFrame
	}{
		{"1h", marketdata.NewTimeFrame(1, marketdata.Hour)},
		{"1d", marketdata.NewTimeFrame(1, marketdata.Day)},
		{"1mo", marketdata.NewTimeFrame(1, marketdata.Month)},
		{"15m", marketdata.NewTimeFrame(15, marketdata.Min)},
	}
	for _, tc := range cases {
		got, err := timeFrameFor(tc.iv)
		if err != nil {
			t.Errorf("timeFrameFor(%q) error: %v", tc.iv, err)
			continue
		}
		if got != tc.want {
			t.Errorf("timeFrameFor(%q) = %v, want %v", tc.iv, got, tc.want)
		}
	}

	if _, err := timeFrameFor("3x"); !errors.Is(err, domain.ErrInvalidParams) {
		t.Errorf("timeFrameFor(3x) error = %v, want ErrInvalidParams", err)
	}
}

func TestConvertBars(t *testing.T) {
	ts := time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC)
	bars := convertBars(map[string][]marketdata.Bar{
		"spy": {{Timestamp: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, VWAP: 1.2}},
	})
	if len(bars) != 1 {
		t.Fatalf("convertBars returned %d bars, want 1", len(bars))
	}
	if bars[0].Symbol != "SPY" || bars[0].Close != 1.5 || !bars[0].Timestamp.Equal(ts) {
		t.Errorf("bar = %+v", bars[0])
	}
}

func TestProviderName(t *testing.T) {
	p := NewProvider(Config{APIKey: "key", APISecret: "secret", Feed: "iex"})
	if got := p.Name(); got != "alpaca" {
		t.Errorf("Name() = %q, want %q", got, "alpaca")
	}
}

func TestLatestFinished(t *testing.T) {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz data unavailable: %v", err)
	}
	days := []string{"2025-02-06", "2025-02-07", "2025-02-10"}

	before := time.Date(2025, 2, 10, 15, 0, 0, 0, et)
	got, err := latestFinished(days, before)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format("2006-01-02") != "2025-02-07" {
		t.Errorf("before cutoff = %s, want 2025-02-07", got.Format("2006-01-02"))
	}

	after := time.Date(2025, 2, 10, 21, 0, 0, 0, et)
	got, err = latestFinished(days, after)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format("2006-01-02") != "2025-02-10" {
		t.Errorf("after cutoff = %s, want 2025-02-10", got.Format("2006-01-02"))
	}

	if _, err := latestFinished(nil, after); err == nil {
		t.Error("expected error for empty calendar")
	}
}

func TestProgressState(t *testing.T) {
	dir := t.TempDir()

	p, err := openProgress(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.MarkEmpty([]string{"DEAD", "GONE"}); err != nil {
		t.Fatal(err)
	}
	if err := p.MarkCompleted("2025-02-10"); err != nil {
		t.Fatal(err)
	}
	p.Close()

	p, err = openProgress(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if !p.IsEmpty("DEAD") || p.IsEmpty("SPY") {
		t.Error("empty set not restored after reopen")
	}
	if p.LastCompleted() != "2025-02-10" {
		t.Errorf("LastCompleted = %q", p.LastCompleted())
	}

	if err := p.Reset(); err != nil {
		t.Fatal(err)
	}
	if p.IsEmpty("DEAD") {
		t.Error("DEAD should be forgotten after Reset")
	}
	data, err := os.ReadFile(filepath.Join(dir, emptyFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("%s not empty after Reset: %q", emptyFile, data)
	}
}

func TestBackfillRun(t *testing.T) {
	dir := t.TempDir()
	ps := store.NewParquetStore(dir)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	b := NewBackfill(Config{}, ps, dir, []string{"spy", "qqq", "nope"}, end.AddDate(0, 0, -5), 2, 2)
	b.endDay = func() (time.Time, error) { return end, nil }

	var (
		mu    sync.Mutex
		calls int
	)
	b.fetch = func(_ context.Context, symbols []string, _, _ time.Time) ([]domain.Bar, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		var bars []domain.Bar
		for _, sym := range symbols {
			if sym == "NOPE" {
				continue
			}
			bars = append(bars, domain.Bar{Symbol: sym, Timestamp: end, Close: 100})
		}
		return bars, nil
	}

	ctx := context.Background()
	if err := b.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times, want 2 batches", calls)
	}

	symbols, err := ps.ListSymbols(ctx, "us")
	if err != nil {
		t.Fatal(err)
	}
	if len(symbols) != 2 || symbols[0] != "QQQ" || symbols[1] != "SPY" {
		t.Errorf("stored symbols = %v, want [QQQ SPY]", symbols)
	}

	// Same end date: nothing to do.
	if err := b.Run(ctx); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times after idempotent run, want 2", calls)
	}

	// After Reset every symbol is fetched again, NOPE included.
	if err := b.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := b.Run(ctx); err != nil {
		t.Fatalf("Run after Reset: %v", err)
	}
	if calls != 4 {
		t.Errorf("fetch called %d times after Reset, want 4", calls)
	}
}
