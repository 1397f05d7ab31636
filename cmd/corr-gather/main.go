package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"corrboard/internal/app"
	"corrboard/internal/config"
	"corrboard/internal/dashboard"
	"corrboard/internal/gather/alpaca"
	"corrboard/internal/store"
)

func main() {
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (default: gather.symbols from config)")
	reset := flag.Bool("reset", false, "forget backfill progress and the no-data list before starting")
	flag.Parse()

	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Dual logger: stdout plus a dated file in the temp dir.
	logFileName := filepath.Join(os.TempDir(), fmt.Sprintf("corr-gather-%s.log", time.Now().Format("2006-01-02")))
	logFile, err := os.Create(logFileName)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	app.SetupLogger(cfg, io.MultiWriter(os.Stdout, logFile))

	symbols := cfg.Gather.Symbols
	if *symbolsFlag != "" {
		symbols = dashboard.ParseTickers(*symbolsFlag)
	}
	if len(symbols) == 0 {
		log.Fatal("no symbols: pass -symbols or set gather.symbols")
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("alpaca api_key and api_secret are required")
	}

	start, err := time.Parse("2006-01-02", cfg.Gather.StartDate)
	if err != nil {
		log.Fatalf("invalid gather.start_date %q: %v", cfg.Gather.StartDate, err)
	}

	gatherer := alpaca.NewBackfill(
		app.AlpacaConfig(cfg),
		store.NewParquetStore(cfg.Storage.DataDir),
		cfg.Storage.DataDir,
		symbols,
		start,
		cfg.Gather.BatchSize,
		cfg.Gather.MaxWorkers,
	)
	if *reset {
		if err := gatherer.Reset(); err != nil {
			log.Fatalf("reset failed: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting corr-gather", "logFile", logFileName, "symbols", len(symbols), "start", cfg.Gather.StartDate)
	if err := gatherer.Run(ctx); err != nil {
		log.Fatalf("backfill error: %v", err)
	}
}
