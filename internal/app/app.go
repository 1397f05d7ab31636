// Package app assembles corrboard components from configuration for the
// binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"corrboard/internal/cache"
	"corrboard/internal/config"
	"corrboard/internal/dashboard"
	"corrboard/internal/gather"
	"corrboard/internal/gather/alpaca"
	"corrboard/internal/gather/local"
	"corrboard/internal/gather/yahoo"
	"corrboard/internal/store"
	"corrboard/internal/util"
)

// SetupLogger builds the configured logger and installs it as the default.
func SetupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := util.NewLoggerTo(w, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	return logger
}

// AlpacaConfig extracts the Alpaca provider settings.
func AlpacaConfig(cfg *config.Config) alpaca.Config {
	return alpaca.Config{
		APIKey:    cfg.Alpaca.APIKey,
		APISecret: cfg.Alpaca.APISecret,
		DataURL:   cfg.Alpaca.DataURL,
		BaseURL:   cfg.Alpaca.BaseURL,
		Feed:      cfg.Alpaca.Feed,
	}
}

// NewProvider returns the configured market-data provider.
func NewProvider(cfg *config.Config) (gather.Fetcher, error) {
	switch cfg.Provider.Name {
	case "", "yahoo":
		return yahoo.NewProvider(yahoo.Config{
			BaseURL:         cfg.Yahoo.BaseURL,
			MaxWorkers:      cfg.Yahoo.MaxWorkers,
			RateLimitPerMin: cfg.Yahoo.RateLimitPerMin,
		}, nil), nil
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, fmt.Errorf("alpaca provider needs api_key and api_secret")
		}
		return alpaca.NewProvider(AlpacaConfig(cfg)), nil
	case "local":
		return local.NewProvider(store.NewParquetStore(cfg.Storage.DataDir)), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
}

// NewCache returns the Redis cache when an address is configured, the
// in-process cache otherwise. The returned close function is never nil.
func NewCache(ctx context.Context, cfg *config.Config) (cache.Store, func() error, error) {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewMemory(), func() error { return nil }, nil
	}
	r, err := cache.DialRedis(ctx, cache.RedisConfig{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}

// Components are the long-lived pieces shared by the binaries.
type Components struct {
	Service *dashboard.Service
	Runs    *store.SQLiteStore // nil unless run recording is enabled
	closers []func() error
}

// Close releases the cache connection and the run store.
func (c *Components) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build wires provider, cache, run store and dashboard service from cfg.
// withRuns opens the SQLite run history even when recording is disabled, so
// servers can still serve the history routes.
func Build(ctx context.Context, cfg *config.Config, withRuns bool) (*Components, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	c := &Components{}
	memo, closeCache, err := NewCache(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting cache: %w", err)
	}
	c.closers = append(c.closers, closeCache)
	fetcher := gather.NewCached(provider, memo, cfg.Cache.TTL)

	opts := []dashboard.Option{
		dashboard.WithDefaults(dashboard.Params{
			Timeframe: cfg.Ranking.Timeframe,
			Method:    cfg.Ranking.Method,
			Lag:       cfg.Ranking.Lag,
			TopN:      cfg.Ranking.TopN,
		}),
	}
	if withRuns || cfg.Storage.RecordRuns {
		runs, err := openRuns(cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Runs = runs
		c.closers = append(c.closers, runs.Close)
		if cfg.Storage.RecordRuns {
			opts = append(opts, dashboard.WithRecorder(runs))
		}
	}

	c.Service = dashboard.NewService(fetcher, opts...)
	slog.Info("components ready",
		"provider", provider.Name(),
		"redis", cfg.Cache.RedisAddr != "",
		"cacheTTL", cfg.Cache.TTL,
		"recordRuns", cfg.Storage.RecordRuns,
	)
	return c, nil
}

func openRuns(cfg *config.Config) (*store.SQLiteStore, error) {
	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}
	return runs, nil
}
