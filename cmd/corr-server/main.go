package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"corrboard/internal/api"
	"corrboard/internal/app"
	"corrboard/internal/config"
	"corrboard/internal/httpapi"
	"corrboard/internal/store"
)

func main() {
	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := app.SetupLogger(cfg, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := app.Build(ctx, cfg, true)
	if err != nil {
		log.Fatalf("failed to build components: %v", err)
	}
	defer c.Close()

	var runs store.RunStore
	if c.Runs != nil {
		runs = c.Runs
	}
	handler := httpapi.NewServer(c.Service, runs, logger).Handler()

	slog.Info("corr-server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"grpcPort", cfg.Server.GRPCPort,
	)
	if err := api.NewServer(cfg, handler, c.Service).ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	slog.Info("corr-server stopped")
}
