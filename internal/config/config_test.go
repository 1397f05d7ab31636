package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "CORRBOARD_PROVIDER", "ALPACA_API_KEY", "ALPACA_API_SECRET",
		"ALPACA_DATA_URL", "REDIS_ADDR", "CACHE_TTL", "PORT", "LOG_LEVEL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	// Create a temporary YAML config file.
	yamlContent := []byte(`
storage:
  data_dir: "/tmp/corrboard/data"
  sqlite_path: "/tmp/corrboard/corrboard.db"
  record_runs: true
server:
  host: "127.0.0.1"
  port: 8181
  grpc_port: 9191
provider:
  name: "alpaca"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  feed: "sip"
yahoo:
  max_workers: 8
cache:
  ttl: 5m
  redis_addr: "localhost:6379"
logging:
  level: "debug"
ranking:
  timeframe: "1h"
  method: "spearman"
  lag: "1h"
  top_n: 15
gather:
  symbols: ["SPY", "QQQ", "GLD"]
  batch_size: 50
`)

	path := filepath.Join(t.TempDir(), "corrboard.yaml")
	if err := os.WriteFile(path, yamlContent, 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/corrboard/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/corrboard/data")
	}
	if !cfg.Storage.RecordRuns {
		t.Error("Storage.RecordRuns = false, want true")
	}

	// -- Server --
	if cfg.Server.Port != 8181 || cfg.Server.GRPCPort != 9191 {
		t.Errorf("Server ports = %d/%d, want 8181/9191", cfg.Server.Port, cfg.Server.GRPCPort)
	}

	// -- Provider --
	if cfg.Provider.Name != "alpaca" {
		t.Errorf("Provider.Name = %q, want %q", cfg.Provider.Name, "alpaca")
	}
	if cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca.Feed = %q, want %q", cfg.Alpaca.Feed, "sip")
	}

	// -- Yahoo: unset fields keep defaults --
	if cfg.Yahoo.MaxWorkers != 8 {
		t.Errorf("Yahoo.MaxWorkers = %d, want 8", cfg.Yahoo.MaxWorkers)
	}
	if cfg.Yahoo.BaseURL != "https://query1.finance.yahoo.com" {
		t.Errorf("Yahoo.BaseURL = %q, want default", cfg.Yahoo.BaseURL)
	}

	// -- Cache --
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache.TTL = %v, want 5m", cfg.Cache.TTL)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("Cache.RedisAddr = %q, want %q", cfg.Cache.RedisAddr, "localhost:6379")
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, "json")
	}

	// -- Ranking --
	if cfg.Ranking.Timeframe != "1h" || cfg.Ranking.Method != "spearman" || cfg.Ranking.Lag != "1h" {
		t.Errorf("Ranking = %+v, want 1h/spearman/1h", cfg.Ranking)
	}
	if cfg.Ranking.TopN != 15 {
		t.Errorf("Ranking.TopN = %d, want 15", cfg.Ranking.TopN)
	}

	// -- Gather --
	if len(cfg.Gather.Symbols) != 3 || cfg.Gather.Symbols[2] != "GLD" {
		t.Errorf("Gather.Symbols = %v", cfg.Gather.Symbols)
	}
	if cfg.Gather.BatchSize != 50 || cfg.Gather.MaxWorkers != 4 {
		t.Errorf("Gather batch/workers = %d/%d, want 50/4", cfg.Gather.BatchSize, cfg.Gather.MaxWorkers)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)

	yamlContent := []byte(`
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)
	path := filepath.Join(t.TempDir(), "corrboard.yaml")
	if err := os.WriteFile(path, yamlContent, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("CORRBOARD_PROVIDER", "local")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Cache.TTL = %v, want 90s", cfg.Cache.TTL)
	}
	if cfg.Provider.Name != "local" {
		t.Errorf("Provider.Name = %q, want %q", cfg.Provider.Name, "local")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() returned error: %v", err)
	}
	if cfg.Ranking.TopN != 20 {
		t.Errorf("Ranking.TopN = %d, want default 20", cfg.Ranking.TopN)
	}
	if cfg.Provider.Name != "yahoo" {
		t.Errorf("Provider.Name = %q, want default %q", cfg.Provider.Name, "yahoo")
	}
}
