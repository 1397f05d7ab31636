package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for corrboard.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Provider Provider `yaml:"provider"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Yahoo    Yahoo    `yaml:"yahoo"`
	Cache    Cache    `yaml:"cache"`
	Logging  Logging  `yaml:"logging"`
	Ranking  Ranking  `yaml:"ranking"`
	Gather   Gather   `yaml:"gather"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	// RecordRuns stores every ranking in the SQLite run history.
	RecordRuns bool `yaml:"record_runs"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Provider selects the market-data source: "yahoo", "alpaca" or "local".
type Provider struct {
	Name string `yaml:"name"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Yahoo configures the Yahoo Finance chart provider.
type Yahoo struct {
	BaseURL         string `yaml:"base_url"`
	MaxWorkers      int    `yaml:"max_workers"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Cache configures the memo cache for fetched price matrices. An empty
// RedisAddr selects the in-process cache.
type Cache struct {
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Ranking holds default request parameters.
type Ranking struct {
	Timeframe string `yaml:"timeframe"`
	Method    string `yaml:"method"`
	Lag       string `yaml:"lag"`
	TopN      int    `yaml:"top_n"`
}

// Gather configures the daily-bar backfill.
type Gather struct {
	Symbols    []string `yaml:"symbols"`
	StartDate  string   `yaml:"start_date"`
	BatchSize  int      `yaml:"batch_size"`
	MaxWorkers int      `yaml:"max_workers"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Defaults returns the configuration used for any field left unset.
func Defaults() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/corrboard.db",
		},
		Server: Server{
			Host:     "0.0.0.0",
			Port:     8080,
			GRPCPort: 9090,
		},
		Provider: Provider{Name: "yahoo"},
		Alpaca: Alpaca{
			Feed: "iex",
		},
		Yahoo: Yahoo{
			BaseURL:         "https://query1.finance.yahoo.com",
			MaxWorkers:      4,
			RateLimitPerMin: 120,
		},
		Cache: Cache{
			TTL: 10 * time.Minute,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Ranking: Ranking{
			Timeframe: "1d",
			Method:    "pearson",
			Lag:       "0",
			TopN:      20,
		},
		Gather: Gather{
			StartDate:  "2016-01-01",
			BatchSize:  100,
			MaxWorkers: 4,
		},
	}
}

// Load reads the YAML configuration file at the given path on top of
// Defaults, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Defaults plus
// environment overrides when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = Defaults()
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	return cfg, err
}

// Path returns the config file path, honouring CORRBOARD_CONFIG.
func Path() string {
	if p := os.Getenv("CORRBOARD_CONFIG"); p != "" {
		return p
	}
	return "config/corrboard.yaml"
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("CORRBOARD_PROVIDER"); v != "" {
		cfg.Provider.Name = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
