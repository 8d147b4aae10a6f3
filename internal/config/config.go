// Package config loads service and CLI configuration from an optional YAML
// file and MOMENTUM_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"equity-momentum-lab/internal/backtest"
	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/ingestion"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "MOMENTUM"

// FileEnv names the environment variable holding the YAML config path.
const FileEnv = "MOMENTUM_CONFIG"

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendSQLite     = "sqlite"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
)

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Redis     RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Defaults  DefaultsConfig  `yaml:"defaults" envconfig:"DEFAULTS"`
	Sample    SampleConfig    `yaml:"sample" envconfig:"SAMPLE"`
	Sweep     SweepConfig     `yaml:"sweep" envconfig:"SWEEP"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
	ListLimit       int           `yaml:"list_limit" envconfig:"LIST_LIMIT"`
}

// StorageConfig selects and configures the stores.
// Backend holds runs and, unless PriceBackend is set, prices too.
type StorageConfig struct {
	Backend       string `yaml:"backend" envconfig:"BACKEND"`
	PriceBackend  string `yaml:"price_backend" envconfig:"PRICE_BACKEND"`
	SQLitePath    string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	PostgresDSN   string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	ClickhouseDSN string `yaml:"clickhouse_dsn" envconfig:"CLICKHOUSE_DSN"`
}

// RedisConfig configures the run cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" envconfig:"ENABLED"`
	Addr     string        `yaml:"addr" envconfig:"ADDR"`
	Password string        `yaml:"password" envconfig:"PASSWORD"`
	DB       int           `yaml:"db" envconfig:"DB"`
	TTL      time.Duration `yaml:"ttl" envconfig:"TTL"`
}

// RateLimitConfig limits backtest submissions.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// DefaultsConfig holds the strategy parameters used for absent request fields.
type DefaultsConfig struct {
	MomWin   int     `yaml:"mom_win" envconfig:"MOM_WIN"`
	Gap      int     `yaml:"gap" envconfig:"GAP"`
	Quantile float64 `yaml:"quantile" envconfig:"QUANTILE"`
	MaxPos   float64 `yaml:"max_pos" envconfig:"MAX_POS"`
	TCBps    float64 `yaml:"tc_bps" envconfig:"TC_BPS"`
}

// Params converts d to strategy parameters.
func (d DefaultsConfig) Params() domain.StrategyParams {
	return domain.StrategyParams{
		MomWin:   d.MomWin,
		Gap:      d.Gap,
		Quantile: d.Quantile,
		MaxPos:   d.MaxPos,
		TCBps:    d.TCBps,
	}
}

// SampleConfig configures the synthetic dataset.
type SampleConfig struct {
	Seed    uint64   `yaml:"seed" envconfig:"SEED"`
	Days    int      `yaml:"days" envconfig:"DAYS"`
	Tickers []string `yaml:"tickers" envconfig:"TICKERS"`
}

// Generator returns the sample generator settings for asOf.
func (s SampleConfig) Generator(asOf time.Time) ingestion.SampleConfig {
	return ingestion.SampleConfig{
		Seed:    s.Seed,
		Days:    s.Days,
		Tickers: append([]string(nil), s.Tickers...),
		Start:   ingestion.SampleStart(asOf, s.Days),
	}
}

// SweepConfig configures parameter sweeps.
type SweepConfig struct {
	Concurrency int `yaml:"concurrency" envconfig:"CONCURRENCY"`
	MaxPoints   int `yaml:"max_points" envconfig:"MAX_POINTS"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := domain.DefaultStrategyParams()
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  32 << 20,
			ListLimit:       50,
		},
		Storage: StorageConfig{
			Backend:    BackendMemory,
			SQLitePath: "data/momentum.db",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     5,
			Burst:   10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Defaults: DefaultsConfig{
			MomWin:   p.MomWin,
			Gap:      p.Gap,
			Quantile: p.Quantile,
			MaxPos:   p.MaxPos,
			TCBps:    p.TCBps,
		},
		Sample: SampleConfig{
			Seed:    ingestion.DefaultSampleSeed,
			Days:    ingestion.DefaultSampleDays,
			Tickers: append([]string(nil), ingestion.DefaultSampleTickers...),
		},
		Sweep: SweepConfig{
			MaxPoints: 256,
		},
	}
}

// Load builds the configuration: built-in defaults, then the YAML file at path
// (or at $MOMENTUM_CONFIG when path is empty), then environment variables,
// then overrides (command-line flags). Later sources override earlier ones
// field by field. The result is validated once, after all sources.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, override := range overrides {
		override(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Unknown keys are rejected.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var problems []string

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			problems = append(problems, "storage.sqlite_path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			problems = append(problems, "storage.postgres_dsn is required for the postgres backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.Storage.PriceBackend {
	case "":
	case BackendClickhouse:
		if c.Storage.ClickhouseDSN == "" {
			problems = append(problems, "storage.clickhouse_dsn is required for the clickhouse price backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown price backend %q", c.Storage.PriceBackend))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		problems = append(problems, "redis.addr is required when redis is enabled")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		problems = append(problems, "rate_limit.rps and rate_limit.burst must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		problems = append(problems, "server.max_upload_bytes must be positive")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown logging format %q", c.Logging.Format))
	}
	if err := backtest.Validate(c.Defaults.Params()); err != nil {
		problems = append(problems, "defaults: "+err.Error())
	}
	if c.Sample.Days <= 0 || len(c.Sample.Tickers) == 0 {
		problems = append(problems, "sample.days and sample.tickers must be set")
	}

	if c.Sweep.MaxPoints <= 0 {
		problems = append(problems, "sweep.max_points must be positive")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
