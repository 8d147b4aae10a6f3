package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"equity-momentum-lab/internal/config"
	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/logging"
)

// Flags are the options shared by every command. Flags left empty keep the
// value from the config file or environment.
type Flags struct {
	ConfigPath    string
	LogLevel      string
	LogFormat     string
	Backend       string
	PriceBackend  string
	SQLitePath    string
	PostgresDSN   string
	ClickhouseDSN string
}

// Register adds the shared flags to cmd and all its subcommands.
func (f *Flags) Register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.ConfigPath, "config", "", "YAML config file (default $"+config.FileEnv+")")
	pf.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&f.LogFormat, "log-format", "", "Log format: console, json")
	pf.StringVar(&f.Backend, "backend", "", "Storage backend: memory, sqlite, postgres")
	pf.StringVar(&f.PriceBackend, "price-backend", "", "Price store override: clickhouse")
	pf.StringVar(&f.SQLitePath, "sqlite-path", "", "SQLite database file")
	pf.StringVar(&f.PostgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	pf.StringVar(&f.ClickhouseDSN, "clickhouse-dsn", "", "ClickHouse connection string")
}

// Load resolves the configuration with flags applied last and builds the
// logger, writing to stderr.
func (f *Flags) Load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(f.ConfigPath, f.apply)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}

func (f *Flags) apply(c *config.Config) {
	setIf(&c.Logging.Level, f.LogLevel)
	setIf(&c.Logging.Format, f.LogFormat)
	setIf(&c.Storage.Backend, f.Backend)
	setIf(&c.Storage.PriceBackend, f.PriceBackend)
	setIf(&c.Storage.SQLitePath, f.SQLitePath)
	setIf(&c.Storage.PostgresDSN, f.PostgresDSN)
	setIf(&c.Storage.ClickhouseDSN, f.ClickhouseDSN)
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// StrategyFlags are the run parameters accepted by backtest commands.
type StrategyFlags struct {
	Start    string
	End      string
	MomWin   int
	Gap      int
	Quantile float64
	MaxPos   float64
	TCBps    float64
}

// Register adds the strategy flags to fs. Defaults shown in help are the
// built-in ones; the configured defaults apply when a flag is not set.
func (s *StrategyFlags) Register(fs *pflag.FlagSet) {
	d := domain.DefaultStrategyParams()
	fs.StringVar(&s.Start, "start", "", "First date of the window, YYYY-MM-DD (default: first available)")
	fs.StringVar(&s.End, "end", "", "Last date of the window, YYYY-MM-DD (default: last available)")
	s.RegisterParams(fs, d)
}

// RegisterParams adds only the strategy parameter flags.
func (s *StrategyFlags) RegisterParams(fs *pflag.FlagSet, d domain.StrategyParams) {
	fs.IntVar(&s.MomWin, "mom-win", d.MomWin, "Momentum lookback in observations")
	fs.IntVar(&s.Gap, "gap", d.Gap, "Skip period between signal end and trade date")
	fs.Float64Var(&s.Quantile, "quantile", d.Quantile, "Fraction of the cross-section per leg, (0, 0.5]")
	fs.Float64Var(&s.MaxPos, "max-pos", d.MaxPos, "Absolute weight cap per name")
	fs.Float64Var(&s.TCBps, "tc-bps", d.TCBps, "Transaction cost in basis points of turnover")
}

// Params overlays the flags that were set on defaults.
func (s *StrategyFlags) Params(fs *pflag.FlagSet, defaults domain.StrategyParams) domain.StrategyParams {
	p := defaults
	if fs.Changed("mom-win") {
		p.MomWin = s.MomWin
	}
	if fs.Changed("gap") {
		p.Gap = s.Gap
	}
	if fs.Changed("quantile") {
		p.Quantile = s.Quantile
	}
	if fs.Changed("max-pos") {
		p.MaxPos = s.MaxPos
	}
	if fs.Changed("tc-bps") {
		p.TCBps = s.TCBps
	}
	return p
}

// Window parses --start and --end. Empty values are nil bounds.
func (s *StrategyFlags) Window() (start, end *time.Time, err error) {
	if start, err = parseFlagDate("start", s.Start); err != nil {
		return nil, nil, err
	}
	if end, err = parseFlagDate("end", s.End); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

// Request builds a run request from the flags over defaults.
func (s *StrategyFlags) Request(fs *pflag.FlagSet, defaults domain.StrategyParams) (domain.RunRequest, error) {
	start, end, err := s.Window()
	if err != nil {
		return domain.RunRequest{}, err
	}
	return domain.RunRequest{
		Start:          start,
		End:            end,
		StrategyParams: s.Params(fs, defaults),
	}, nil
}

func parseFlagDate(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(v)
	if err != nil {
		return nil, fmt.Errorf("--%s: %q is not a YYYY-MM-DD date", name, v)
	}
	return &t, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
