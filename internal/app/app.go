package app

import (
	"context"

	"github.com/rs/zerolog"

	"equity-momentum-lab/internal/backtest"
	"equity-momentum-lab/internal/config"
	"equity-momentum-lab/internal/observability"
	"equity-momentum-lab/internal/pipeline"
	"equity-momentum-lab/internal/reporting"
	"equity-momentum-lab/internal/verification"
)

// App is the wired application.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Metrics  *observability.Metrics
	Stores   *Stores
	Engine   *backtest.Engine
	Runner   *pipeline.Runner
	Reports  *reporting.Generator
	Verifier *verification.RunVerifier
}

// New opens the configured stores and builds the runner on top of them.
// metrics may be nil for CLIs that do not export them.
func New(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, log zerolog.Logger) (*App, error) {
	stores, err := OpenStores(ctx, cfg.Storage, cfg.Redis, metrics, log)
	if err != nil {
		return nil, err
	}

	engine := backtest.NewEngine()
	runner := pipeline.NewRunner(engine, stores.Prices).
		WithRunStore(stores.Runs).
		WithLogger(log)
	if metrics != nil {
		runner.WithMetrics(metrics)
	}

	return &App{
		Config:   cfg,
		Log:      log,
		Metrics:  metrics,
		Stores:   stores,
		Engine:   engine,
		Runner:   runner,
		Reports:  reporting.NewGenerator(stores.Runs, stores.Prices),
		Verifier: verification.NewRunVerifier(stores.Runs, stores.Prices),
	}, nil
}

// Close releases the stores.
func (a *App) Close() {
	a.Stores.Close()
}
