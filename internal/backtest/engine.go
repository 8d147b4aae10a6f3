// Package backtest is the entry point of the momentum engine: it filters the
// panel to the requested window and runs signal, weighting, simulation and
// metrics in order.
package backtest

import (
	"time"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/idhash"
	"equity-momentum-lab/internal/metrics"
	"equity-momentum-lab/internal/panel"
	"equity-momentum-lab/internal/signal"
	"equity-momentum-lab/internal/simulation"
	"equity-momentum-lab/internal/weights"
)

// Engine runs backtests. It holds no mutable state; one Engine may serve
// concurrent callers.
type Engine struct {
	newRunID func() string
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunIDFunc sets the run identifier generator.
func WithRunIDFunc(fn func() string) Option {
	return func(e *Engine) {
		e.newRunID = fn
	}
}

// WithClock sets the clock used for CreatedAt.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		e.now = fn
	}
}

// NewEngine creates an engine with random run ids and the wall clock.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		newRunID: idhash.NewRunID,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run validates req and runs one backtest over p.
// Returns an error wrapping ErrInvalidParams on bad parameters; an empty or
// too-short panel is not an error and yields an empty result.
func (e *Engine) Run(p *panel.Panel, req domain.RunRequest) (*domain.BacktestResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	// Step 1: restrict to the window
	window := p.Filter(req.Start, req.End)

	// Step 2: returns and signals per ticker
	returns := window.Returns()
	signals := signal.Momentum(window, req.MomWin, req.Gap)

	// Step 3: per-date cross-sectional weights
	w := weights.Build(signals, req.Quantile, req.MaxPos)

	// Step 4: lagged simulation
	daily := simulation.Simulate(w, returns, req.TCBps)

	// Step 5: metrics
	m := metrics.Compute(daily)

	return Assemble(e.newRunID(), e.now(), resolveParams(window, req.StrategyParams), daily, m), nil
}

// resolveParams echoes params with the actual first and last date of the window.
func resolveParams(window *panel.Panel, params domain.StrategyParams) domain.ResolvedParams {
	summary := window.Summary()
	return domain.ResolvedParams{
		Start:          summary.Start,
		End:            summary.End,
		StrategyParams: params,
	}
}
