// Package pipeline runs backtests as a service: it loads the current dataset,
// runs the engine, persists the run and notifies listeners.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"equity-momentum-lab/internal/backtest"
	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/idhash"
	"equity-momentum-lab/internal/ingestion"
	"equity-momentum-lab/internal/logging"
	"equity-momentum-lab/internal/observability"
	"equity-momentum-lab/internal/panel"
	"equity-momentum-lab/internal/storage"
	"equity-momentum-lab/internal/sweep"
)

// ErrNoDataset is returned when a run is requested before any dataset is loaded.
var ErrNoDataset = errors.New("no dataset loaded: upload a dataset or load the sample first")

// Outcome is the result of one pipeline run.
type Outcome struct {
	Result      *domain.BacktestResult
	Sufficiency SufficiencyResult
}

// CompletionHook is called with every persisted run.
type CompletionHook func(domain.RunSummary)

// Runner orchestrates dataset loads and backtest runs.
type Runner struct {
	engine  *backtest.Engine
	prices  storage.PriceStore
	runs    storage.RunStore       // optional; nil skips persistence
	metrics *observability.Metrics // optional
	log     zerolog.Logger
	clock   func() time.Time
	hooks   []CompletionHook

	mu       sync.Mutex
	snapshot *snapshot // panel of the last seen dataset
}

type snapshot struct {
	info  domain.DatasetSummary
	panel *panel.Panel
}

// NewRunner creates a runner over prices.
func NewRunner(engine *backtest.Engine, prices storage.PriceStore) *Runner {
	return &Runner{
		engine: engine,
		prices: prices,
		log:    zerolog.Nop(),
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// WithRunStore persists every run to runs.
func (r *Runner) WithRunStore(runs storage.RunStore) *Runner {
	r.runs = runs
	return r
}

// WithMetrics records Prometheus metrics.
func (r *Runner) WithMetrics(m *observability.Metrics) *Runner {
	r.metrics = m
	return r
}

// WithLogger sets the logger.
func (r *Runner) WithLogger(log zerolog.Logger) *Runner {
	r.log = logging.Component(log, "pipeline")
	return r
}

// WithClock sets a custom clock function for deterministic output.
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	r.clock = clock
	return r
}

// OnComplete registers a hook called after each successful run.
// Hooks run synchronously and must not block.
func (r *Runner) OnComplete(hook CompletionHook) *Runner {
	r.hooks = append(r.hooks, hook)
	return r
}

// Run validates req, runs it on the current dataset and persists the result.
func (r *Runner) Run(ctx context.Context, req domain.RunRequest) (*Outcome, error) {
	started := r.clock()

	// 1. Validate at the boundary
	if err := backtest.ValidateRequest(req); err != nil {
		r.recordBacktest(observability.StatusInvalid, 0, 0)
		return nil, err
	}

	// 2. Load the dataset snapshot
	p, info, err := r.Panel(ctx)
	if err != nil {
		r.recordBacktest(observability.StatusError, 0, 0)
		return nil, err
	}

	// 3. Run the engine
	result, err := r.engine.Run(p, req)
	if err != nil {
		r.recordBacktest(observability.StatusError, 0, 0)
		return nil, err
	}
	result.DatasetID = info.DatasetID

	sufficiency := CheckSufficiency(p.Filter(req.Start, req.End), req.StrategyParams)

	// 4. Persist
	if r.runs != nil {
		if err := r.runs.Insert(ctx, result); err != nil {
			r.recordBacktest(observability.StatusError, 0, 0)
			return nil, fmt.Errorf("persist run %s: %w", result.RunID, err)
		}
	}

	elapsed := r.clock().Sub(started)
	r.recordBacktest(observability.StatusSuccess, elapsed, result.NDays)

	// 5. Notify
	summary := result.Summary()
	for _, hook := range r.hooks {
		hook(summary)
	}

	event := r.log.Info().
		Str("run_id", result.RunID).
		Str("start", result.Params.Start).
		Str("end", result.Params.End).
		Int("n_days", result.NDays).
		Float64("sharpe", result.Metrics.Sharpe).
		Float64("cagr", result.Metrics.CAGR).
		Dur("elapsed", elapsed)
	if !sufficiency.AllPass {
		event = event.Strs("warnings", sufficiency.Warnings())
	}
	event.Msg("backtest complete")

	return &Outcome{Result: result, Sufficiency: sufficiency}, nil
}

// Sweep runs every parameter set over the [start, end] window of the current
// dataset with at most limit runs in flight. Results are not persisted.
func (r *Runner) Sweep(ctx context.Context, start, end *time.Time, combos []domain.StrategyParams, limit int) ([]*domain.BacktestResult, error) {
	p, info, err := r.Panel(ctx)
	if err != nil {
		return nil, err
	}

	started := r.clock()
	results, err := sweep.Run(ctx, r.engine, p, start, end, combos, limit)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		res.DatasetID = info.DatasetID
	}

	if r.metrics != nil {
		r.metrics.RecordSweep(len(results))
	}
	r.log.Info().
		Int("points", len(results)).
		Dur("elapsed", r.clock().Sub(started)).
		Msg("sweep complete")

	return results, nil
}

// Panel returns the current dataset as a panel together with its summary.
// The panel is rebuilt only when the stored dataset fingerprint changes.
// Returns ErrNoDataset when the store is empty.
func (r *Runner) Panel(ctx context.Context) (*panel.Panel, *domain.DatasetSummary, error) {
	info, err := r.prices.Summary(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNoDataset
		}
		return nil, nil, fmt.Errorf("load dataset summary: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.snapshot; s != nil && info.DatasetID != "" && s.info.DatasetID == info.DatasetID {
		out := s.info
		return s.panel, &out, nil
	}

	rows, err := r.prices.GetAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load dataset: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, ErrNoDataset
	}

	p := panel.New(rows)
	if info.DatasetID == "" {
		info.DatasetID = idhash.ComputeDatasetID(p.Rows())
	}
	r.snapshot = &snapshot{info: *info, panel: p}

	out := *info
	return p, &out, nil
}

// Dataset returns the summary of the loaded dataset, or ErrNoDataset.
func (r *Runner) Dataset(ctx context.Context) (*domain.DatasetSummary, error) {
	info, err := r.prices.Summary(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoDataset
		}
		return nil, err
	}
	return info, nil
}

// LoadDataset parses a CSV or XLSX file (chosen by the extension of name)
// and replaces the stored dataset with it.
func (r *Runner) LoadDataset(ctx context.Context, name string, src io.Reader) (*domain.DatasetSummary, error) {
	obs, err := ingestion.ReadFile(name, src)
	if err != nil {
		r.recordDatasetLoad(observability.StatusInvalid, 0, 0)
		r.log.Warn().Err(err).Str("source", name).Msg("dataset rejected")
		return nil, err
	}
	return r.LoadObservations(ctx, filepath.Base(name), obs)
}

// LoadObservations replaces the stored dataset with obs.
func (r *Runner) LoadObservations(ctx context.Context, source string, obs []domain.PriceObservation) (*domain.DatasetSummary, error) {
	p := panel.New(obs)
	info := p.Summary()
	info.DatasetID = idhash.ComputeDatasetID(p.Rows())
	info.SourceName = source
	info.LoadedAt = r.clock()

	if err := r.prices.ReplaceAll(ctx, info, p.Rows()); err != nil {
		r.recordDatasetLoad(observability.StatusError, 0, 0)
		return nil, fmt.Errorf("store dataset: %w", err)
	}

	r.mu.Lock()
	r.snapshot = &snapshot{info: info, panel: p}
	r.mu.Unlock()

	r.recordDatasetLoad(observability.StatusSuccess, info.Rows, info.Tickers)
	r.log.Info().
		Str("source", source).
		Int("rows", info.Rows).
		Int("tickers", info.Tickers).
		Str("start", info.Start).
		Str("end", info.End).
		Msg("dataset loaded")

	return &info, nil
}

func (r *Runner) recordBacktest(status string, elapsed time.Duration, days int) {
	if r.metrics != nil {
		r.metrics.RecordBacktest(status, elapsed, days)
	}
}

func (r *Runner) recordDatasetLoad(status string, rows, tickers int) {
	if r.metrics != nil {
		r.metrics.RecordDatasetLoad(status, rows, tickers)
	}
}
