package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"equity-momentum-lab/internal/backtest"
	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/idhash"
	"equity-momentum-lab/internal/metrics"
	"equity-momentum-lab/internal/panel"
	"equity-momentum-lab/internal/storage"
)

// ErrRunNotFound is returned when run ID doesn't exist. It matches storage.ErrNotFound.
var ErrRunNotFound = fmt.Errorf("run %w", storage.ErrNotFound)

// Replay skip reasons.
const (
	SkipNoPriceStore    = "no price store configured"
	SkipNoDataset       = "no dataset loaded"
	SkipNoFingerprint   = "run has no dataset fingerprint"
	SkipDatasetChanged  = "loaded dataset differs from the run's dataset"
	SkipNoSimulatedDays = "run has no simulated days"
)

// RunVerifier implements Verifier.
type RunVerifier struct {
	runStore   storage.RunStore
	priceStore storage.PriceStore // nil disables replay
	engine     *backtest.Engine
}

// NewRunVerifier creates a new RunVerifier. priceStore may be nil.
func NewRunVerifier(runStore storage.RunStore, priceStore storage.PriceStore) *RunVerifier {
	return &RunVerifier{
		runStore:   runStore,
		priceStore: priceStore,
		engine:     backtest.NewEngine(),
	}
}

// Compile-time interface check.
var _ Verifier = (*RunVerifier)(nil)

// VerifyRun verifies a single run by ID.
func (v *RunVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationResult, error) {
	// 1. Load stored run
	stored, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	// 2. Recompute metrics from the stored series
	result := &VerificationResult{
		RunID:             runID,
		MetricDivergences: CompareMetrics(stored.Metrics, metrics.Compute(stored.Daily)),
	}
	if stored.NDays != len(stored.Daily) {
		result.MetricDivergences = append(result.MetricDivergences, FieldDivergence{
			Field: "n_days", Expected: stored.NDays, Actual: len(stored.Daily),
		})
	}

	// 3. Replay on the loaded dataset when it is the one the run used
	if err := v.replay(ctx, stored, result); err != nil {
		return nil, err
	}

	result.Match = len(result.MetricDivergences) == 0 && len(result.ReplayDivergences) == 0
	return result, nil
}

// VerifyAll verifies the newest limit runs.
func (v *RunVerifier) VerifyAll(ctx context.Context, limit int) (*VerificationReport, error) {
	summaries, err := v.runStore.List(ctx, limit)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalRuns: len(summaries),
		Results:   make([]VerificationResult, 0, len(summaries)),
	}

	for _, s := range summaries {
		result, err := v.VerifyRun(ctx, s.RunID)
		if err != nil {
			return nil, fmt.Errorf("verify run %s: %w", s.RunID, err)
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}

func (v *RunVerifier) replay(ctx context.Context, stored *domain.BacktestResult, result *VerificationResult) error {
	skip := func(reason string) error {
		result.ReplaySkipped = reason
		return nil
	}

	switch {
	case v.priceStore == nil:
		return skip(SkipNoPriceStore)
	case stored.DatasetID == "":
		return skip(SkipNoFingerprint)
	case stored.Params.Start == "" || stored.Params.End == "":
		return skip(SkipNoSimulatedDays)
	}

	rows, err := v.priceStore.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	if len(rows) == 0 {
		return skip(SkipNoDataset)
	}

	p := panel.New(rows)
	if idhash.ComputeDatasetID(p.Rows()) != stored.DatasetID {
		return skip(SkipDatasetChanged)
	}

	req, err := replayRequest(stored.Params)
	if err != nil {
		return err
	}

	replayed, err := v.engine.Run(p, req)
	if err != nil {
		return fmt.Errorf("replay run %s: %w", stored.RunID, err)
	}

	result.Replayed = true
	result.ReplayDivergences = append(
		CompareDaily(stored.Daily, replayed.Daily),
		CompareMetrics(stored.Metrics, replayed.Metrics)...,
	)
	return nil
}

// replayRequest rebuilds the request of a stored run. The resolved window
// bounds select exactly the rows the original request selected.
func replayRequest(params domain.ResolvedParams) (domain.RunRequest, error) {
	start, err := domain.ParseDate(params.Start)
	if err != nil {
		return domain.RunRequest{}, fmt.Errorf("parse stored start %q: %w", params.Start, err)
	}
	end, err := domain.ParseDate(params.End)
	if err != nil {
		return domain.RunRequest{}, fmt.Errorf("parse stored end %q: %w", params.End, err)
	}
	return domain.RunRequest{
		Start:          timePtr(start),
		End:            timePtr(end),
		StrategyParams: params.StrategyParams,
	}, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
