package backtest

import (
	"time"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/simulation"
)

// Assemble packages the outputs of one run into a BacktestResult.
// daily is copied; the result shares no memory with its inputs.
func Assemble(
	runID string,
	createdAt time.Time,
	params domain.ResolvedParams,
	daily []domain.DailyResult,
	m domain.Metrics,
) *domain.BacktestResult {
	rows := make([]domain.DailyResult, len(daily))
	copy(rows, daily)

	return &domain.BacktestResult{
		RunID:        runID,
		CreatedAt:    createdAt,
		Params:       params,
		Metrics:      m,
		EquitySeries: simulation.EquitySeries(rows),
		Daily:        rows,
		NDays:        len(rows),
	}
}
