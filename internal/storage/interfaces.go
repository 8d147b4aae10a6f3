package storage

import (
	"context"

	"equity-momentum-lab/internal/domain"
)

// PriceStore holds the single active price dataset.
type PriceStore interface {
	// ReplaceAll swaps the stored dataset for obs and records info as its summary.
	// Returns ErrInvalidInput on empty obs, ErrDuplicateKey on a repeated (date, ticker).
	ReplaceAll(ctx context.Context, info domain.DatasetSummary, obs []domain.PriceObservation) error

	// GetAll returns every observation ordered by (ticker, date).
	// An empty store returns an empty slice.
	GetAll(ctx context.Context) ([]domain.PriceObservation, error)

	// Summary returns the summary recorded by the last ReplaceAll.
	// Returns ErrNotFound if no dataset was loaded.
	Summary(ctx context.Context) (*domain.DatasetSummary, error)
}

// RunStore provides access to completed backtest runs.
type RunStore interface {
	// Insert adds a run with its daily series. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestResult) error

	// GetByID retrieves a run with its daily series. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestResult, error)

	// List returns run summaries, newest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]domain.RunSummary, error)
}
