package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/storage"
	"equity-momentum-lab/internal/storage/postgres"
)

var d0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func sampleRun(id string, created time.Time) *domain.BacktestResult {
	daily := []domain.DailyResult{
		{Date: d0, Equity: 1},
		{Date: d0.AddDate(0, 0, 1), Turnover: 1, DailyRet: 0.01, DailyCost: 0.001, DailyPnL: 0.009, Equity: 1.009},
	}
	return &domain.BacktestResult{
		RunID:     id,
		DatasetID: "ds-1",
		CreatedAt: created,
		Params: domain.ResolvedParams{
			Start:          "2024-01-02",
			End:            "2024-01-03",
			StrategyParams: domain.DefaultStrategyParams(),
		},
		Metrics:      domain.Metrics{CAGR: 0.5, Vol: 0.1, Sharpe: 1.2, MaxDrawdown: -0.05, AvgTurnover: 0.5, HitRate: 0.5},
		EquitySeries: []domain.EquityPoint{{Date: daily[0].Date, Equity: 1}, {Date: daily[1].Date, Equity: 1.009}},
		Daily:        daily,
		NDays:        2,
	}
}

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRunStore(pool)
	ctx := context.Background()

	run := sampleRun("r1", d0.Add(90*time.Minute))
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, run, got)

	_, err = store.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestRunStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRunStore(pool)
	ctx := context.Background()

	run := sampleRun("r1", d0)
	require.NoError(t, store.Insert(ctx, run))

	err := store.Insert(ctx, run)
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))

	// the failed insert must not leave extra daily rows
	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got.Daily, 2)
}

func TestRunStore_List(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRunStore(pool)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Insert(ctx, sampleRun(id, d0.Add(time.Duration(i)*time.Minute))))
	}

	list, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].RunID)
	assert.Equal(t, "b", list[1].RunID)
	assert.Equal(t, 2, list[0].NDays)
}

func TestPriceStore_ReplaceAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewPriceStore(pool)
	ctx := context.Background()

	_, err := store.Summary(ctx)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	obs := []domain.PriceObservation{
		{Date: d0, Ticker: "MSFT", Close: 300, Volume: 100},
		{Date: d0, Ticker: "AAPL", Close: 100, Volume: 150},
		{Date: d0.AddDate(0, 0, 1), Ticker: "AAPL", Close: 101.5, Volume: 200},
	}
	info := domain.DatasetSummary{Rows: 3, Tickers: 2, Start: "2024-01-02", End: "2024-01-03", DatasetID: "abc", SourceName: "prices.csv", LoadedAt: d0.Add(time.Hour)}
	require.NoError(t, store.ReplaceAll(ctx, info, obs))

	rows, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, domain.PriceObservation{Date: d0, Ticker: "AAPL", Close: 100, Volume: 150}, rows[0])

	got, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, info, *got)

	require.NoError(t, store.ReplaceAll(ctx, domain.DatasetSummary{Rows: 1, LoadedAt: d0}, obs[:1]))
	rows, err = store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
