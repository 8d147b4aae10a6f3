package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-momentum-lab/internal/config"
	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/ingestion"
	"equity-momentum-lab/internal/storage/memory"
)

func sampleRows() []domain.PriceObservation {
	return ingestion.Sample(ingestion.SampleConfig{
		Seed:    1,
		Days:    90,
		Tickers: []string{"AAA", "BBB", "CCC", "DDD", "EEE"},
		Start:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}

func runEndToEnd(t *testing.T, cfg *config.Config) {
	t.Helper()
	ctx := context.Background()

	a, err := New(ctx, cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Runner.LoadObservations(ctx, "sample", sampleRows())
	require.NoError(t, err)

	params := domain.DefaultStrategyParams()
	params.MomWin = 20
	out, err := a.Runner.Run(ctx, domain.RunRequest{StrategyParams: params})
	require.NoError(t, err)

	stored, err := a.Stores.Runs.GetByID(ctx, out.Result.RunID)
	require.NoError(t, err)
	assert.Equal(t, out.Result.NDays, stored.NDays)

	res, err := a.Verifier.VerifyRun(ctx, out.Result.RunID)
	require.NoError(t, err)
	assert.True(t, res.Match, "stored run should verify: %+v", res)

	rep, err := a.Reports.Generate(ctx, out.Result.RunID)
	require.NoError(t, err)
	require.NotNil(t, rep.Dataset)
	assert.Equal(t, out.Result.DatasetID, rep.Dataset.DatasetID)
}

func TestNew_MemoryBackend(t *testing.T) {
	cfg := config.Default()
	a, err := New(context.Background(), &cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &memory.PriceStore{}, a.Stores.Prices)
	assert.IsType(t, &memory.RunStore{}, a.Stores.Runs)

	runEndToEnd(t, &cfg)
}

func TestNew_SQLiteBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendSQLite
	cfg.Storage.SQLitePath = ":memory:"

	runEndToEnd(t, &cfg)
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	_, err := OpenStores(context.Background(), config.StorageConfig{Backend: "cassandra"}, config.RedisConfig{}, nil, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}

func TestStores_CloseOrder(t *testing.T) {
	var order []int
	s := &Stores{}
	s.onClose(func() { order = append(order, 1) })
	s.onClose(func() { order = append(order, 2) })

	s.Close()
	s.Close()

	assert.Equal(t, []int{2, 1}, order)
}
