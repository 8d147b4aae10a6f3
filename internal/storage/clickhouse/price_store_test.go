package clickhouse_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/storage"
	"equity-momentum-lab/internal/storage/clickhouse"
	"equity-momentum-lab/internal/storage/migrations"
)

// setupTestDB starts a ClickHouse container and applies the embedded migrations.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*clickhouse.Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60 * time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/momentum_test", host, port.Port())

	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

func TestPriceStore_ReplaceAllAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewPriceStore(conn)
	ctx := context.Background()
	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	_, err := store.Summary(ctx)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	obs := []domain.PriceObservation{
		{Date: d0, Ticker: "MSFT", Close: 300, Volume: 100},
		{Date: d0.AddDate(0, 0, 1), Ticker: "AAPL", Close: 101.5, Volume: 200},
		{Date: d0, Ticker: "AAPL", Close: 100, Volume: 150},
	}
	info := domain.DatasetSummary{Rows: 3, Tickers: 2, Start: "2024-01-02", End: "2024-01-03", DatasetID: "abc", SourceName: "prices.csv", LoadedAt: d0.Add(time.Hour)}
	require.NoError(t, store.ReplaceAll(ctx, info, obs))

	rows, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, domain.PriceObservation{Date: d0, Ticker: "AAPL", Close: 100, Volume: 150}, rows[0])
	assert.Equal(t, "MSFT", rows[2].Ticker)

	got, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, info, *got)

	require.NoError(t, store.ReplaceAll(ctx, domain.DatasetSummary{Rows: 1, LoadedAt: d0.Add(2 * time.Hour)}, obs[:1]))
	rows, err = store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPriceStore_RejectsDuplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewPriceStore(conn)
	ctx := context.Background()
	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	dup := []domain.PriceObservation{
		{Date: d0, Ticker: "A", Close: 1},
		{Date: d0, Ticker: "A", Close: 2},
	}
	err := store.ReplaceAll(ctx, domain.DatasetSummary{}, dup)
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))
}
