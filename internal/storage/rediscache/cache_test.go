package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/storage"
	"equity-momentum-lab/internal/storage/memory"
)

func sampleResult(id string) *domain.BacktestResult {
	d0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return &domain.BacktestResult{
		RunID:     id,
		CreatedAt: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
		Params: domain.ResolvedParams{
			Start:          "2024-03-01",
			End:            "2024-03-04",
			StrategyParams: domain.DefaultStrategyParams(),
		},
		Metrics: domain.Metrics{CAGR: 0.1, Sharpe: 1.2, HitRate: 0.5},
		EquitySeries: []domain.EquityPoint{
			{Date: d0, Equity: 1},
			{Date: d0.AddDate(0, 0, 3), Equity: 1.01},
		},
		Daily: []domain.DailyResult{
			{Date: d0, Equity: 1},
			{Date: d0.AddDate(0, 0, 3), DailyRet: 0.01, DailyPnL: 0.01, Equity: 1.01},
		},
		NDays: 2,
	}
}

func mustJSON(t *testing.T, r *domain.BacktestResult) []byte {
	t.Helper()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	return data
}

func TestResultCache_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewResultCache(db, time.Minute)
	ctx := context.Background()

	t.Run("hit decodes run", func(t *testing.T) {
		want := sampleResult("run-1")
		mock.ExpectGet(cache.Key("run-1")).SetVal(string(mustJSON(t, want)))

		got, found, err := cache.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, want, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss is not an error", func(t *testing.T) {
		mock.ExpectGet(cache.Key("missing")).RedisNil()

		got, found, err := cache.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis error is returned", func(t *testing.T) {
		mock.ExpectGet(cache.Key("boom")).SetErr(redis.TxFailedErr)

		_, _, err := cache.Get(ctx, "boom")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt payload is an error", func(t *testing.T) {
		mock.ExpectGet(cache.Key("bad")).SetVal("{not json")

		_, found, err := cache.Get(ctx, "bad")
		assert.Error(t, err)
		assert.False(t, found)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestResultCache_SetAndDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewResultCache(db, time.Minute)
	ctx := context.Background()
	r := sampleResult("run-2")

	mock.ExpectSet(cache.Key("run-2"), mustJSON(t, r), time.Minute).SetVal("OK")
	require.NoError(t, cache.Set(ctx, r))

	mock.ExpectDel(cache.Key("run-2")).SetVal(1)
	require.NoError(t, cache.Delete(ctx, "run-2"))

	mock.ExpectDel(cache.Key("run-2")).SetErr(redis.TxFailedErr)
	assert.Error(t, cache.Delete(ctx, "run-2"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewResultCache_DefaultTTL(t *testing.T) {
	db, _ := redismock.NewClientMock()
	cache := NewResultCache(db, 0)
	assert.Equal(t, DefaultTTL, cache.ttl)
}

func TestCachedRunStore_ReadThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewResultCache(db, time.Minute)
	inner := memory.NewRunStore()
	ctx := context.Background()

	var hits, misses int
	store := NewCachedRunStore(inner, cache, WithObserver(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	}))

	r := sampleResult("run-3")
	data := mustJSON(t, r)

	mock.ExpectSet(cache.Key("run-3"), data, time.Minute).SetVal("OK")
	require.NoError(t, store.Insert(ctx, r))

	// miss: backing store answers and the cache is refilled
	mock.ExpectGet(cache.Key("run-3")).RedisNil()
	mock.ExpectSet(cache.Key("run-3"), data, time.Minute).SetVal("OK")
	got, err := store.GetByID(ctx, "run-3")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	// hit: served without touching the backing store
	mock.ExpectGet(cache.Key("run-3")).SetVal(string(data))
	got, err = store.GetByID(ctx, "run-3")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedRunStore_CacheFailureFallsBack(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewResultCache(db, time.Minute)
	inner := memory.NewRunStore()
	ctx := context.Background()

	r := sampleResult("run-4")
	require.NoError(t, inner.Insert(ctx, r))

	store := NewCachedRunStore(inner, cache)

	mock.ExpectGet(cache.Key("run-4")).SetErr(redis.TxFailedErr)
	mock.ExpectSet(cache.Key("run-4"), mustJSON(t, r), time.Minute).SetErr(redis.TxFailedErr)

	got, err := store.GetByID(ctx, "run-4")
	require.NoError(t, err)
	assert.Equal(t, "run-4", got.RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedRunStore_NotFoundAndDuplicate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewResultCache(db, time.Minute)
	inner := memory.NewRunStore()
	ctx := context.Background()
	store := NewCachedRunStore(inner, cache)

	mock.ExpectGet(cache.Key("nope")).RedisNil()
	_, err := store.GetByID(ctx, "nope")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	r := sampleResult("run-5")
	require.NoError(t, inner.Insert(ctx, r))
	err = store.Insert(ctx, r)
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))

	summaries, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}
