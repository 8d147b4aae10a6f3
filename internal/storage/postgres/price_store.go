package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

var priceColumns = []string{"ticker", "date", "close", "volume"}

// ReplaceAll swaps the dataset in one transaction.
func (s *PriceStore) ReplaceAll(ctx context.Context, info domain.DatasetSummary, obs []domain.PriceObservation) error {
	if err := storage.CheckObservations(obs); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE price_observations, dataset_info`); err != nil {
		return fmt.Errorf("truncate dataset: %w", err)
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"price_observations"}, priceColumns,
		pgx.CopyFromSlice(len(obs), func(i int) ([]any, error) {
			o := obs[i]
			return []any{o.Ticker, domain.NormalizeDate(o.Date), o.Close, o.Volume}, nil
		}),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy price observations: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO dataset_info (
			id, dataset_id, source_name, row_count, ticker_count, start_date, end_date, loaded_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7)
	`, info.DatasetID, info.SourceName, info.Rows, info.Tickers, info.Start, info.End, info.LoadedAt)
	if err != nil {
		return fmt.Errorf("insert dataset info: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetAll returns every observation ordered by (ticker, date).
func (s *PriceStore) GetAll(ctx context.Context) ([]domain.PriceObservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticker, date, close, volume
		FROM price_observations
		ORDER BY ticker ASC, date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get all price observations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PriceObservation, 0)
	for rows.Next() {
		var o domain.PriceObservation
		if err := rows.Scan(&o.Ticker, &o.Date, &o.Close, &o.Volume); err != nil {
			return nil, fmt.Errorf("scan price observation row: %w", err)
		}
		o.Date = domain.NormalizeDate(o.Date)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price observation rows: %w", err)
	}
	return out, nil
}

// Summary returns the summary of the current dataset.
func (s *PriceStore) Summary(ctx context.Context) (*domain.DatasetSummary, error) {
	var info domain.DatasetSummary

	err := s.pool.QueryRow(ctx, `
		SELECT dataset_id, source_name, row_count, ticker_count, start_date, end_date, loaded_at
		FROM dataset_info
		WHERE id = 1
	`).Scan(&info.DatasetID, &info.SourceName, &info.Rows, &info.Tickers, &info.Start, &info.End, &info.LoadedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get dataset info: %w", err)
	}

	info.LoadedAt = info.LoadedAt.UTC()
	return &info, nil
}
