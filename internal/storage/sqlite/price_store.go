package sqlite

import (
	"context"
	"fmt"
	"time"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using SQLite.
type PriceStore struct {
	db *DB
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(db *DB) *PriceStore {
	return &PriceStore{db: db}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// ReplaceAll swaps the dataset in one transaction.
func (s *PriceStore) ReplaceAll(ctx context.Context, info domain.DatasetSummary, obs []domain.PriceObservation) error {
	if err := storage.CheckObservations(obs); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM price_observations`); err != nil {
		return fmt.Errorf("clear price observations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_info`); err != nil {
		return fmt.Errorf("clear dataset info: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_observations (ticker, date, close, volume)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, o.Ticker, domain.FormatDate(o.Date), o.Close, o.Volume); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert price observation: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dataset_info (
			id, dataset_id, source_name, row_count, ticker_count, start_date, end_date, loaded_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?)
	`, info.DatasetID, info.SourceName, info.Rows, info.Tickers, info.Start, info.End, formatTime(info.LoadedAt))
	if err != nil {
		return fmt.Errorf("insert dataset info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetAll returns every observation ordered by (ticker, date).
func (s *PriceStore) GetAll(ctx context.Context) ([]domain.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		var date string
		if err := rows.Scan(&o.Ticker, &date, &o.Close, &o.Volume); err != nil {
			return nil, fmt.Errorf("scan price observation row: %w", err)
		}
		if o.Date, err = time.Parse(domain.DateLayout, date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
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
	var loadedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT dataset_id, source_name, row_count, ticker_count, start_date, end_date, loaded_at
		FROM dataset_info
		WHERE id = 1
	`).Scan(&info.DatasetID, &info.SourceName, &info.Rows, &info.Tickers, &info.Start, &info.End, &loadedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get dataset info: %w", err)
	}

	if info.LoadedAt, err = parseTime(loadedAt); err != nil {
		return nil, fmt.Errorf("parse loaded_at %q: %w", loadedAt, err)
	}
	return &info, nil
}
