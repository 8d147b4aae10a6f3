package clickhouse

import (
	"context"
	"fmt"
	"time"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse.
//
// ClickHouse has no multi-table transactions: ReplaceAll truncates and then
// inserts, so a failed batch leaves the store empty rather than on the
// previous dataset.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// ReplaceAll truncates the panel and writes obs in one batch.
// Duplicates are rejected before anything is written; MergeTree does not
// enforce uniqueness.
func (s *PriceStore) ReplaceAll(ctx context.Context, info domain.DatasetSummary, obs []domain.PriceObservation) error {
	if err := storage.CheckObservations(obs); err != nil {
		return err
	}

	for _, table := range []string{"price_panel", "dataset_info"} {
		if err := s.conn.Exec(ctx, "TRUNCATE TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_panel (ticker, date, close, volume)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range obs {
		if err := batch.Append(o.Ticker, domain.NormalizeDate(o.Date), o.Close, o.Volume); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO dataset_info (
			dataset_id, source_name, row_count, ticker_count, start_date, end_date, loaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, info.DatasetID, info.SourceName, uint64(info.Rows), uint64(info.Tickers), info.Start, info.End, info.LoadedAt)
	if err != nil {
		return fmt.Errorf("insert dataset info: %w", err)
	}

	return nil
}

// GetAll returns every observation ordered by (ticker, date).
func (s *PriceStore) GetAll(ctx context.Context) ([]domain.PriceObservation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT ticker, date, close, volume
		FROM price_panel
		ORDER BY ticker ASC, date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query price panel: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// Summary returns the summary of the latest load.
func (s *PriceStore) Summary(ctx context.Context) (*domain.DatasetSummary, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT dataset_id, source_name, row_count, ticker_count, start_date, end_date, loaded_at
		FROM dataset_info
		ORDER BY loaded_at DESC
		LIMIT 1
	`)
	if err != nil {
		return nil, fmt.Errorf("query dataset info: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate dataset info: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var info domain.DatasetSummary
	var rowCount, tickerCount uint64
	var loadedAt time.Time
	if err := rows.Scan(&info.DatasetID, &info.SourceName, &rowCount, &tickerCount, &info.Start, &info.End, &loadedAt); err != nil {
		return nil, fmt.Errorf("scan dataset info: %w", err)
	}
	info.Rows = int(rowCount)
	info.Tickers = int(tickerCount)
	info.LoadedAt = loadedAt.UTC()
	return &info, nil
}

// chRows is the subset of driver.Rows used for scanning.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanObservations scans price_panel rows.
func scanObservations(rows chRows) ([]domain.PriceObservation, error) {
	out := make([]domain.PriceObservation, 0)

	for rows.Next() {
		var o domain.PriceObservation
		if err := rows.Scan(&o.Ticker, &o.Date, &o.Close, &o.Volume); err != nil {
			return nil, fmt.Errorf("scan price panel row: %w", err)
		}
		o.Date = domain.NormalizeDate(o.Date)
		out = append(out, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price panel rows: %w", err)
	}
	return out, nil
}
