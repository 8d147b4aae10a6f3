package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/simulation"
	"equity-momentum-lab/internal/storage"
)

// RunStore implements storage.RunStore using SQLite.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, dataset_id, created_at, start_date, end_date,
	mom_win, gap, quantile, max_pos, tc_bps,
	cagr, vol, sharpe, max_dd, avg_turn, hit_rate,
	n_days
`

// Insert adds a run and its daily rows atomically. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.BacktestResult) error {
	if err := storage.CheckRun(r); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	p, m := r.Params, r.Metrics
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?
		)
	`,
		r.RunID, r.DatasetID, formatTime(r.CreatedAt), p.Start, p.End,
		p.MomWin, p.Gap, p.Quantile, p.MaxPos, p.TCBps,
		m.CAGR, m.Vol, m.Sharpe, m.MaxDrawdown, m.AvgTurnover, m.HitRate,
		r.NDays,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_daily (run_id, date, turnover, daily_ret, daily_cost, daily_pnl, equity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare daily insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range r.Daily {
		_, err := stmt.ExecContext(ctx, r.RunID, domain.FormatDate(d.Date),
			d.Turnover, d.DailyRet, d.DailyCost, d.DailyPnL, d.Equity)
		if err != nil {
			return fmt.Errorf("insert run daily row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a run with its daily series. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	summary, err := scanRunSummary(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}

	daily, err := s.daily(ctx, runID)
	if err != nil {
		return nil, err
	}

	return &domain.BacktestResult{
		RunID:        summary.RunID,
		DatasetID:    summary.DatasetID,
		CreatedAt:    summary.CreatedAt,
		Params:       summary.Params,
		Metrics:      summary.Metrics,
		EquitySeries: simulation.EquitySeries(daily),
		Daily:        daily,
		NDays:        summary.NDays,
	}, nil
}

// List returns run summaries ordered by created_at DESC.
func (s *RunStore) List(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, run_id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RunSummary, 0)
	for rows.Next() {
		summary, err := scanRunSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		out = append(out, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return out, nil
}

func (s *RunStore) daily(ctx context.Context, runID string) ([]domain.DailyResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, turnover, daily_ret, daily_cost, daily_pnl, equity
		FROM run_daily
		WHERE run_id = ?
		ORDER BY date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run daily rows: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DailyResult, 0)
	for rows.Next() {
		var d domain.DailyResult
		var date string
		if err := rows.Scan(&date, &d.Turnover, &d.DailyRet, &d.DailyCost, &d.DailyPnL, &d.Equity); err != nil {
			return nil, fmt.Errorf("scan run daily row: %w", err)
		}
		if d.Date, err = time.Parse(domain.DateLayout, date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run daily rows: %w", err)
	}
	return out, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRunSummary(row scanner) (*domain.RunSummary, error) {
	var r domain.RunSummary
	var createdAt string

	err := row.Scan(
		&r.RunID, &r.DatasetID, &createdAt, &r.Params.Start, &r.Params.End,
		&r.Params.MomWin, &r.Params.Gap, &r.Params.Quantile, &r.Params.MaxPos, &r.Params.TCBps,
		&r.Metrics.CAGR, &r.Metrics.Vol, &r.Metrics.Sharpe, &r.Metrics.MaxDrawdown, &r.Metrics.AvgTurnover, &r.Metrics.HitRate,
		&r.NDays,
	)
	if err != nil {
		return nil, err
	}

	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return &r, nil
}

var (
	_ scanner = (*sql.Row)(nil)
	_ scanner = (*sql.Rows)(nil)
)
