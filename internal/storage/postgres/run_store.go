package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/simulation"
	"equity-momentum-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, dataset_id, created_at, start_date, end_date,
	mom_win, gap, quantile, max_pos, tc_bps,
	cagr, vol, sharpe, max_dd, avg_turn, hit_rate,
	n_days
`

var dailyColumns = []string{"run_id", "date", "turnover", "daily_ret", "daily_cost", "daily_pnl", "equity"}

// Insert adds a run and its daily rows atomically. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.BacktestResult) error {
	if err := storage.CheckRun(r); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, m := r.Params, r.Metrics
	_, err = tx.Exec(ctx, `
		INSERT INTO runs (`+runColumns+`) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16,
			$17
		)
	`,
		r.RunID, r.DatasetID, r.CreatedAt, p.Start, p.End,
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

	if len(r.Daily) > 0 {
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"run_daily"}, dailyColumns,
			pgx.CopyFromSlice(len(r.Daily), func(i int) ([]any, error) {
				d := r.Daily[i]
				return []any{r.RunID, d.Date, d.Turnover, d.DailyRet, d.DailyCost, d.DailyPnL, d.Equity}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy run daily rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a run with its daily series. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestResult, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = $1`, runID)
	summary, err := scanRunSummary(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT date, turnover, daily_ret, daily_cost, daily_pnl, equity
		FROM run_daily
		WHERE run_id = $1
		ORDER BY date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run daily rows: %w", err)
	}
	defer rows.Close()

	daily, err := scanDailyRows(rows)
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
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
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

// scanRunSummary scans a single runs row.
func scanRunSummary(row pgx.Row) (*domain.RunSummary, error) {
	var r domain.RunSummary

	err := row.Scan(
		&r.RunID, &r.DatasetID, &r.CreatedAt, &r.Params.Start, &r.Params.End,
		&r.Params.MomWin, &r.Params.Gap, &r.Params.Quantile, &r.Params.MaxPos, &r.Params.TCBps,
		&r.Metrics.CAGR, &r.Metrics.Vol, &r.Metrics.Sharpe, &r.Metrics.MaxDrawdown, &r.Metrics.AvgTurnover, &r.Metrics.HitRate,
		&r.NDays,
	)
	if err != nil {
		return nil, err
	}

	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

// scanDailyRows scans run_daily rows.
func scanDailyRows(rows pgx.Rows) ([]domain.DailyResult, error) {
	out := make([]domain.DailyResult, 0)

	for rows.Next() {
		var d domain.DailyResult
		if err := rows.Scan(&d.Date, &d.Turnover, &d.DailyRet, &d.DailyCost, &d.DailyPnL, &d.Equity); err != nil {
			return nil, fmt.Errorf("scan run daily row: %w", err)
		}
		d.Date = domain.NormalizeDate(d.Date)
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run daily rows: %w", err)
	}
	return out, nil
}
