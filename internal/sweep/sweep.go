package sweep

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"equity-momentum-lab/internal/backtest"
	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/panel"
)

// Run backtests every parameter set over the [start, end] window of p, with
// at most limit runs in flight (limit <= 0 uses GOMAXPROCS). The panel is
// filtered once and shared read-only. Results are in combos order.
// Cancelling ctx stops runs that have not started yet.
func Run(
	ctx context.Context,
	engine *backtest.Engine,
	p *panel.Panel,
	start, end *time.Time,
	combos []domain.StrategyParams,
	limit int,
) ([]*domain.BacktestResult, error) {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	window := p.Filter(start, end)
	results := make([]*domain.BacktestResult, len(combos))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, params := range combos {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := engine.Run(window, domain.RunRequest{StrategyParams: params})
			if err != nil {
				return fmt.Errorf("grid point %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
