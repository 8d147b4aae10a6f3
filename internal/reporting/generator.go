package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"equity-momentum-lab/internal/storage"
)

// Generator produces reports from stored runs.
type Generator struct {
	runStore   storage.RunStore
	priceStore storage.PriceStore // optional
	now        func() time.Time   // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. priceStore may be nil.
func NewGenerator(runStore storage.RunStore, priceStore storage.PriceStore) *Generator {
	return &Generator{
		runStore:   runStore,
		priceStore: priceStore,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report of runID.
// Returns storage.ErrNotFound if the run does not exist.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	report := &Report{
		GeneratedAt: g.now(),
		Run:         run,
		Monthly:     MonthlyReturns(run.Daily),
	}

	if g.priceStore != nil {
		info, err := g.priceStore.Summary(ctx)
		switch {
		case err == nil:
			report.Dataset = info
		case errors.Is(err, storage.ErrNotFound):
		default:
			return nil, fmt.Errorf("load dataset summary: %w", err)
		}
	}

	return report, nil
}
