// Package reporting renders backtest runs as CSV, Markdown, SVG and PNG.
package reporting

import (
	"time"

	"equity-momentum-lab/internal/domain"
)

// Report is everything the run report shows about one stored run.
type Report struct {
	GeneratedAt time.Time

	Run *domain.BacktestResult

	// Dataset is the currently loaded dataset, nil when none is available.
	Dataset *domain.DatasetSummary

	// Monthly holds compounded P&L per calendar month, ascending.
	Monthly []MonthlyReturn

	// Checks are verification results attached by the caller.
	Checks []CheckRow
}

// MonthlyReturn is the compounded P&L of one calendar month.
type MonthlyReturn struct {
	Year   int
	Month  time.Month
	Return float64
	Days   int
}

// CheckRow represents one verification criterion.
type CheckRow struct {
	Name   string
	Detail string
	Pass   bool
}

// AllChecksPassed reports whether every attached check passed.
// A report without checks passes.
func (r *Report) AllChecksPassed() bool {
	for _, c := range r.Checks {
		if !c.Pass {
			return false
		}
	}
	return true
}

// MonthlyReturns compounds daily P&L per calendar month.
// daily must be in chronological order.
func MonthlyReturns(daily []domain.DailyResult) []MonthlyReturn {
	var out []MonthlyReturn
	for _, d := range daily {
		y, m, _ := d.Date.Date()
		n := len(out)
		if n == 0 || out[n-1].Year != y || out[n-1].Month != m {
			out = append(out, MonthlyReturn{Year: y, Month: m, Return: 1})
			n++
		}
		out[n-1].Return *= 1 + d.DailyPnL
		out[n-1].Days++
	}
	for i := range out {
		out[i].Return--
	}
	return out
}
