// Package verification checks stored backtest runs against recomputation.
// A run is verified two ways: its metrics are recomputed from its stored daily
// series, and, when the dataset it ran on is still loaded, the whole run is
// replayed through the engine and compared day by day.
package verification

import (
	"context"
	"fmt"
	"math"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/reporting"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and recomputed values.
type FieldDivergence struct {
	Field    string      `json:"field"`
	Expected interface{} `json:"expected"` // stored value
	Actual   interface{} `json:"actual"`   // recomputed value
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	RunID string `json:"run_id"`
	Match bool   `json:"match"` // true if every performed check matched

	// MetricDivergences compares stored metrics with metrics recomputed
	// from the stored daily series.
	MetricDivergences []FieldDivergence `json:"metric_divergences"`

	// Replayed is true when the engine was re-run on the loaded dataset.
	Replayed bool `json:"replayed"`
	// ReplaySkipped explains why no replay happened.
	ReplaySkipped string `json:"replay_skipped,omitempty"`
	// ReplayDivergences compares the stored run with the replayed one.
	ReplayDivergences []FieldDivergence `json:"replay_divergences"`
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int                  `json:"total_runs"`
	MatchedRuns   int                  `json:"matched_runs"`
	DivergentRuns int                  `json:"divergent_runs"`
	Results       []VerificationResult `json:"results"`
}

// Verifier verifies stored runs.
type Verifier interface {
	// VerifyRun verifies a single run by ID.
	VerifyRun(ctx context.Context, runID string) (*VerificationResult, error)

	// VerifyAll verifies the newest limit runs (all when limit <= 0).
	VerifyAll(ctx context.Context, limit int) (*VerificationReport, error)
}

// Checks renders the result as report rows.
func (r *VerificationResult) Checks() []reporting.CheckRow {
	rows := []reporting.CheckRow{{
		Name:   "metrics",
		Detail: divergenceDetail(r.MetricDivergences, "recomputed from stored series"),
		Pass:   len(r.MetricDivergences) == 0,
	}}

	if r.Replayed {
		rows = append(rows, reporting.CheckRow{
			Name:   "replay",
			Detail: divergenceDetail(r.ReplayDivergences, "engine re-run on loaded dataset"),
			Pass:   len(r.ReplayDivergences) == 0,
		})
	} else {
		rows = append(rows, reporting.CheckRow{
			Name:   "replay",
			Detail: "skipped: " + r.ReplaySkipped,
			Pass:   true,
		})
	}
	return rows
}

func divergenceDetail(d []FieldDivergence, ok string) string {
	switch len(d) {
	case 0:
		return ok
	case 1:
		return fmt.Sprintf("%s differs", d[0].Field)
	default:
		return fmt.Sprintf("%d fields differ, first %s", len(d), d[0].Field)
	}
}

// CompareMetrics compares two metric sets within FloatTolerance.
func CompareMetrics(stored, recomputed domain.Metrics) []FieldDivergence {
	var divergences []FieldDivergence

	fields := []struct {
		name string
		a, b float64
	}{
		{"cagr", stored.CAGR, recomputed.CAGR},
		{"vol", stored.Vol, recomputed.Vol},
		{"sharpe", stored.Sharpe, recomputed.Sharpe},
		{"max_dd", stored.MaxDrawdown, recomputed.MaxDrawdown},
		{"avg_turn", stored.AvgTurnover, recomputed.AvgTurnover},
		{"hit_rate", stored.HitRate, recomputed.HitRate},
	}
	for _, f := range fields {
		if !floatEquals(f.a, f.b) {
			divergences = append(divergences, FieldDivergence{Field: f.name, Expected: f.a, Actual: f.b})
		}
	}

	return divergences
}

// CompareDaily compares two daily series row by row.
// A length mismatch is reported once as n_days and stops the comparison.
func CompareDaily(stored, replayed []domain.DailyResult) []FieldDivergence {
	if len(stored) != len(replayed) {
		return []FieldDivergence{{Field: "n_days", Expected: len(stored), Actual: len(replayed)}}
	}

	var divergences []FieldDivergence
	for i := range stored {
		s, r := stored[i], replayed[i]
		prefix := fmt.Sprintf("daily[%d].", i)

		if !s.Date.Equal(r.Date) {
			divergences = append(divergences, FieldDivergence{
				Field:    prefix + "date",
				Expected: domain.FormatDate(s.Date),
				Actual:   domain.FormatDate(r.Date),
			})
		}

		fields := []struct {
			name string
			a, b float64
		}{
			{"turnover", s.Turnover, r.Turnover},
			{"daily_ret", s.DailyRet, r.DailyRet},
			{"daily_cost", s.DailyCost, r.DailyCost},
			{"daily_pnl", s.DailyPnL, r.DailyPnL},
			{"equity", s.Equity, r.Equity},
		}
		for _, f := range fields {
			if !floatEquals(f.a, f.b) {
				divergences = append(divergences, FieldDivergence{Field: prefix + f.name, Expected: f.a, Actual: f.b})
			}
		}
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
