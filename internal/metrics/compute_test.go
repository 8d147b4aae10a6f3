package metrics

import (
	"math"
	"testing"
	"time"

	"equity-momentum-lab/internal/domain"
)

const eps = 1e-12

func dailyFromPnL(pnl []float64) []domain.DailyResult {
	out := make([]domain.DailyResult, len(pnl))
	equity := 1.0
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range pnl {
		equity *= 1 + p
		out[i] = domain.DailyResult{
			Date:     day.AddDate(0, 0, i),
			DailyRet: p,
			DailyPnL: p,
			Equity:   equity,
		}
	}
	return out
}

func TestCompute_EmptyIsAllZero(t *testing.T) {
	m := Compute(nil)
	if m != (domain.Metrics{}) {
		t.Errorf("expected zero metrics, got %+v", m)
	}
}

func TestCompute_SingleDay(t *testing.T) {
	m := Compute(dailyFromPnL([]float64{0.01}))

	// CAGR = 1.01^252 - 1
	want := math.Pow(1.01, 252) - 1
	if math.Abs(m.CAGR-want) > 1e-9 {
		t.Errorf("expected CAGR %f, got %f", want, m.CAGR)
	}
	// Vol needs N > 1
	if m.Vol != 0 {
		t.Errorf("expected Vol 0, got %f", m.Vol)
	}
	// single value has zero stddev -> Sharpe guarded
	if m.Sharpe != 0 {
		t.Errorf("expected Sharpe 0, got %f", m.Sharpe)
	}
	if m.HitRate != 1 {
		t.Errorf("expected HitRate 1, got %f", m.HitRate)
	}
}

func TestCompute_FlatSeries(t *testing.T) {
	m := Compute(dailyFromPnL([]float64{0, 0, 0, 0}))

	if m.CAGR != 0 || m.Vol != 0 || m.Sharpe != 0 || m.MaxDrawdown != 0 || m.HitRate != 0 {
		t.Errorf("expected all-zero metrics for flat series, got %+v", m)
	}
}

func TestCompute_KnownValues(t *testing.T) {
	pnl := []float64{0.01, -0.02, 0.03, 0}
	daily := dailyFromPnL(pnl)
	for i := range daily {
		daily[i].Turnover = float64(i) // 0,1,2,3
	}

	m := Compute(daily)

	mean := 0.005
	// population variance: (0.005^2 + 0.025^2 + 0.025^2 + 0.005^2) / 4
	std := math.Sqrt((0.000025 + 0.000625 + 0.000625 + 0.000025) / 4)

	if math.Abs(m.Vol-std*math.Sqrt(252)) > eps {
		t.Errorf("expected Vol %f, got %f", std*math.Sqrt(252), m.Vol)
	}
	if math.Abs(m.Sharpe-mean/std*math.Sqrt(252)) > 1e-9 {
		t.Errorf("expected Sharpe %f, got %f", mean/std*math.Sqrt(252), m.Sharpe)
	}
	if m.AvgTurnover != 1.5 {
		t.Errorf("expected AvgTurnover 1.5, got %f", m.AvgTurnover)
	}
	// 2 of 4 days strictly positive
	if m.HitRate != 0.5 {
		t.Errorf("expected HitRate 0.5, got %f", m.HitRate)
	}

	final := daily[len(daily)-1].Equity
	wantCAGR := math.Pow(final, 252.0/4) - 1
	if math.Abs(m.CAGR-wantCAGR) > 1e-9 {
		t.Errorf("expected CAGR %f, got %f", wantCAGR, m.CAGR)
	}

	// peak 1.01 then 1.01*0.98
	if math.Abs(m.MaxDrawdown-(-0.02)) > eps {
		t.Errorf("expected MaxDrawdown -0.02, got %f", m.MaxDrawdown)
	}
}

func TestComputeMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		equity []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"monotonic up", []float64{1, 1.1, 1.2}, 0},
		{"single dip", []float64{1, 1.2, 0.9, 1.3}, 0.9/1.2 - 1},
		{"deepest of two", []float64{1, 0.8, 1.5, 0.75}, -0.5},
		{"starts below one", []float64{0.9, 0.95, 0.85}, 0.85/0.95 - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeMaxDrawdown(tt.equity)
			if math.Abs(got-tt.want) > eps {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestComputeCAGR_TotalLoss(t *testing.T) {
	if got := computeCAGR([]float64{0.5, -0.1}); got != -1 {
		t.Errorf("expected -1 for non-positive final equity, got %f", got)
	}
}

func TestComputeSeries_MatchesCompute(t *testing.T) {
	daily := dailyFromPnL([]float64{0.004, -0.001, 0.002, 0.0005, -0.003})

	pnl := make([]float64, len(daily))
	equity := make([]float64, len(daily))
	turnover := make([]float64, len(daily))
	for i, d := range daily {
		pnl[i] = d.DailyPnL
		equity[i] = d.Equity
		turnover[i] = d.Turnover
	}

	if Compute(daily) != ComputeSeries(pnl, equity, turnover) {
		t.Error("Compute and ComputeSeries disagree on identical input")
	}
}

func TestCompute_TotalLossCAGR(t *testing.T) {
	// equity 0.5 then -0.1: the power formula would be NaN
	m := Compute(dailyFromPnL([]float64{-0.5, -1.2}))
	if m.CAGR != -1 {
		t.Errorf("expected CAGR -1, got %f", m.CAGR)
	}
	if math.IsNaN(m.Sharpe) || math.IsNaN(m.MaxDrawdown) {
		t.Errorf("expected finite metrics, got %+v", m)
	}
}
