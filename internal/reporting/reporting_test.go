package reporting

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/storage"
	"equity-momentum-lab/internal/storage/memory"
)

var day0 = time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)

func testRun() *domain.BacktestResult {
	pnl := []float64{0, 0.01, -0.02, 0.03}
	dates := []time.Time{day0, day0.AddDate(0, 0, 1), day0.AddDate(0, 0, 2), day0.AddDate(0, 0, 3)}

	r := &domain.BacktestResult{
		RunID:     "run-abc",
		DatasetID: "ds-1",
		CreatedAt: time.Date(2024, 2, 5, 12, 0, 0, 0, time.UTC),
		Params: domain.ResolvedParams{
			Start:          "2024-01-30",
			End:            "2024-02-02",
			StrategyParams: domain.DefaultStrategyParams(),
		},
		Metrics: domain.Metrics{CAGR: 0.12, Vol: 0.2, Sharpe: 0.6, MaxDrawdown: -0.02, AvgTurnover: 0.5, HitRate: 0.5},
		NDays:   len(pnl),
	}
	equity := 1.0
	for i, p := range pnl {
		equity *= 1 + p
		r.Daily = append(r.Daily, domain.DailyResult{Date: dates[i], DailyPnL: p, DailyRet: p, Equity: equity})
		r.EquitySeries = append(r.EquitySeries, domain.EquityPoint{Date: dates[i], Equity: equity})
	}
	return r
}

func TestRenderEquityCSV(t *testing.T) {
	r := &domain.BacktestResult{
		Daily: []domain.DailyResult{
			{Date: day0, DailyPnL: 0, Equity: 1},
			{Date: day0.AddDate(0, 0, 1), DailyPnL: 0.01, Equity: 1.01},
		},
	}

	want := "date,daily_pnl,equity\n2024-01-30,0,1\n2024-01-31,0.01,1.01\n"
	if got := RenderEquityCSV(r); got != want {
		t.Errorf("unexpected csv:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderEquityCSV_Empty(t *testing.T) {
	if got := RenderEquityCSV(&domain.BacktestResult{}); got != "date,daily_pnl,equity\n" {
		t.Errorf("expected header only, got %q", got)
	}
}

func TestRenderDailyCSV(t *testing.T) {
	csv := RenderDailyCSV(testRun())
	lines := strings.Split(strings.TrimSpace(csv), "\n")

	if len(lines) != 5 {
		t.Fatalf("expected header + 4 rows, got %d lines", len(lines))
	}
	if lines[0] != "date,turnover,daily_ret,daily_cost,daily_pnl,equity" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "2024-01-31,0,0.01,0,0.01,") {
		t.Errorf("unexpected row %q", lines[2])
	}
}

func TestRenderRunsCSV(t *testing.T) {
	csv := RenderRunsCSV([]domain.RunSummary{testRun().Summary()})

	if !strings.HasPrefix(csv, "run_id,start,end,mom_win,gap,quantile,max_pos,tc_bps,cagr,") {
		t.Errorf("unexpected header in %q", csv)
	}
	if !strings.Contains(csv, "run-abc,2024-01-30,2024-02-02,60,5,0.2,0.02,10,0.12,0.2,0.6,-0.02,0.5,0.5,4\n") {
		t.Errorf("unexpected row in %q", csv)
	}
}

func TestPolyline(t *testing.T) {
	point := func(e float64) domain.EquityPoint { return domain.EquityPoint{Date: day0, Equity: e} }

	tests := []struct {
		name   string
		series []domain.EquityPoint
		want   string
	}{
		{"empty", nil, ""},
		{"single point", []domain.EquityPoint{point(1)}, "20.0,240.0"},
		{"rising", []domain.EquityPoint{point(1), point(2)}, "20.0,240.0 880.0,20.0"},
		{"flat", []domain.EquityPoint{point(1), point(1), point(1)}, "20.0,240.0 450.0,240.0 880.0,240.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Polyline(tt.series, ChartWidth, ChartHeight); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderSVG(t *testing.T) {
	svg := RenderSVG(testRun())

	if !strings.HasPrefix(svg, `<svg xmlns="http://www.w3.org/2000/svg" width="900" height="260"`) {
		t.Errorf("unexpected svg header: %q", svg)
	}
	if !strings.Contains(svg, `<polyline fill="none"`) {
		t.Error("expected polyline element")
	}

	empty := RenderSVG(&domain.BacktestResult{RunID: "x"})
	if strings.Contains(empty, "<polyline") {
		t.Error("expected no polyline for empty series")
	}
}

func TestRenderChartPNG(t *testing.T) {
	png, err := RenderChartPNG(testRun())
	if err != nil {
		t.Fatalf("RenderChartPNG failed: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("expected PNG signature")
	}

	if _, err := RenderChartPNG(&domain.BacktestResult{}); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", err)
	}
}

func TestMonthlyReturns(t *testing.T) {
	monthly := MonthlyReturns(testRun().Daily)

	if len(monthly) != 2 {
		t.Fatalf("expected 2 months, got %d", len(monthly))
	}
	if monthly[0].Month != time.January || monthly[0].Days != 2 {
		t.Errorf("unexpected first month %+v", monthly[0])
	}
	if math.Abs(monthly[0].Return-0.01) > 1e-12 {
		t.Errorf("expected January return 0.01, got %f", monthly[0].Return)
	}
	want := 0.98*1.03 - 1
	if monthly[1].Month != time.February || math.Abs(monthly[1].Return-want) > 1e-12 {
		t.Errorf("unexpected February %+v", monthly[1])
	}

	if MonthlyReturns(nil) != nil {
		t.Error("expected nil for empty input")
	}
}

func TestGenerator_Generate(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewRunStore()
	prices := memory.NewPriceStore()

	run := testRun()
	if err := runs.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	gen := NewGenerator(runs, prices).WithClock(func() time.Time { return fixed })

	report, err := gen.Generate(ctx, "run-abc")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !report.GeneratedAt.Equal(fixed) {
		t.Errorf("expected injected clock, got %v", report.GeneratedAt)
	}
	if report.Dataset != nil {
		t.Error("expected no dataset summary on empty price store")
	}
	if len(report.Monthly) != 2 {
		t.Errorf("expected 2 monthly rows, got %d", len(report.Monthly))
	}

	obs := []domain.PriceObservation{{Date: day0, Ticker: "AAPL", Close: 100, Volume: 1}}
	info := domain.DatasetSummary{Rows: 1, Tickers: 1, Start: "2024-01-30", End: "2024-01-30", DatasetID: "ds-2"}
	if err := prices.ReplaceAll(ctx, info, obs); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	report, err = gen.Generate(ctx, "run-abc")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.Dataset == nil || report.Dataset.DatasetID != "ds-2" {
		t.Errorf("expected dataset summary, got %+v", report.Dataset)
	}

	if _, err := gen.Generate(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	report := &Report{
		GeneratedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Run:         testRun(),
		Dataset:     &domain.DatasetSummary{Rows: 10, Tickers: 2, Start: "2024-01-01", End: "2024-02-02", DatasetID: "ds-other"},
		Monthly:     MonthlyReturns(testRun().Daily),
		Checks: []CheckRow{
			{Name: "metrics", Detail: "recomputed", Pass: true},
			{Name: "replay", Detail: "2 rows differ", Pass: false},
		},
	}

	md := RenderMarkdown(report)

	for _, want := range []string{
		"# Momentum Backtest run-abc",
		"Generated: 2024-03-01T00:00:00Z",
		"| mom_win | 60 |",
		"| 12.00% | 20.00% | 0.60 | -2.00% | 0.5000 | 50.00% |",
		"- First: 2024-01-30 1.000000",
		"| 2024-01 | 1.00% | 2 |",
		"The loaded dataset differs",
		"| replay | 2 rows differ | FAIL |",
		"**Some checks failed.**",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderMarkdown_EmptyRun(t *testing.T) {
	md := RenderMarkdown(&Report{Run: &domain.BacktestResult{RunID: "empty"}})

	for _, want := range []string{"No dataset loaded.", "| start | - |", "No simulated days.", "No monthly returns available."} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "## Verification") {
		t.Error("expected no verification section without checks")
	}
}
