package reporting

import (
	"errors"
	"fmt"

	charts "github.com/vicanso/go-charts/v2"

	"equity-momentum-lab/internal/domain"
)

// ErrEmptySeries is returned when a chart is requested for a run without days.
var ErrEmptySeries = errors.New("equity series is empty")

// RenderChartPNG draws the equity curve of r as a PNG line chart.
func RenderChartPNG(r *domain.BacktestResult) ([]byte, error) {
	if len(r.EquitySeries) == 0 {
		return nil, ErrEmptySeries
	}

	xLabels := make([]string, len(r.EquitySeries))
	values := make([]float64, len(r.EquitySeries))
	minVal, maxVal := r.EquitySeries[0].Equity, r.EquitySeries[0].Equity
	for i, p := range r.EquitySeries {
		xLabels[i] = domain.FormatDate(p.Date)
		values[i] = p.Equity
		if p.Equity < minVal {
			minVal = p.Equity
		}
		if p.Equity > maxVal {
			maxVal = p.Equity
		}
	}

	// Calculate Y-axis range with padding
	padding := (maxVal - minVal) * 0.05
	if padding == 0 {
		padding = maxVal * 0.05
	}
	if padding == 0 {
		padding = 0.05
	}
	yMin := minVal - padding
	yMax := maxVal + padding

	splitNum := 6
	if len(xLabels) <= 30 {
		splitNum = len(xLabels) / 3
		if splitNum < 3 {
			splitNum = 3
		}
	}

	m := r.Metrics
	title := fmt.Sprintf("Momentum L/S equity (%s)", r.RunID)
	subtitle := fmt.Sprintf("CAGR: %.2f%% | Sharpe: %.2f | Vol: %.2f%% | MaxDD: %.2f%%",
		m.CAGR*100, m.Sharpe, m.Vol*100, m.MaxDrawdown*100)

	p, err := charts.LineRender(
		[][]float64{values},
		charts.PNGTypeOption(),
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(int(ChartWidth)),
		charts.HeightOptionFunc(400),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}
