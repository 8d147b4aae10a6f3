package reporting

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"equity-momentum-lab/internal/domain"
)

// Default chart geometry.
const (
	ChartWidth  = 900.0
	ChartHeight = 260.0
	ChartMargin = 20.0

	// normGuard keeps a flat or single-point series from dividing by zero.
	normGuard = 1e-9
)

// Polyline returns the SVG polyline points of series in a width x height
// viewBox: x spaced by index, y inverted and min/max normalised, both inside
// a ChartMargin border. Points are "x,y" pairs with one decimal, separated by
// spaces. An empty series yields "".
func Polyline(series []domain.EquityPoint, width, height float64) string {
	n := len(series)
	if n == 0 {
		return ""
	}

	yMin, yMax := series[0].Equity, series[0].Equity
	for _, p := range series {
		if p.Equity < yMin {
			yMin = p.Equity
		}
		if p.Equity > yMax {
			yMax = p.Equity
		}
	}

	xSpan := float64(n-1) + normGuard
	ySpan := yMax - yMin + normGuard
	plotW := width - 2*ChartMargin
	plotH := height - 2*ChartMargin

	points := make([]string, n)
	for i, p := range series {
		x := float64(i)/xSpan*plotW + ChartMargin
		y := (1-(p.Equity-yMin)/ySpan)*plotH + ChartMargin
		points[i] = strconv.FormatFloat(x, 'f', 1, 64) + "," + strconv.FormatFloat(y, 'f', 1, 64)
	}
	return strings.Join(points, " ")
}

// RenderSVG renders the equity curve of r as a standalone SVG document.
func RenderSVG(r *domain.BacktestResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		int(ChartWidth), int(ChartHeight), int(ChartWidth), int(ChartHeight)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  <title>equity %s</title>\n", html.EscapeString(r.RunID)))
	sb.WriteString(fmt.Sprintf(`  <rect x="0" y="0" width="%d" height="%d" fill="#ffffff"/>`, int(ChartWidth), int(ChartHeight)))
	sb.WriteString("\n")
	if points := Polyline(r.EquitySeries, ChartWidth, ChartHeight); points != "" {
		sb.WriteString(fmt.Sprintf(`  <polyline fill="none" stroke="#1f77b4" stroke-width="2" points="%s"/>`, points))
		sb.WriteString("\n")
	}
	sb.WriteString("</svg>\n")

	return sb.String()
}
