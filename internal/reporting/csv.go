package reporting

import (
	"strconv"
	"strings"

	"equity-momentum-lab/internal/domain"
)

// RenderEquityCSV renders the per-run export: one date,daily_pnl,equity row
// per simulated date.
func RenderEquityCSV(r *domain.BacktestResult) string {
	var sb strings.Builder

	sb.WriteString("date,daily_pnl,equity\n")
	for _, d := range r.Daily {
		sb.WriteString(domain.FormatDate(d.Date))
		sb.WriteByte(',')
		sb.WriteString(formatFloat(d.DailyPnL))
		sb.WriteByte(',')
		sb.WriteString(formatFloat(d.Equity))
		sb.WriteByte('\n')
	}

	return sb.String()
}

// RenderDailyCSV renders every column of the daily series.
func RenderDailyCSV(r *domain.BacktestResult) string {
	var sb strings.Builder

	sb.WriteString("date,turnover,daily_ret,daily_cost,daily_pnl,equity\n")
	for _, d := range r.Daily {
		sb.WriteString(strings.Join([]string{
			domain.FormatDate(d.Date),
			formatFloat(d.Turnover),
			formatFloat(d.DailyRet),
			formatFloat(d.DailyCost),
			formatFloat(d.DailyPnL),
			formatFloat(d.Equity),
		}, ","))
		sb.WriteByte('\n')
	}

	return sb.String()
}

// RenderRunsCSV renders run summaries, one per row, in the given order.
func RenderRunsCSV(runs []domain.RunSummary) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,start,end,mom_win,gap,quantile,max_pos,tc_bps,")
	sb.WriteString("cagr,vol,sharpe,max_dd,avg_turn,hit_rate,n_days\n")

	// Rows
	for _, r := range runs {
		sb.WriteString(strings.Join([]string{
			r.RunID,
			r.Params.Start,
			r.Params.End,
			strconv.Itoa(r.Params.MomWin),
			strconv.Itoa(r.Params.Gap),
			formatFloat(r.Params.Quantile),
			formatFloat(r.Params.MaxPos),
			formatFloat(r.Params.TCBps),
			formatFloat(r.Metrics.CAGR),
			formatFloat(r.Metrics.Vol),
			formatFloat(r.Metrics.Sharpe),
			formatFloat(r.Metrics.MaxDrawdown),
			formatFloat(r.Metrics.AvgTurnover),
			formatFloat(r.Metrics.HitRate),
			strconv.Itoa(r.NDays),
		}, ","))
		sb.WriteByte('\n')
	}

	return sb.String()
}

// formatFloat uses the shortest representation that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
