package reporting

import (
	"fmt"
	"strings"
	"time"

	"equity-momentum-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	run := r.Run

	// Header
	sb.WriteString(fmt.Sprintf("# Momentum Backtest %s\n\n", run.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run created: %s | Days: %d\n\n", run.CreatedAt.Format(time.RFC3339), run.NDays))

	// Dataset
	sb.WriteString("## Dataset\n\n")
	if r.Dataset != nil {
		sb.WriteString("| Field | Value |\n")
		sb.WriteString("|-------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Rows | %d |\n", r.Dataset.Rows))
		sb.WriteString(fmt.Sprintf("| Tickers | %d |\n", r.Dataset.Tickers))
		sb.WriteString(fmt.Sprintf("| Range | %s .. %s |\n", r.Dataset.Start, r.Dataset.End))
		if r.Dataset.DatasetID != "" {
			sb.WriteString(fmt.Sprintf("| Fingerprint | %s |\n", shortID(r.Dataset.DatasetID)))
		}
		if run.DatasetID != "" && run.DatasetID != r.Dataset.DatasetID {
			sb.WriteString("\nThe loaded dataset differs from the one this run used.\n")
		}
	} else {
		sb.WriteString("No dataset loaded.\n")
	}
	sb.WriteString("\n")

	// Parameters
	p := run.Params
	sb.WriteString("## Parameters\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| start | %s |\n", orDash(p.Start)))
	sb.WriteString(fmt.Sprintf("| end | %s |\n", orDash(p.End)))
	sb.WriteString(fmt.Sprintf("| mom_win | %d |\n", p.MomWin))
	sb.WriteString(fmt.Sprintf("| gap | %d |\n", p.Gap))
	sb.WriteString(fmt.Sprintf("| quantile | %.4f |\n", p.Quantile))
	sb.WriteString(fmt.Sprintf("| max_pos | %.4f |\n", p.MaxPos))
	sb.WriteString(fmt.Sprintf("| tc_bps | %.2f |\n", p.TCBps))
	sb.WriteString("\n")

	// Metrics
	m := run.Metrics
	sb.WriteString("## Metrics\n\n")
	sb.WriteString("| CAGR | Vol | Sharpe | MaxDD | AvgTurn | HitRate |\n")
	sb.WriteString("|------|-----|--------|-------|---------|---------|\n")
	sb.WriteString(fmt.Sprintf("| %.2f%% | %.2f%% | %.2f | %.2f%% | %.4f | %.2f%% |\n",
		m.CAGR*100, m.Vol*100, m.Sharpe, m.MaxDrawdown*100, m.AvgTurnover, m.HitRate*100))
	sb.WriteString("\n")

	// Equity
	sb.WriteString("## Equity\n\n")
	if n := len(run.EquitySeries); n > 0 {
		first, last := run.EquitySeries[0], run.EquitySeries[n-1]
		sb.WriteString(fmt.Sprintf("- First: %s %.6f\n", domain.FormatDate(first.Date), first.Equity))
		sb.WriteString(fmt.Sprintf("- Last: %s %.6f\n", domain.FormatDate(last.Date), last.Equity))
	} else {
		sb.WriteString("No simulated days.\n")
	}
	sb.WriteString("\n")

	// Monthly returns
	sb.WriteString("## Monthly Returns\n\n")
	if len(r.Monthly) > 0 {
		sb.WriteString("| Month | Return | Days |\n")
		sb.WriteString("|-------|--------|------|\n")
		for _, mr := range r.Monthly {
			sb.WriteString(fmt.Sprintf("| %04d-%02d | %.2f%% | %d |\n", mr.Year, int(mr.Month), mr.Return*100, mr.Days))
		}
	} else {
		sb.WriteString("No monthly returns available.\n")
	}
	sb.WriteString("\n")

	// Verification
	if len(r.Checks) > 0 {
		sb.WriteString("## Verification\n\n")
		sb.WriteString("| Check | Detail | Status |\n")
		sb.WriteString("|-------|--------|--------|\n")
		for _, c := range r.Checks {
			status := "FAIL"
			if c.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", c.Name, c.Detail, status))
		}
		sb.WriteString("\n")

		if r.AllChecksPassed() {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.**\n\n")
		}
	}

	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
