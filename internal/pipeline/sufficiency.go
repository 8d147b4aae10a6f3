package pipeline

import (
	"fmt"
	"math"
	"time"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/panel"
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string `json:"name"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
	Pass      bool   `json:"pass"`
}

// SufficiencyResult contains all checks. Failed checks do not stop a run;
// they explain degenerate output.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck `json:"checks"`
	AllPass bool               `json:"all_pass"`
}

// Warnings returns one message per failed check.
func (r SufficiencyResult) Warnings() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Pass {
			out = append(out, fmt.Sprintf("%s: %s (need %s)", c.Name, c.Actual, c.Threshold))
		}
	}
	return out
}

// CheckSufficiency inspects the window a run will use:
//
//   - window_rows: the window holds at least one row
//   - tickers: at least 2 tickers, so the long and short legs can differ
//   - history: some ticker has more than gap+mom_win observations
//   - signal_days: at least 2 dates carry a defined signal, so a lagged
//     weight is ever applied
//   - bucket_size: floor(tickers*quantile) >= 1, else buckets are forced to 1
func CheckSufficiency(window *panel.Panel, params domain.StrategyParams) SufficiencyResult {
	need := params.Gap + params.MomWin
	series := window.Series()

	maxObs := 0
	signalDates := make(map[time.Time]struct{})
	for _, s := range series {
		if len(s.Dates) > maxObs {
			maxObs = len(s.Dates)
		}
		for i := need; i < len(s.Dates); i++ {
			signalDates[s.Dates[i]] = struct{}{}
		}
	}

	tickers := len(series)
	bucket := int(math.Floor(float64(tickers) * params.Quantile))

	checks := []SufficiencyCheck{
		{
			Name:      "window_rows",
			Threshold: ">= 1",
			Actual:    fmt.Sprintf("%d", window.Len()),
			Pass:      window.Len() >= 1,
		},
		{
			Name:      "tickers",
			Threshold: ">= 2",
			Actual:    fmt.Sprintf("%d", tickers),
			Pass:      tickers >= 2,
		},
		{
			Name:      "history",
			Threshold: fmt.Sprintf("> %d observations", need),
			Actual:    fmt.Sprintf("%d", maxObs),
			Pass:      maxObs > need,
		},
		{
			Name:      "signal_days",
			Threshold: ">= 2",
			Actual:    fmt.Sprintf("%d", len(signalDates)),
			Pass:      len(signalDates) >= 2,
		},
		{
			Name:      "bucket_size",
			Threshold: ">= 1",
			Actual:    fmt.Sprintf("%d", bucket),
			Pass:      bucket >= 1,
		},
	}

	allPass := true
	for _, c := range checks {
		if !c.Pass {
			allPass = false
			break
		}
	}

	return SufficiencyResult{Checks: checks, AllPass: allPass}
}
