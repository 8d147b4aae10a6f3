// Package simulation applies lagged portfolio weights to returns and derives
// the daily P&L and equity of a backtest.
package simulation

import (
	"math"
	"sort"
	"time"

	"equity-momentum-lab/internal/domain"
)

// BpsPerUnit converts basis points to a fraction.
const BpsPerUnit = 10000.0

type key struct {
	ticker string
	date   time.Time
}

// Simulate runs the lagged-weight simulation.
//
// For each ticker, the weight of its previous observation is applied to the
// current return (the first observation has lagged weight 0). Per date:
//
//	turnover = sum |w - w_lag|
//	raw      = sum w_lag * ret   (NaN returns contribute 0)
//	cost     = tcBps / 10000 * turnover
//	pnl      = raw - cost
//	equity   = cumulative product of (1 + pnl)
//
// Returns are matched to weights by (ticker, date). The result has one row per
// distinct weight date, ascending; empty input yields nil.
func Simulate(weights []domain.WeightObservation, returns []domain.ReturnObservation, tcBps float64) []domain.DailyResult {
	if len(weights) == 0 {
		return nil
	}

	rets := make(map[key]float64, len(returns))
	for _, r := range returns {
		rets[key{r.Ticker, r.Date}] = r.Ret
	}

	ordered := make([]domain.WeightObservation, len(weights))
	copy(ordered, weights)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Ticker != ordered[j].Ticker {
			return ordered[i].Ticker < ordered[j].Ticker
		}
		return ordered[i].Date.Before(ordered[j].Date)
	})

	turnover := make(map[time.Time]float64)
	raw := make(map[time.Time]float64)
	for i, w := range ordered {
		lag := 0.0
		if i > 0 && ordered[i-1].Ticker == w.Ticker {
			lag = ordered[i-1].Weight
		}

		turnover[w.Date] += math.Abs(w.Weight - lag)

		if ret, ok := rets[key{w.Ticker, w.Date}]; ok && !math.IsNaN(ret) && !math.IsInf(ret, 0) {
			raw[w.Date] += lag * ret
		}
	}

	dates := make([]time.Time, 0, len(turnover))
	for d := range turnover {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]domain.DailyResult, len(dates))
	equity := 1.0
	for i, d := range dates {
		cost := tcBps / BpsPerUnit * turnover[d]
		pnl := raw[d] - cost
		equity *= 1 + pnl
		out[i] = domain.DailyResult{
			Date:      d,
			Turnover:  turnover[d],
			DailyRet:  raw[d],
			DailyCost: cost,
			DailyPnL:  pnl,
			Equity:    equity,
		}
	}

	return out
}

// EquitySeries extracts the (date, equity) sequence of daily.
func EquitySeries(daily []domain.DailyResult) []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(daily))
	for i, d := range daily {
		out[i] = domain.EquityPoint{Date: d.Date, Equity: d.Equity}
	}
	return out
}
