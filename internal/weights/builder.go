package weights

import (
	"time"

	"equity-momentum-lab/internal/domain"
)

// Build computes weights for every signal observation by grouping the
// signals by date and running CrossSection on each date independently.
// Output is aligned with signals: one WeightObservation per input, same order.
func Build(signals []domain.SignalObservation, quantile, maxPos float64) []domain.WeightObservation {
	out := make([]domain.WeightObservation, len(signals))
	for i, s := range signals {
		out[i] = domain.WeightObservation{Date: s.Date, Ticker: s.Ticker}
	}

	for _, idx := range groupByDate(signals) {
		entries := make([]Entry, len(idx))
		for j, i := range idx {
			entries[j] = Entry{Ticker: signals[i].Ticker, Signal: signals[i].Signal}
		}
		w := CrossSection(entries, quantile, maxPos)
		for j, i := range idx {
			out[i].Weight = w[j]
		}
	}

	return out
}

// groupByDate returns, per distinct date, the indices of signals on that date.
// Groups appear in order of first occurrence.
func groupByDate(signals []domain.SignalObservation) [][]int {
	pos := make(map[time.Time]int)
	var groups [][]int
	for i, s := range signals {
		g, ok := pos[s.Date]
		if !ok {
			g = len(groups)
			pos[s.Date] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}
