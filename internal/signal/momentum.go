// Package signal computes per-ticker momentum signals from a price panel.
package signal

import (
	"math"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/panel"
)

// Momentum computes, for every observation of p,
//
//	signal(t) = close(t-gap) / close(t-gap-momWin) - 1
//
// where offsets count the ticker's own observations, not calendar days.
// The signal is NaN until the ticker has gap+momWin prior observations, and
// when the ratio is not finite. Output follows panel order (ticker, date).
func Momentum(p *panel.Panel, momWin, gap int) []domain.SignalObservation {
	out := make([]domain.SignalObservation, 0, p.Len())
	for _, s := range p.Series() {
		for i := range s.Closes {
			out = append(out, domain.SignalObservation{
				Date:   s.Dates[i],
				Ticker: s.Ticker,
				Signal: lagRatio(s.Closes, i, momWin, gap),
			})
		}
	}
	return out
}

// lagRatio returns closes[i-gap]/closes[i-gap-momWin] - 1, or NaN when
// the lookback reaches before the first observation.
func lagRatio(closes []float64, i, momWin, gap int) float64 {
	num := i - gap
	den := num - momWin
	if den < 0 || num < 0 {
		return math.NaN()
	}
	v := closes[num]/closes[den] - 1
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
