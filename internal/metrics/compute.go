package metrics

import (
	"math"

	"equity-momentum-lab/internal/domain"
)

// StddevFloor is the population stddev below which Sharpe is reported as 0.
const StddevFloor = 1e-12

// Compute derives run statistics from the daily simulation rows.
// Rows must be in chronological order. Empty input yields all-zero metrics.
func Compute(daily []domain.DailyResult) domain.Metrics {
	pnl := make([]float64, len(daily))
	equity := make([]float64, len(daily))
	turnover := make([]float64, len(daily))
	for i, d := range daily {
		pnl[i] = d.DailyPnL
		equity[i] = d.Equity
		turnover[i] = d.Turnover
	}
	return ComputeSeries(pnl, equity, turnover)
}

// ComputeSeries derives run statistics from parallel daily series.
// equity[i] must be the compounded value after pnl[i].
func ComputeSeries(pnl, equity, turnover []float64) domain.Metrics {
	n := len(pnl)
	if n == 0 {
		return domain.Metrics{AvgTurnover: computeMean(turnover)}
	}

	mean := computeMean(pnl)
	stddev := computePopulationStddev(pnl, mean)

	return domain.Metrics{
		CAGR:        computeCAGR(equity),
		Vol:         computeVol(stddev, n),
		Sharpe:      computeSharpe(mean, stddev),
		MaxDrawdown: computeMaxDrawdown(equity),
		AvgTurnover: computeMean(turnover),
		HitRate:     computeHitRate(pnl),
	}
}

// computeCAGR annualizes the final equity over len(equity) trading days.
// A non-positive final equity is a total loss and reported as -1.
func computeCAGR(equity []float64) float64 {
	n := len(equity)
	if n == 0 {
		return 0
	}
	last := equity[n-1]
	if last <= 0 {
		return -1
	}
	return math.Pow(last, domain.AnnualizationFactor/float64(n)) - 1
}

// computeVol annualizes the population stddev; needs at least 2 days.
func computeVol(stddev float64, n int) float64 {
	if n < 2 {
		return 0
	}
	return stddev * math.Sqrt(domain.AnnualizationFactor)
}

// computeSharpe is the annualized mean/stddev ratio, 0 for a flat series.
func computeSharpe(mean, stddev float64) float64 {
	if stddev <= StddevFloor {
		return 0
	}
	return mean / stddev * math.Sqrt(domain.AnnualizationFactor)
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computePopulationStddev calculates stddev with an n denominator.
func computePopulationStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n))
}

// computeMaxDrawdown returns min(equity/running_max - 1), a value <= 0.
// The running max starts at the first equity value.
func computeMaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0]
	maxDrawdown := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak == 0 {
			continue
		}
		if dd := e/peak - 1; dd < maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeHitRate is the fraction of days with strictly positive P&L.
func computeHitRate(pnl []float64) float64 {
	if len(pnl) == 0 {
		return 0
	}
	hits := 0
	for _, p := range pnl {
		if p > 0 {
			hits++
		}
	}
	return float64(hits) / float64(len(pnl))
}
