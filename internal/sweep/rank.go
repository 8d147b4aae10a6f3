package sweep

import (
	"fmt"
	"sort"

	"equity-momentum-lab/internal/domain"
)

// RankKey selects the metric results are ranked by.
type RankKey string

// Supported rank keys. Higher is better for all of them; max_dd is <= 0.
const (
	RankSharpe  RankKey = "sharpe"
	RankCAGR    RankKey = "cagr"
	RankMaxDD   RankKey = "max_dd"
	RankHitRate RankKey = "hit_rate"
)

// ParseRankKey validates s. An empty string selects RankSharpe.
func ParseRankKey(s string) (RankKey, error) {
	switch k := RankKey(s); k {
	case "":
		return RankSharpe, nil
	case RankSharpe, RankCAGR, RankMaxDD, RankHitRate:
		return k, nil
	default:
		return "", fmt.Errorf("unknown rank key %q", s)
	}
}

func (k RankKey) value(m domain.Metrics) float64 {
	switch k {
	case RankCAGR:
		return m.CAGR
	case RankMaxDD:
		return m.MaxDrawdown
	case RankHitRate:
		return m.HitRate
	default:
		return m.Sharpe
	}
}

// Rank returns run summaries best first. Ties keep their input order.
func Rank(results []*domain.BacktestResult, by RankKey) []domain.RunSummary {
	out := make([]domain.RunSummary, len(results))
	for i, r := range results {
		out[i] = r.Summary()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return by.value(out[i].Metrics) > by.value(out[j].Metrics)
	})
	return out
}
