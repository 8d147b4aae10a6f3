// Package weights turns per-date signal cross-sections into dollar-neutral
// long/short portfolio weights.
package weights

import (
	"math"
	"sort"
)

// SideGross is the absolute gross exposure targeted on each side of the book.
const SideGross = 0.5

// Entry is one ticker of a single date's cross-section.
type Entry struct {
	Ticker string
	Signal float64
}

// CrossSection computes weights for one date. The result is aligned with
// entries: result[i] is the weight of entries[i].
//
// Steps:
//  1. drop NaN signals; none left -> all zero
//  2. k = max(1, floor(n*quantile))
//  3. lowest k short, highest k long; shorts are assigned after longs, so a
//     ticker in both buckets ends up short
//  4. equal weight +1/|longs|, -1/|shorts|
//  5. clip to [-maxPos, maxPos]
//  6. rescale each non-empty side to a gross of SideGross
//
// Step 6 may push a weight back above maxPos; that is accepted.
func CrossSection(entries []Entry, quantile, maxPos float64) []float64 {
	w := make([]float64, len(entries))

	eligible := make([]int, 0, len(entries))
	for i, e := range entries {
		if !math.IsNaN(e.Signal) {
			eligible = append(eligible, i)
		}
	}
	n := len(eligible)
	if n == 0 {
		return w
	}

	k := int(math.Floor(float64(n) * quantile))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	// Ascending by signal; ties broken by ticker for a deterministic order.
	sort.SliceStable(eligible, func(a, b int) bool {
		ea, eb := entries[eligible[a]], entries[eligible[b]]
		if ea.Signal != eb.Signal {
			return ea.Signal < eb.Signal
		}
		return ea.Ticker < eb.Ticker
	})

	shorts := eligible[:k]
	longs := eligible[n-k:]

	for _, i := range longs {
		w[i] = 1.0 / float64(len(longs))
	}
	for _, i := range shorts {
		w[i] = -1.0 / float64(len(shorts))
	}

	for i := range w {
		w[i] = clip(w[i], maxPos)
	}

	renormalize(w)
	return w
}

// clip bounds v to [-limit, limit].
func clip(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// renormalize scales positive weights to sum to +SideGross and negative
// weights to sum to -SideGross. A side with zero sum is left at zero.
func renormalize(w []float64) {
	pos, neg := 0.0, 0.0
	for _, v := range w {
		if v > 0 {
			pos += v
		} else if v < 0 {
			neg -= v
		}
	}
	for i, v := range w {
		switch {
		case v > 0 && pos > 0:
			w[i] = v / pos * SideGross
		case v < 0 && neg > 0:
			w[i] = v / neg * SideGross
		}
	}
}
