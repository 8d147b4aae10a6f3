// Package panel holds the normalized long-format price panel the engine runs on.
package panel

import (
	"math"
	"sort"
	"time"

	"equity-momentum-lab/internal/domain"
)

// Panel is an immutable set of price observations ordered by (ticker, date).
// Methods never modify the receiver, so one Panel may be shared by concurrent runs.
type Panel struct {
	rows []domain.PriceObservation
}

// Series is one ticker's chronological observations.
type Series struct {
	Ticker string
	Dates  []time.Time
	Closes []float64
}

// New copies obs and orders the copy by (ticker, date).
// Input is expected to be validated (no duplicate keys); dates are normalized
// to calendar dates.
func New(obs []domain.PriceObservation) *Panel {
	rows := make([]domain.PriceObservation, len(obs))
	copy(rows, obs)
	for i := range rows {
		rows[i].Date = domain.NormalizeDate(rows[i].Date)
	}
	SortObservations(rows)
	return &Panel{rows: rows}
}

// SortObservations orders observations by (ticker ASC, date ASC).
func SortObservations(rows []domain.PriceObservation) {
	sort.SliceStable(rows, func(i, j int) bool {
		return compareObservations(rows[i], rows[j]) < 0
	})
}

// compareObservations returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareObservations(a, b domain.PriceObservation) int {
	if a.Ticker != b.Ticker {
		if a.Ticker < b.Ticker {
			return -1
		}
		return 1
	}
	return a.Date.Compare(b.Date)
}

// Len returns the number of observations.
func (p *Panel) Len() int {
	return len(p.rows)
}

// Rows returns a copy of the observations in (ticker, date) order.
func (p *Panel) Rows() []domain.PriceObservation {
	out := make([]domain.PriceObservation, len(p.rows))
	copy(out, p.rows)
	return out
}

// Filter returns the observations within [start, end] (inclusive).
// A nil bound is open.
func (p *Panel) Filter(start, end *time.Time) *Panel {
	if start == nil && end == nil {
		return p
	}

	var from, to time.Time
	if start != nil {
		from = domain.NormalizeDate(*start)
	}
	if end != nil {
		to = domain.NormalizeDate(*end)
	}

	rows := make([]domain.PriceObservation, 0, len(p.rows))
	for _, r := range p.rows {
		if start != nil && r.Date.Before(from) {
			continue
		}
		if end != nil && r.Date.After(to) {
			continue
		}
		rows = append(rows, r)
	}
	return &Panel{rows: rows}
}

// Dates returns the distinct dates of the panel, ascending.
func (p *Panel) Dates() []time.Time {
	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, r := range p.rows {
		if _, ok := seen[r.Date]; ok {
			continue
		}
		seen[r.Date] = struct{}{}
		dates = append(dates, r.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Tickers returns the distinct tickers, ascending.
func (p *Panel) Tickers() []string {
	var tickers []string
	for i, r := range p.rows {
		if i == 0 || p.rows[i-1].Ticker != r.Ticker {
			tickers = append(tickers, r.Ticker)
		}
	}
	return tickers
}

// Series splits the panel into per-ticker chronological series, in ticker order.
func (p *Panel) Series() []Series {
	var out []Series
	for i, r := range p.rows {
		if i == 0 || p.rows[i-1].Ticker != r.Ticker {
			out = append(out, Series{Ticker: r.Ticker})
		}
		s := &out[len(out)-1]
		s.Dates = append(s.Dates, r.Date)
		s.Closes = append(s.Closes, r.Close)
	}
	return out
}

// Returns computes the simple close-to-close return of every observation within
// its ticker's own sequence. The first observation of a ticker has Ret = NaN, as
// does any return whose previous close makes the ratio undefined.
// Output follows panel order (ticker, date).
func (p *Panel) Returns() []domain.ReturnObservation {
	out := make([]domain.ReturnObservation, 0, len(p.rows))
	for _, s := range p.Series() {
		for i := range s.Closes {
			ret := math.NaN()
			if i > 0 {
				ret = s.Closes[i]/s.Closes[i-1] - 1
				if math.IsInf(ret, 0) {
					ret = math.NaN()
				}
			}
			out = append(out, domain.ReturnObservation{
				Date:   s.Dates[i],
				Ticker: s.Ticker,
				Ret:    ret,
			})
		}
	}
	return out
}

// Summary describes the panel: row count, ticker count and date range.
func (p *Panel) Summary() domain.DatasetSummary {
	summary := domain.DatasetSummary{
		Rows:    len(p.rows),
		Tickers: len(p.Tickers()),
	}
	dates := p.Dates()
	if len(dates) > 0 {
		summary.Start = domain.FormatDate(dates[0])
		summary.End = domain.FormatDate(dates[len(dates)-1])
	}
	return summary
}
