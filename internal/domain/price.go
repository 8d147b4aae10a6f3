package domain

import "time"

// DateLayout is the canonical calendar-date format used in files and APIs.
const DateLayout = "2006-01-02"

// PriceObservation is one row of the daily price panel.
// Unique per (Date, Ticker). Date is a calendar date stored at UTC midnight.
type PriceObservation struct {
	Date   time.Time // trading date, no timezone semantics
	Ticker string    // instrument identifier
	Close  float64   // closing price, expected > 0
	Volume int64     // traded volume, >= 0
}

// ReturnObservation is the simple return of a ticker between two consecutive
// observations of that ticker. Ret is NaN on the ticker's first observation.
type ReturnObservation struct {
	Date   time.Time
	Ticker string
	Ret    float64
}

// SignalObservation is the momentum signal for (Date, Ticker).
// Signal is NaN while the ticker has insufficient history.
type SignalObservation struct {
	Date   time.Time
	Ticker string
	Signal float64
}

// WeightObservation is the target portfolio weight for (Date, Ticker).
type WeightObservation struct {
	Date   time.Time
	Ticker string
	Weight float64
}

// DatasetSummary describes a stored price panel.
type DatasetSummary struct {
	Rows       int       `json:"rows"`
	Tickers    int       `json:"tickers"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	DatasetID  string    `json:"dataset_id,omitempty"`
	LoadedAt   time.Time `json:"loaded_at,omitempty"`
	SourceName string    `json:"source_name,omitempty"`
}

// FormatDate renders t as a calendar date, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// NormalizeDate drops the clock and timezone of t, keeping its calendar date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a DateLayout calendar date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
