package storage

import (
	"time"

	"equity-momentum-lab/internal/domain"
)

// CheckObservations rejects an empty dataset and repeated (date, ticker) keys.
// Backends call it before writing.
func CheckObservations(obs []domain.PriceObservation) error {
	if len(obs) == 0 {
		return ErrInvalidInput
	}

	type key struct {
		date   time.Time
		ticker string
	}
	seen := make(map[key]struct{}, len(obs))
	for _, o := range obs {
		if o.Ticker == "" {
			return ErrInvalidInput
		}
		k := key{domain.NormalizeDate(o.Date), o.Ticker}
		if _, exists := seen[k]; exists {
			return ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}
	return nil
}

// CheckRun rejects a nil run or one without an id.
func CheckRun(r *domain.BacktestResult) error {
	if r == nil || r.RunID == "" {
		return ErrInvalidInput
	}
	return nil
}
