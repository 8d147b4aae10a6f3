package ingestion

import (
	"math"
	"math/rand/v2"
	"time"

	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/panel"
)

// Sample dataset defaults.
const (
	DefaultSampleSeed = 42
	DefaultSampleDays = 260
	// sampleSpan stretches the calendar lookback so Days business days fit
	// before the reference date.
	sampleSpan = 1.6
	// price floor of the random walk
	samplePriceFloor = 5.0
)

// DefaultSampleTickers are the tickers of the sample dataset.
var DefaultSampleTickers = []string{"AAPL", "MSFT", "AMZN"}

// SampleConfig controls the synthetic dataset. Equal configs produce equal rows.
type SampleConfig struct {
	Seed    uint64    `yaml:"seed"`
	Days    int       `yaml:"days"`
	Tickers []string  `yaml:"tickers"`
	Start   time.Time `yaml:"-"`
}

// DefaultSampleConfig returns the default config with Start placed so the
// business-day range ends near asOf.
func DefaultSampleConfig(asOf time.Time) SampleConfig {
	return SampleConfig{
		Seed:    DefaultSampleSeed,
		Days:    DefaultSampleDays,
		Tickers: append([]string(nil), DefaultSampleTickers...),
		Start:   SampleStart(asOf, DefaultSampleDays),
	}
}

// SampleStart returns asOf minus floor(days*1.6) calendar days.
func SampleStart(asOf time.Time, days int) time.Time {
	back := int(float64(days) * sampleSpan)
	return domain.NormalizeDate(asOf).AddDate(0, 0, -back)
}

// Sample generates a random-walk price panel: for each ticker,
// close = max(5, 100 + cumulative N(0,1)) rounded to cents and
// volume uniform in [1e6, 3e6). Rows are ordered by (ticker, date).
func Sample(cfg SampleConfig) []domain.PriceObservation {
	if cfg.Days <= 0 || len(cfg.Tickers) == 0 {
		return nil
	}

	dates := BusinessDays(cfg.Start, cfg.Days)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))

	out := make([]domain.PriceObservation, 0, len(cfg.Tickers)*cfg.Days)
	for _, ticker := range cfg.Tickers {
		closes := make([]float64, cfg.Days)
		walk := 100.0
		for i := range closes {
			walk += rng.NormFloat64()
			closes[i] = math.Round(math.Max(samplePriceFloor, walk)*100) / 100
		}
		for i, d := range dates {
			out = append(out, domain.PriceObservation{
				Date:   d,
				Ticker: ticker,
				Close:  closes[i],
				Volume: int64((1 + 2*rng.Float64()) * 1e6),
			})
		}
	}

	panel.SortObservations(out)
	return out
}

// BusinessDays returns n consecutive Monday-to-Friday dates starting at the
// first weekday on or after start.
func BusinessDays(start time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := domain.NormalizeDate(start)
	for len(out) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}
