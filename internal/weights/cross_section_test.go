package weights

import (
	"math"
	"testing"
	"time"

	"equity-momentum-lab/internal/domain"
)

const eps = 1e-12

func sum(w []float64) (pos, neg float64) {
	for _, v := range w {
		if v > 0 {
			pos += v
		} else {
			neg += v
		}
	}
	return pos, neg
}

func TestCrossSection_TwoTickers(t *testing.T) {
	w := CrossSection([]Entry{{"A", 0.02}, {"B", -0.02}}, 0.5, 1.0)

	if math.Abs(w[0]-0.5) > eps || math.Abs(w[1]+0.5) > eps {
		t.Errorf("expected [0.5 -0.5], got %v", w)
	}
}

func TestCrossSection_AllNaN(t *testing.T) {
	w := CrossSection([]Entry{{"A", math.NaN()}, {"B", math.NaN()}}, 0.2, 0.02)

	for i, v := range w {
		if v != 0 {
			t.Errorf("expected zero weight at %d, got %f", i, v)
		}
	}
}

func TestCrossSection_Empty(t *testing.T) {
	if w := CrossSection(nil, 0.2, 0.02); len(w) != 0 {
		t.Errorf("expected empty weights, got %v", w)
	}
}

func TestCrossSection_NaNExcluded(t *testing.T) {
	entries := []Entry{{"A", 0.1}, {"B", math.NaN()}, {"C", -0.1}, {"D", 0.0}}
	w := CrossSection(entries, 0.34, 1.0)

	if w[1] != 0 {
		t.Errorf("expected NaN signal to get zero weight, got %f", w[1])
	}
	// n=3, k=1: C short, A long, D flat
	if math.Abs(w[0]-0.5) > eps || math.Abs(w[2]+0.5) > eps || w[3] != 0 {
		t.Errorf("unexpected weights %v", w)
	}
}

func TestCrossSection_SingleTickerEndsShort(t *testing.T) {
	w := CrossSection([]Entry{{"A", 0.3}}, 0.2, 0.02)

	if math.Abs(w[0]+0.5) > eps {
		t.Errorf("expected -0.5, got %f", w[0])
	}
}

func TestCrossSection_DollarNeutral(t *testing.T) {
	entries := make([]Entry, 0, 25)
	for i := 0; i < 25; i++ {
		entries = append(entries, Entry{Ticker: string(rune('A' + i)), Signal: math.Sin(float64(i))})
	}

	for _, q := range []float64{0.05, 0.1, 0.2, 0.5} {
		w := CrossSection(entries, q, 0.02)
		pos, neg := sum(w)
		if math.Abs(pos-0.5) > 1e-9 || math.Abs(neg+0.5) > 1e-9 {
			t.Errorf("quantile %v: expected sides +0.5/-0.5, got %f/%f", q, pos, neg)
		}
		if math.Abs(pos+neg) > 1e-9 {
			t.Errorf("quantile %v: net exposure %f", q, pos+neg)
		}
	}
}

func TestCrossSection_BucketSizes(t *testing.T) {
	entries := make([]Entry, 10)
	for i := range entries {
		entries[i] = Entry{Ticker: string(rune('A' + i)), Signal: float64(i)}
	}

	// k = floor(10*0.2) = 2
	w := CrossSection(entries, 0.2, 1.0)

	for i, v := range w {
		var want float64
		switch {
		case i < 2:
			want = -0.25
		case i >= 8:
			want = 0.25
		}
		if math.Abs(v-want) > eps {
			t.Errorf("entry %d: expected %f, got %f", i, want, v)
		}
	}
}

func TestCrossSection_TiesBrokenByTicker(t *testing.T) {
	entries := []Entry{{"C", 0}, {"A", 0}, {"B", 0}}
	w := CrossSection(entries, 0.34, 1.0)

	// ascending by ticker: A short, C long
	if w[1] >= 0 || w[0] <= 0 || w[2] != 0 {
		t.Errorf("unexpected tie resolution %v", w)
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		v, limit, want float64
	}{
		{0.5, 0.02, 0.02},
		{-0.5, 0.02, -0.02},
		{0.01, 0.02, 0.01},
		{0, 0.02, 0},
	}

	for _, tt := range tests {
		if got := clip(tt.v, tt.limit); got != tt.want {
			t.Errorf("clip(%v, %v) = %v, want %v", tt.v, tt.limit, got, tt.want)
		}
	}
}

func TestBuild_GroupsByDate(t *testing.T) {
	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	signals := []domain.SignalObservation{
		{Date: d1, Ticker: "A", Signal: math.NaN()},
		{Date: d2, Ticker: "A", Signal: 0.1},
		{Date: d1, Ticker: "B", Signal: math.NaN()},
		{Date: d2, Ticker: "B", Signal: -0.1},
	}

	w := Build(signals, 0.5, 1.0)

	if len(w) != len(signals) {
		t.Fatalf("expected %d weights, got %d", len(signals), len(w))
	}
	want := []float64{0, 0.5, 0, -0.5}
	for i := range w {
		if w[i].Ticker != signals[i].Ticker || !w[i].Date.Equal(signals[i].Date) {
			t.Errorf("weight %d not aligned with its signal", i)
		}
		if math.Abs(w[i].Weight-want[i]) > eps {
			t.Errorf("weight %d: expected %f, got %f", i, want[i], w[i].Weight)
		}
	}
}
