package idhash

import (
	"testing"
	"time"

	"equity-momentum-lab/internal/domain"
)

func TestNewRunID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRunID()
		if len(id) < 21 || len(id) > 22 {
			t.Errorf("NewRunID() length = %d, want 21 or 22", len(id))
		}
		if !IsRunID(id) {
			t.Errorf("IsRunID(%q) = false", id)
		}
		if seen[id] {
			t.Fatalf("NewRunID() returned duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestIsRunID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", false},
		{"invalid alphabet", "0OIl", false},
		{"too short", "abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRunID(tt.in); got != tt.want {
				t.Errorf("IsRunID(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestComputeDatasetID(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := []domain.PriceObservation{
		{Date: day, Ticker: "A", Close: 100, Volume: 10},
		{Date: day.AddDate(0, 0, 1), Ticker: "A", Close: 101.5, Volume: 12},
	}

	got := ComputeDatasetID(rows)
	if len(got) != 64 {
		t.Errorf("ComputeDatasetID() length = %d, want 64", len(got))
	}

	// Verify determinism: same inputs should produce same output
	if got2 := ComputeDatasetID(rows); got != got2 {
		t.Errorf("ComputeDatasetID() not deterministic: %s != %s", got, got2)
	}

	changed := append([]domain.PriceObservation(nil), rows...)
	changed[1].Close = 101.51
	if ComputeDatasetID(changed) == got {
		t.Error("ComputeDatasetID() did not change with a close price")
	}
}
