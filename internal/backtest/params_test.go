package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"equity-momentum-lab/internal/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *domain.StrategyParams)
		wantErr bool
		field   string
	}{
		{"defaults", func(p *domain.StrategyParams) {}, false, ""},
		{"quantile at upper bound", func(p *domain.StrategyParams) { p.Quantile = 0.5 }, false, ""},
		{"zero gap", func(p *domain.StrategyParams) { p.Gap = 0 }, false, ""},
		{"zero tc", func(p *domain.StrategyParams) { p.TCBps = 0 }, false, ""},
		{"zero mom_win", func(p *domain.StrategyParams) { p.MomWin = 0 }, true, "mom_win"},
		{"negative gap", func(p *domain.StrategyParams) { p.Gap = -1 }, true, "gap"},
		{"zero quantile", func(p *domain.StrategyParams) { p.Quantile = 0 }, true, "quantile"},
		{"quantile above half", func(p *domain.StrategyParams) { p.Quantile = 0.51 }, true, "quantile"},
		{"NaN quantile", func(p *domain.StrategyParams) { p.Quantile = math.NaN() }, true, "quantile"},
		{"zero max_pos", func(p *domain.StrategyParams) { p.MaxPos = 0 }, true, "max_pos"},
		{"negative tc", func(p *domain.StrategyParams) { p.TCBps = -1 }, true, "tc_bps"},
		{"infinite tc", func(p *domain.StrategyParams) { p.TCBps = math.Inf(1) }, true, "tc_bps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.DefaultStrategyParams()
			tt.mutate(&p)

			err := Validate(p)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("Validate() error = %v, want ErrInvalidParams", err)
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error is %T, want *ValidationError", err)
			}
			if verr.Fields[0].Field != tt.field {
				t.Errorf("Validate() field = %q, want %q", verr.Fields[0].Field, tt.field)
			}
		})
	}
}

func TestValidateRequest_Window(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	err := ValidateRequest(domain.RunRequest{Start: &start, End: &end, StrategyParams: domain.DefaultStrategyParams()})
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("ValidateRequest() error = %v, want ErrInvalidParams", err)
	}

	same := start
	if err := ValidateRequest(domain.RunRequest{Start: &start, End: &same, StrategyParams: domain.DefaultStrategyParams()}); err != nil {
		t.Errorf("ValidateRequest() single-day window: %v", err)
	}
}

func TestValidateWindow(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	before := start.AddDate(0, 0, -1)

	if err := ValidateWindow(&start, &before); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("ValidateWindow() error = %v, want ErrInvalidParams", err)
	}
	if err := ValidateWindow(&start, nil); err != nil {
		t.Errorf("ValidateWindow() open end: %v", err)
	}
	if err := ValidateWindow(nil, &before); err != nil {
		t.Errorf("ValidateWindow() open start: %v", err)
	}
}

func TestValidate_FiniteTagRegistered(t *testing.T) {
	p := domain.DefaultStrategyParams()
	p.MaxPos = math.Inf(1)

	err := Validate(p)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want *ValidationError", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "max_pos" {
		t.Errorf("Validate() fields = %+v, want max_pos only", verr.Fields)
	}
}
