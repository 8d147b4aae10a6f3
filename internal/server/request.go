package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"equity-momentum-lab/internal/backtest"
	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/sweep"
)

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("bad request")

// runRequestBody is the JSON body of POST /api/runs. Absent fields take the
// configured defaults; absent dates mean the full history.
type runRequestBody struct {
	Start    *string  `json:"start,omitempty"`
	End      *string  `json:"end,omitempty"`
	MomWin   *int     `json:"mom_win,omitempty"`
	Gap      *int     `json:"gap,omitempty"`
	Quantile *float64 `json:"quantile,omitempty"`
	MaxPos   *float64 `json:"max_pos,omitempty"`
	TCBps    *float64 `json:"tc_bps,omitempty"`
}

// Bind implements render.Binder.
func (b *runRequestBody) Bind(_ *http.Request) error {
	return nil
}

// toRequest merges b over defaults. Empty date strings count as absent.
func (b *runRequestBody) toRequest(defaults domain.StrategyParams) (domain.RunRequest, error) {
	req := domain.RunRequest{StrategyParams: defaults}

	var err error
	if req.Start, err = parseOptionalDate("start", b.Start); err != nil {
		return domain.RunRequest{}, err
	}
	if req.End, err = parseOptionalDate("end", b.End); err != nil {
		return domain.RunRequest{}, err
	}

	if b.MomWin != nil {
		req.MomWin = *b.MomWin
	}
	if b.Gap != nil {
		req.Gap = *b.Gap
	}
	if b.Quantile != nil {
		req.Quantile = *b.Quantile
	}
	if b.MaxPos != nil {
		req.MaxPos = *b.MaxPos
	}
	if b.TCBps != nil {
		req.TCBps = *b.TCBps
	}
	return req, nil
}

func parseOptionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(*s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a YYYY-MM-DD date", backtest.ErrInvalidParams, field, *s)
	}
	return &t, nil
}

// runResponse is a completed run plus data sufficiency warnings.
type runResponse struct {
	*domain.BacktestResult
	Warnings []string `json:"warnings,omitempty"`
}

// sweepRequestBody is the JSON body of POST /api/sweeps.
type sweepRequestBody struct {
	Start  *string    `json:"start,omitempty"`
	End    *string    `json:"end,omitempty"`
	Grid   sweep.Grid `json:"grid"`
	RankBy string     `json:"rank_by,omitempty"`
	Top    int        `json:"top,omitempty"`
}

// Bind implements render.Binder.
func (b *sweepRequestBody) Bind(_ *http.Request) error {
	if b.Top < 0 {
		return errors.New("top must be non-negative")
	}
	return nil
}

// sweepResponse lists grid results ranked best first.
type sweepResponse struct {
	Points  int                 `json:"points"`
	RankBy  sweep.RankKey       `json:"rank_by"`
	Results []domain.RunSummary `json:"results"`
}
