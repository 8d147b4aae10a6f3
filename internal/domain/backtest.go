package domain

import "time"

// Strategy parameter defaults.
const (
	DefaultMomWin   = 60
	DefaultGap      = 5
	DefaultQuantile = 0.2
	DefaultMaxPos   = 0.02
	DefaultTCBps    = 10.0
)

// AnnualizationFactor is the number of trading days per year.
const AnnualizationFactor = 252.0

// StrategyParams configures signal, weighting and cost.
type StrategyParams struct {
	MomWin   int     `json:"mom_win" yaml:"mom_win" validate:"gt=0"`
	Gap      int     `json:"gap" yaml:"gap" validate:"gte=0"`
	Quantile float64 `json:"quantile" yaml:"quantile" validate:"finite,gt=0,lte=0.5"`
	MaxPos   float64 `json:"max_pos" yaml:"max_pos" validate:"finite,gt=0"`
	TCBps    float64 `json:"tc_bps" yaml:"tc_bps" validate:"finite,gte=0"`
}

// DefaultStrategyParams returns the documented defaults.
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{
		MomWin:   DefaultMomWin,
		Gap:      DefaultGap,
		Quantile: DefaultQuantile,
		MaxPos:   DefaultMaxPos,
		TCBps:    DefaultTCBps,
	}
}

// RunRequest is one backtest invocation: optional inclusive date bounds plus
// strategy parameters. Nil bounds mean full available history.
type RunRequest struct {
	Start *time.Time
	End   *time.Time
	StrategyParams
}

// ResolvedParams echoes the parameters a run actually used.
// Start/End are the first and last dates of the filtered panel ("" when empty).
type ResolvedParams struct {
	Start string `json:"start"`
	End   string `json:"end"`
	StrategyParams
}

// DailyResult is one simulated date.
type DailyResult struct {
	Date      time.Time `json:"date"`
	Turnover  float64   `json:"turnover"`
	DailyRet  float64   `json:"daily_ret"`
	DailyCost float64   `json:"daily_cost"`
	DailyPnL  float64   `json:"daily_pnl"`
	Equity    float64   `json:"equity"`
}

// EquityPoint is one point of the compounded equity curve.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// Metrics are the summary statistics of a run.
type Metrics struct {
	CAGR        float64 `json:"cagr"`
	Vol         float64 `json:"vol"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_dd"`
	AvgTurnover float64 `json:"avg_turn"`
	HitRate     float64 `json:"hit_rate"`
}

// BacktestResult is the read-only outcome of one run.
// Daily carries the per-date series needed for export; EquitySeries is the
// presentation-neutral (date, equity) sequence.
type BacktestResult struct {
	RunID        string         `json:"run_id"`
	DatasetID    string         `json:"dataset_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Params       ResolvedParams `json:"params"`
	Metrics      Metrics        `json:"metrics"`
	EquitySeries []EquityPoint  `json:"equity_series"`
	Daily        []DailyResult  `json:"daily"`
	NDays        int            `json:"n_days"`
}

// RunSummary is a BacktestResult without its series.
type RunSummary struct {
	RunID     string         `json:"run_id"`
	DatasetID string         `json:"dataset_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Params    ResolvedParams `json:"params"`
	Metrics   Metrics        `json:"metrics"`
	NDays     int            `json:"n_days"`
}

// Summary strips the series from r.
func (r *BacktestResult) Summary() RunSummary {
	return RunSummary{
		RunID:     r.RunID,
		DatasetID: r.DatasetID,
		CreatedAt: r.CreatedAt,
		Params:    r.Params,
		Metrics:   r.Metrics,
		NDays:     r.NDays,
	}
}

// Clone returns a deep copy of r.
func (r *BacktestResult) Clone() *BacktestResult {
	if r == nil {
		return nil
	}
	out := *r
	out.EquitySeries = append([]EquityPoint(nil), r.EquitySeries...)
	out.Daily = append([]DailyResult(nil), r.Daily...)
	return &out
}
