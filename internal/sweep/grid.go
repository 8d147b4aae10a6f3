// Package sweep runs one backtest per point of a strategy parameter grid.
package sweep

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"equity-momentum-lab/internal/backtest"
	"equity-momentum-lab/internal/domain"
)

// ErrEmptyGrid is returned when a grid expands to nothing.
var ErrEmptyGrid = errors.New("sweep grid is empty")

// Grid lists candidate values per strategy parameter. An empty list means
// the default value for that parameter.
type Grid struct {
	MomWin   []int     `yaml:"mom_win" json:"mom_win,omitempty"`
	Gap      []int     `yaml:"gap" json:"gap,omitempty"`
	Quantile []float64 `yaml:"quantile" json:"quantile,omitempty"`
	MaxPos   []float64 `yaml:"max_pos" json:"max_pos,omitempty"`
	TCBps    []float64 `yaml:"tc_bps" json:"tc_bps,omitempty"`
}

// LoadGrid decodes a YAML grid. Unknown keys are rejected.
func LoadGrid(r io.Reader) (*Grid, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var g Grid
	if err := dec.Decode(&g); err != nil {
		if errors.Is(err, io.EOF) {
			return &g, nil
		}
		return nil, fmt.Errorf("decode grid: %w", err)
	}
	return &g, nil
}

// LoadGridFile reads a YAML grid from path.
func LoadGridFile(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grid %s: %w", path, err)
	}
	return LoadGrid(bytes.NewReader(data))
}

// Size is the number of parameter sets the grid expands to.
func (g *Grid) Size() int {
	n := 1
	for _, l := range []int{len(g.MomWin), len(g.Gap), len(g.Quantile), len(g.MaxPos), len(g.TCBps)} {
		if l > 0 {
			n *= l
		}
	}
	return n
}

// Expand returns the cartesian product of the grid, filling empty lists from
// defaults. Order is deterministic: mom_win varies slowest, tc_bps fastest.
// Every combination is validated; the first invalid one is reported with its
// position.
func (g *Grid) Expand(defaults domain.StrategyParams) ([]domain.StrategyParams, error) {
	momWins := orDefault(g.MomWin, defaults.MomWin)
	gaps := orDefault(g.Gap, defaults.Gap)
	quantiles := orDefault(g.Quantile, defaults.Quantile)
	maxPos := orDefault(g.MaxPos, defaults.MaxPos)
	tcs := orDefault(g.TCBps, defaults.TCBps)

	out := make([]domain.StrategyParams, 0, g.Size())
	for _, mw := range momWins {
		for _, gp := range gaps {
			for _, q := range quantiles {
				for _, mp := range maxPos {
					for _, tc := range tcs {
						p := domain.StrategyParams{MomWin: mw, Gap: gp, Quantile: q, MaxPos: mp, TCBps: tc}
						if err := backtest.Validate(p); err != nil {
							return nil, fmt.Errorf("grid point %d: %w", len(out), err)
						}
						out = append(out, p)
					}
				}
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrEmptyGrid
	}
	return out, nil
}

func orDefault[T any](values []T, def T) []T {
	if len(values) == 0 {
		return []T{def}
	}
	return values
}
