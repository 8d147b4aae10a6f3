// Command backtest runs one momentum backtest or a parameter sweep, on a
// dataset file or on the configured price store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"equity-momentum-lab/internal/app"
	"equity-momentum-lab/internal/backtest"
	"equity-momentum-lab/internal/config"
	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/pipeline"
	"equity-momentum-lab/internal/reporting"
	"equity-momentum-lab/internal/storage/memory"
	"equity-momentum-lab/internal/sweep"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags app.Flags

	root := &cobra.Command{
		Use:          "backtest",
		Short:        "Cross-sectional momentum backtester",
		SilenceUsage: true,
	}
	flags.Register(root)

	root.AddCommand(newRunCmd(&flags), newSweepCmd(&flags))
	return root
}

// source resolves where prices come from: a file loaded into memory, or the
// configured store. persist opens the configured run store as well.
type source struct {
	runner *pipeline.Runner
	close  func()
}

func openSource(ctx context.Context, cfg *config.Config, log zerolog.Logger, input string, persist bool) (*source, error) {
	storageCfg := cfg.Storage
	if input != "" {
		// Prices come from the file; only the run store is needed.
		storageCfg.PriceBackend = ""
	}

	src := &source{close: func() {}}
	engine := backtest.NewEngine()

	var stores *app.Stores
	if input == "" || persist {
		var err error
		stores, err = app.OpenStores(ctx, storageCfg, cfg.Redis, nil, log)
		if err != nil {
			return nil, err
		}
		src.close = stores.Close
	}

	if input == "" {
		src.runner = pipeline.NewRunner(engine, stores.Prices).WithLogger(log)
	} else {
		src.runner = pipeline.NewRunner(engine, memory.NewPriceStore()).WithLogger(log)
	}
	if persist {
		src.runner.WithRunStore(stores.Runs)
	}

	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			src.close()
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		if _, err := src.runner.LoadDataset(ctx, input, f); err != nil {
			src.close()
			return nil, fmt.Errorf("load %s: %w", input, err)
		}
	}
	return src, nil
}

func newRunCmd(flags *app.Flags) *cobra.Command {
	var (
		strategy  app.StrategyFlags
		input     string
		asJSON    bool
		equityOut string
		chartOut  string
		reportOut string
		persist   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one backtest",
		Example: `  backtest run --input prices.csv --mom-win 60 --gap 5 --quantile 0.2
  backtest run --backend sqlite --persist --start 2023-01-01 --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.SignalContext(cmd.Context())
			defer cancel()

			cfg, log, err := flags.Load()
			if err != nil {
				return err
			}
			req, err := strategy.Request(cmd.Flags(), cfg.Defaults.Params())
			if err != nil {
				return err
			}

			src, err := openSource(ctx, cfg, log, input, persist)
			if err != nil {
				return err
			}
			defer src.close()

			out, err := src.runner.Run(ctx, req)
			if err != nil {
				return err
			}

			if err := writeArtifacts(out.Result, equityOut, chartOut, reportOut); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out.Result)
			}
			printResult(w, out)
			return nil
		},
	}

	fs := cmd.Flags()
	strategy.Register(fs)
	fs.StringVarP(&input, "input", "i", "", "Dataset file (.csv or .xlsx); default is the configured price store")
	fs.BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	fs.StringVar(&equityOut, "equity-out", "", "Write the equity CSV to this file")
	fs.StringVar(&chartOut, "chart-out", "", "Write the equity chart to this file (.png or .svg)")
	fs.StringVar(&reportOut, "report-out", "", "Write the markdown report to this file")
	fs.BoolVar(&persist, "persist", false, "Store the run in the configured run store")
	return cmd
}

func writeArtifacts(r *domain.BacktestResult, equityOut, chartOut, reportOut string) error {
	if equityOut != "" {
		if err := os.WriteFile(equityOut, []byte(reporting.RenderEquityCSV(r)), 0o644); err != nil {
			return fmt.Errorf("write equity csv: %w", err)
		}
	}

	if chartOut != "" {
		var data []byte
		switch strings.ToLower(filepath.Ext(chartOut)) {
		case ".svg":
			data = []byte(reporting.RenderSVG(r))
		case ".png":
			png, err := reporting.RenderChartPNG(r)
			if err != nil {
				return fmt.Errorf("render chart: %w", err)
			}
			data = png
		default:
			return fmt.Errorf("--chart-out must end in .png or .svg, got %q", chartOut)
		}
		if err := os.WriteFile(chartOut, data, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}

	if reportOut != "" {
		report := &reporting.Report{
			GeneratedAt: r.CreatedAt,
			Run:         r,
			Monthly:     reporting.MonthlyReturns(r.Daily),
		}
		if err := os.WriteFile(reportOut, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}

func printResult(w io.Writer, out *pipeline.Outcome) {
	r := out.Result
	m := r.Metrics

	fmt.Fprintf(w, "Run %s  (%s .. %s, %d days)\n\n", r.RunID, orDash(r.Params.Start), orDash(r.Params.End), r.NDays)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CAGR\tVol\tSharpe\tMaxDD\tAvgTurn\tHitRate")
	fmt.Fprintf(tw, "%.2f%%\t%.2f%%\t%.2f\t%.2f%%\t%.4f\t%.2f%%\n",
		m.CAGR*100, m.Vol*100, m.Sharpe, m.MaxDrawdown*100, m.AvgTurnover, m.HitRate*100)
	tw.Flush()

	for _, warn := range out.Sufficiency.Warnings() {
		fmt.Fprintf(w, "\nwarning: %s", warn)
	}
	fmt.Fprintln(w)
}

func newSweepCmd(flags *app.Flags) *cobra.Command {
	var (
		strategy    app.StrategyFlags
		input       string
		gridPath    string
		rankBy      string
		top         int
		concurrency int
		asJSON      bool
		csvOut      string
	)

	cmd := &cobra.Command{
		Use:     "sweep",
		Short:   "Run every parameter set of a YAML grid and rank the results",
		Example: `  backtest sweep --input prices.csv --grid grid.yaml --rank-by sharpe --top 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.SignalContext(cmd.Context())
			defer cancel()

			cfg, log, err := flags.Load()
			if err != nil {
				return err
			}

			key, err := sweep.ParseRankKey(rankBy)
			if err != nil {
				return err
			}
			grid, err := sweep.LoadGridFile(gridPath)
			if err != nil {
				return err
			}
			// Parameters absent from the grid come from flags over config defaults.
			combos, err := grid.Expand(strategy.Params(cmd.Flags(), cfg.Defaults.Params()))
			if err != nil {
				return err
			}
			start, end, err := strategy.Window()
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = cfg.Sweep.Concurrency
			}

			src, err := openSource(ctx, cfg, log, input, false)
			if err != nil {
				return err
			}
			defer src.close()

			results, err := src.runner.Sweep(ctx, start, end, combos, concurrency)
			if err != nil {
				return err
			}
			ranked := sweep.Rank(results, key)
			if top > 0 && top < len(ranked) {
				ranked = ranked[:top]
			}

			if csvOut != "" {
				if err := os.WriteFile(csvOut, []byte(reporting.RenderRunsCSV(ranked)), 0o644); err != nil {
					return fmt.Errorf("write csv: %w", err)
				}
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(ranked)
			}
			printRanking(w, key, len(results), ranked)
			return nil
		},
	}

	fs := cmd.Flags()
	strategy.Register(fs)
	fs.StringVarP(&input, "input", "i", "", "Dataset file (.csv or .xlsx); default is the configured price store")
	fs.StringVarP(&gridPath, "grid", "g", "", "YAML grid file (required)")
	fs.StringVar(&rankBy, "rank-by", string(sweep.RankSharpe), "Rank key: sharpe, cagr, max_dd, hit_rate")
	fs.IntVar(&top, "top", 0, "Show only the best N results (0 for all)")
	fs.IntVar(&concurrency, "concurrency", 0, "Runs in flight (default: config, then GOMAXPROCS)")
	fs.BoolVar(&asJSON, "json", false, "Print the ranking as JSON")
	fs.StringVar(&csvOut, "csv-out", "", "Write the ranking as CSV to this file")
	cmd.MarkFlagRequired("grid")
	return cmd
}

func printRanking(w io.Writer, key sweep.RankKey, points int, ranked []domain.RunSummary) {
	fmt.Fprintf(w, "%d grid points, ranked by %s\n\n", points, key)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tmom_win\tgap\tquantile\tmax_pos\ttc_bps\tCAGR\tSharpe\tMaxDD\tHitRate\t")
	for i, s := range ranked {
		p, m := s.Params, s.Metrics
		fmt.Fprintf(tw, "%d\t%d\t%d\t%.3f\t%.3f\t%.1f\t%.2f%%\t%.2f\t%.2f%%\t%.2f%%\t\n",
			i+1, p.MomWin, p.Gap, p.Quantile, p.MaxPos, p.TCBps,
			m.CAGR*100, m.Sharpe, m.MaxDrawdown*100, m.HitRate*100)
	}
	tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
