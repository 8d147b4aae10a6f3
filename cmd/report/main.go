// Command report exports stored runs: markdown report, equity and daily CSVs
// and charts, with optional verification against the loaded dataset.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"equity-momentum-lab/internal/app"
	"equity-momentum-lab/internal/reporting"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		flags  app.Flags
		runID  string
		outDir string
		verify bool
	)

	root := &cobra.Command{
		Use:          "report",
		Short:        "Export a stored backtest run",
		Example:      `  report --backend sqlite --run-id 3vQB7B6MrGQZaxCuFg4oh --out-dir out --verify`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.SignalContext(cmd.Context())
			defer cancel()

			a, err := openApp(ctx, &flags)
			if err != nil {
				return err
			}
			defer a.Close()

			return exportRun(ctx, a, runID, outDir, verify, cmd.OutOrStdout())
		},
	}
	flags.Register(root)
	root.Flags().StringVar(&runID, "run-id", "", "Run to export (required)")
	root.Flags().StringVarP(&outDir, "out-dir", "o", "output", "Directory for the exported files")
	root.Flags().BoolVar(&verify, "verify", false, "Verify the run and include the checks in the report")
	root.MarkFlagRequired("run-id")

	root.AddCommand(newListCmd(&flags), newVerifyCmd(&flags))
	return root
}

func openApp(ctx context.Context, flags *app.Flags) (*app.App, error) {
	cfg, log, err := flags.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, nil, log)
}

type artifact struct {
	name string
	data []byte
}

func exportRun(ctx context.Context, a *app.App, runID, outDir string, verify bool, stdout io.Writer) error {
	report, err := a.Reports.Generate(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}

	if verify {
		res, err := a.Verifier.VerifyRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("verify run %s: %w", runID, err)
		}
		report.Checks = res.Checks()
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	run := report.Run
	files := []artifact{
		{"report.md", []byte(reporting.RenderMarkdown(report))},
		{fmt.Sprintf("equity_%s.csv", runID), []byte(reporting.RenderEquityCSV(run))},
		{fmt.Sprintf("daily_%s.csv", runID), []byte(reporting.RenderDailyCSV(run))},
		{"equity.svg", []byte(reporting.RenderSVG(run))},
	}
	if png, err := reporting.RenderChartPNG(run); err == nil {
		files = append(files, artifact{"equity.png", png})
	} else {
		a.Log.Warn().Err(err).Str("run_id", runID).Msg("png chart skipped")
	}

	for _, f := range files {
		path := filepath.Join(outDir, f.name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(stdout, "Generated: %s\n", path)
	}

	if verify && !report.AllChecksPassed() {
		return fmt.Errorf("run %s failed verification", runID)
	}
	return nil
}

func newListCmd(flags *app.Flags) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.SignalContext(cmd.Context())
			defer cancel()

			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.Stores.Runs.List(ctx, limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCREATED\tWINDOW\tDAYS\tCAGR\tSHARPE")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s..%s\t%d\t%.2f%%\t%.2f\n",
					r.RunID, r.CreatedAt.Format("2006-01-02 15:04"), r.Params.Start, r.Params.End,
					r.NDays, r.Metrics.CAGR*100, r.Metrics.Sharpe)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newVerifyCmd(flags *app.Flags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the newest stored runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.SignalContext(cmd.Context())
			defer cancel()

			a, err := openApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Verifier.VerifyAll(ctx, limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, res := range report.Results {
				status := "OK"
				if !res.Match {
					status = "DIVERGENT"
				}
				replay := "replayed"
				if !res.Replayed {
					replay = "replay skipped: " + res.ReplaySkipped
				}
				fmt.Fprintf(w, "%-24s %-10s %s\n", res.RunID, status, replay)
			}
			fmt.Fprintf(w, "\n%d runs, %d matched, %d divergent\n", report.TotalRuns, report.MatchedRuns, report.DivergentRuns)

			if report.DivergentRuns > 0 {
				return fmt.Errorf("%d runs diverged", report.DivergentRuns)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Verify only the newest N runs (0 for all)")
	return cmd
}
