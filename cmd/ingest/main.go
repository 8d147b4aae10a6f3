// Command ingest loads price datasets into the configured store and writes
// the synthetic sample dataset.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"equity-momentum-lab/internal/app"
	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/ingestion"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags app.Flags

	root := &cobra.Command{
		Use:          "ingest",
		Short:        "Load and generate daily price datasets",
		SilenceUsage: true,
	}
	flags.Register(root)

	root.AddCommand(newLoadCmd(&flags), newSampleCmd(&flags), newShowCmd(&flags))
	return root
}

func newLoadCmd(flags *app.Flags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Replace the stored dataset with a CSV or XLSX file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.SignalContext(cmd.Context())
			defer cancel()

			cfg, log, err := flags.Load()
			if err != nil {
				return err
			}
			a, err := app.New(ctx, cfg, nil, log)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open dataset: %w", err)
			}
			defer f.Close()

			info, err := a.Runner.LoadDataset(ctx, file, f)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), info)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Dataset file, .csv or .xlsx (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newSampleCmd(flags *app.Flags) *cobra.Command {
	var (
		out     string
		seed    uint64
		days    int
		tickers string
		asOf    string
		load    bool
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate the seeded random-walk sample dataset",
		Example: `  ingest sample --out sample_prices.csv
  ingest sample --seed 7 --days 500 --tickers AAA,BBB,CCC,DDD --load`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.SignalContext(cmd.Context())
			defer cancel()

			cfg, log, err := flags.Load()
			if err != nil {
				return err
			}

			sc := cfg.Sample
			fs := cmd.Flags()
			if fs.Changed("seed") {
				sc.Seed = seed
			}
			if fs.Changed("days") {
				sc.Days = days
			}
			if fs.Changed("tickers") {
				sc.Tickers = splitTickers(tickers)
			}
			ref := time.Now().UTC()
			if asOf != "" {
				if ref, err = domain.ParseDate(asOf); err != nil {
					return fmt.Errorf("--as-of: %q is not a YYYY-MM-DD date", asOf)
				}
			}
			if sc.Days <= 0 || len(sc.Tickers) == 0 {
				return fmt.Errorf("sample needs positive --days and at least one ticker")
			}

			obs := ingestion.Sample(sc.Generator(ref))

			if load {
				a, err := app.New(ctx, cfg, nil, log)
				if err != nil {
					return err
				}
				defer a.Close()

				info, err := a.Runner.LoadObservations(ctx, "sample", obs)
				if err != nil {
					return err
				}
				if out == "" {
					return printSummary(cmd.OutOrStdout(), info)
				}
			}

			if out == "" || out == "-" {
				return ingestion.WriteCSV(cmd.OutOrStdout(), obs)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := ingestion.WriteCSV(f, obs); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			log.Info().Str("path", out).Int("rows", len(obs)).Msg("sample written")
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&out, "out", "o", "", "Output CSV file (default stdout, or none with --load)")
	fs.Uint64Var(&seed, "seed", ingestion.DefaultSampleSeed, "Random seed")
	fs.IntVar(&days, "days", ingestion.DefaultSampleDays, "Business days per ticker")
	fs.StringVar(&tickers, "tickers", strings.Join(ingestion.DefaultSampleTickers, ","), "Comma-separated tickers")
	fs.StringVar(&asOf, "as-of", "", "Reference date the series ends near, YYYY-MM-DD (default today)")
	fs.BoolVar(&load, "load", false, "Replace the stored dataset with the sample")
	return cmd
}

func newShowCmd(flags *app.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the summary of the stored dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.SignalContext(cmd.Context())
			defer cancel()

			cfg, log, err := flags.Load()
			if err != nil {
				return err
			}
			a, err := app.New(ctx, cfg, nil, log)
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.Runner.Dataset(ctx)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), info)
		},
	}
}

func splitTickers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func printSummary(w io.Writer, info *domain.DatasetSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
