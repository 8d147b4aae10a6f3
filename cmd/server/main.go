// Command server serves the momentum backtest HTTP API, the run feed
// websocket and Prometheus metrics.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"equity-momentum-lab/internal/app"
	"equity-momentum-lab/internal/ingestion"
	"equity-momentum-lab/internal/observability"
	"equity-momentum-lab/internal/pipeline"
	"equity-momentum-lab/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		flags      app.Flags
		addr       string
		loadSample bool
	)

	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Serve the momentum backtest API",
		Example:      `  server --backend sqlite --addr :8080 --load-sample`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, cancel := app.SignalContext(cmd.Context())
			defer cancel()

			a, err := app.New(ctx, cfg, observability.DefaultMetrics, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if loadSample {
				if _, err := a.Runner.Dataset(ctx); errors.Is(err, pipeline.ErrNoDataset) {
					obs := ingestion.Sample(cfg.Sample.Generator(time.Now()))
					if _, err := a.Runner.LoadObservations(ctx, "sample", obs); err != nil {
						return fmt.Errorf("load sample dataset: %w", err)
					}
				} else if err != nil {
					return err
				}
			}

			return server.New(a).Run(ctx)
		},
	}

	flags.Register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&loadSample, "load-sample", false, "Load the synthetic sample when no dataset is stored")
	return cmd
}
