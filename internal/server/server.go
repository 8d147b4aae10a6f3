// Package server exposes the backtester over HTTP and pushes completed runs
// to websocket clients.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"equity-momentum-lab/internal/app"
	"equity-momentum-lab/internal/config"
	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/logging"
	"equity-momentum-lab/internal/observability"
	"equity-momentum-lab/internal/pipeline"
	"equity-momentum-lab/internal/reporting"
	"equity-momentum-lab/internal/storage"
	"equity-momentum-lab/internal/verification"
)

// Server serves the HTTP API.
type Server struct {
	runner   *pipeline.Runner
	runs     storage.RunStore
	reports  *reporting.Generator
	verifier verification.Verifier
	hub      *Hub
	metrics  *observability.Metrics // optional
	log      zerolog.Logger
	clock    func() time.Time

	cfg      config.ServerConfig
	limits   config.RateLimitConfig
	defaults domain.StrategyParams
	sample   config.SampleConfig
	sweeps   config.SweepConfig

	metricsHandler http.Handler
}

// New builds a server over a wired application and subscribes its websocket
// hub to completed runs.
func New(a *app.App) *Server {
	log := logging.Component(a.Log, "http")
	s := &Server{
		runner:         a.Runner,
		runs:           a.Stores.Runs,
		reports:        a.Reports,
		verifier:       a.Verifier,
		hub:            NewHub(a.Metrics, a.Log),
		metrics:        a.Metrics,
		log:            log,
		clock:          func() time.Time { return time.Now().UTC() },
		cfg:            a.Config.Server,
		limits:         a.Config.RateLimit,
		defaults:       a.Config.Defaults.Params(),
		sample:         a.Config.Sample,
		sweeps:         a.Config.Sweep,
		metricsHandler: observability.Handler(),
	}
	a.Runner.OnComplete(s.hub.Publish)
	return s
}

// WithMetricsHandler replaces the /metrics handler.
func (s *Server) WithMetricsHandler(h http.Handler) *Server {
	s.metricsHandler = h
	return s
}

// WithClock sets the clock used for the sample dataset's reference date.
func (s *Server) WithClock(clock func() time.Time) *Server {
	s.clock = clock
	return s
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.metricsHandler)
	r.Get("/ws/runs", s.hub.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Route("/dataset", func(r chi.Router) {
			r.Get("/", s.getDataset)
			r.Post("/", s.uploadDataset)
			r.Post("/sample", s.loadSample)
		})
		r.Get("/sample.csv", s.sampleCSV)

		// Runs and sweeps share one submission budget.
		limit := func(next http.Handler) http.Handler { return next }
		if s.limits.Enabled {
			limit = s.rateLimit(rate.NewLimiter(rate.Limit(s.limits.RPS), s.limits.Burst))
		}
		r.With(limit).Post("/sweeps", s.runSweep)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Get("/export.csv", s.exportRuns)
			r.With(limit).Post("/", s.createRun)

			r.Route("/{runID}", func(r chi.Router) {
				r.Get("/", s.getRun)
				r.Get("/equity.csv", s.equityCSV)
				r.Get("/daily.csv", s.dailyCSV)
				r.Get("/chart.svg", s.chartSVG)
				r.Get("/chart.png", s.chartPNG)
				r.Get("/report.md", s.reportMarkdown)
				r.Get("/verify", s.verifyRun)
			})
		})
	})

	return r
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down http server")
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
