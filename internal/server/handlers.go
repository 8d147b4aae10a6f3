package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"equity-momentum-lab/internal/backtest"
	"equity-momentum-lab/internal/domain"
	"equity-momentum-lab/internal/ingestion"
	"equity-momentum-lab/internal/observability"
	"equity-momentum-lab/internal/reporting"
	"equity-momentum-lab/internal/sweep"
)

// multipartMemory is the part of an upload kept in memory; the rest spills to disk.
const multipartMemory = 8 << 20

func (s *Server) getDataset(w http.ResponseWriter, r *http.Request) {
	info, err := s.runner.Dataset(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, info)
}

// uploadDataset replaces the dataset with the multipart "file" field.
// The format follows the file extension (.csv or .xlsx).
func (s *Server) uploadDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.recordRejectedUpload()
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.writeError(w, r, err)
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.recordRejectedUpload()
		s.writeError(w, r, fmt.Errorf("%w: multipart field \"file\" is required", errBadRequest))
		return
	}
	defer file.Close()

	info, err := s.runner.LoadDataset(r.Context(), header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, info)
}

// loadSample replaces the dataset with the configured synthetic sample.
func (s *Server) loadSample(w http.ResponseWriter, r *http.Request) {
	obs := ingestion.Sample(s.sample.Generator(s.clock()))
	info, err := s.runner.LoadObservations(r.Context(), "sample", obs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, info)
}

func (s *Server) sampleCSV(w http.ResponseWriter, r *http.Request) {
	obs := ingestion.Sample(s.sample.Generator(s.clock()))

	attachment(w, "text/csv", "sample_prices.csv")
	if err := ingestion.WriteCSV(w, obs); err != nil {
		s.log.Error().Err(err).Msg("write sample csv")
	}
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	// An empty body runs with the configured defaults.
	body := &runRequestBody{}
	if r.ContentLength != 0 {
		if err := render.Bind(r, body); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}

	req, err := body.toRequest(s.defaults)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, runResponse{
		BacktestResult: out.Result,
		Warnings:       out.Sufficiency.Warnings(),
	})
}

// runSweep runs a parameter grid on the current dataset and returns the
// ranked summaries. Sweep results are not persisted.
func (s *Server) runSweep(w http.ResponseWriter, r *http.Request) {
	body := &sweepRequestBody{}
	if err := render.Bind(r, body); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	rankBy, err := sweep.ParseRankKey(body.RankBy)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if n := body.Grid.Size(); n > s.sweeps.MaxPoints {
		s.writeError(w, r, fmt.Errorf("%w: grid has %d points, limit is %d", errBadRequest, n, s.sweeps.MaxPoints))
		return
	}

	combos, err := body.Grid.Expand(s.defaults)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	start, err := parseOptionalDate("start", body.Start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	end, err := parseOptionalDate("end", body.End)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := backtest.ValidateWindow(start, end); err != nil {
		s.writeError(w, r, err)
		return
	}

	results, err := s.runner.Sweep(r.Context(), start, end, combos, s.sweeps.Concurrency)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ranked := sweep.Rank(results, rankBy)
	if body.Top > 0 && body.Top < len(ranked) {
		ranked = ranked[:body.Top]
	}
	render.JSON(w, r, sweepResponse{Points: len(results), RankBy: rankBy, Results: ranked})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.listFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, runs)
}

func (s *Server) exportRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.listFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	attachment(w, "text/csv", "runs.csv")
	io.WriteString(w, reporting.RenderRunsCSV(runs))
}

// listFromQuery reads ?limit=N (default cfg.ListLimit, 0 for all).
func (s *Server) listFromQuery(r *http.Request) ([]domain.RunSummary, error) {
	limit := s.cfg.ListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: limit %q must be a non-negative integer", errBadRequest, v)
		}
		limit = n
	}

	runs, err := s.runs.List(r.Context(), limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []domain.RunSummary{}
	}
	return runs, nil
}

// loadRun fetches the {runID} run, writing the error response on failure.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*domain.BacktestResult, bool) {
	run, err := s.runs.GetByID(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return run, true
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, run)
}

func (s *Server) equityCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	attachment(w, "text/csv", fmt.Sprintf("equity_%s.csv", run.RunID))
	io.WriteString(w, reporting.RenderEquityCSV(run))
}

func (s *Server) dailyCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	attachment(w, "text/csv", fmt.Sprintf("daily_%s.csv", run.RunID))
	io.WriteString(w, reporting.RenderDailyCSV(run))
}

func (s *Server) chartSVG(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	io.WriteString(w, reporting.RenderSVG(run))
}

func (s *Server) chartPNG(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	png, err := reporting.RenderChartPNG(run)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// reportMarkdown renders the run report; ?verify=true appends verification checks.
func (s *Server) reportMarkdown(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	report, err := s.reports.Generate(r.Context(), runID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if verify, _ := strconv.ParseBool(r.URL.Query().Get("verify")); verify {
		res, err := s.verifier.VerifyRun(r.Context(), runID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		report.Checks = res.Checks()
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, reporting.RenderMarkdown(report))
}

func (s *Server) verifyRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.verifier.VerifyRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// recordRejectedUpload counts uploads refused before reaching the runner.
func (s *Server) recordRejectedUpload() {
	if s.metrics != nil {
		s.metrics.RecordDatasetLoad(observability.StatusInvalid, 0, 0)
	}
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
