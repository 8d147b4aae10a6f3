package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"equity-momentum-lab/internal/backtest"
	"equity-momentum-lab/internal/ingestion"
	"equity-momentum-lab/internal/pipeline"
	"equity-momentum-lab/internal/reporting"
	"equity-momentum-lab/internal/storage"
	"equity-momentum-lab/internal/sweep"
)

// errRateLimited is returned by the submission limiter.
var errRateLimited = errors.New("rate limit exceeded, retry later")

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, backtest.ErrInvalidParams),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, ingestion.ErrMissingColumns),
		errors.Is(err, ingestion.ErrInvalidRow),
		errors.Is(err, ingestion.ErrDuplicateKey),
		errors.Is(err, ingestion.ErrEmptyDataset),
		errors.Is(err, ingestion.ErrUnsupportedFormat),
		errors.Is(err, sweep.ErrEmptyGrid),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, reporting.ErrEmptySeries):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateKey), errors.Is(err, pipeline.ErrNoDataset):
		return http.StatusConflict
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": "..."}. Internal errors are logged and
// their detail is not exposed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = http.StatusText(code)
	}
	render.Status(r, code)
	render.JSON(w, r, errorResponse{Error: msg})
}
