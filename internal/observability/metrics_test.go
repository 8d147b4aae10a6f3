package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewMetrics("test", reg), reg
}

func TestRecordBacktest(t *testing.T) {
	m, _ := newTestMetrics()

	m.RecordBacktest(StatusSuccess, 20*time.Millisecond, 120)
	m.RecordBacktest(StatusSuccess, 10*time.Millisecond, 30)
	m.RecordBacktest(StatusInvalid, 0, 0)

	if got := testutil.ToFloat64(m.BacktestsTotal.WithLabelValues(StatusSuccess)); got != 2 {
		t.Errorf("expected 2 successful runs, got %v", got)
	}
	if got := testutil.ToFloat64(m.BacktestsTotal.WithLabelValues(StatusInvalid)); got != 1 {
		t.Errorf("expected 1 invalid run, got %v", got)
	}
	if got := testutil.ToFloat64(m.SimulatedDays); got != 150 {
		t.Errorf("expected 150 simulated days, got %v", got)
	}
	if got := testutil.ToFloat64(m.LastSuccessfulBacktest); got <= 0 {
		t.Errorf("expected last success timestamp, got %v", got)
	}
}

func TestRecordDatasetLoad(t *testing.T) {
	m, _ := newTestMetrics()

	m.RecordDatasetLoad(StatusSuccess, 780, 3)
	m.RecordDatasetLoad(StatusError, 5, 1)

	if got := testutil.ToFloat64(m.DatasetRows); got != 780 {
		t.Errorf("expected 780 rows, got %v", got)
	}
	if got := testutil.ToFloat64(m.DatasetTickers); got != 3 {
		t.Errorf("expected 3 tickers, got %v", got)
	}
	if got := testutil.ToFloat64(m.UploadsTotal.WithLabelValues(StatusError)); got != 1 {
		t.Errorf("expected 1 failed upload, got %v", got)
	}
}

func TestRecordHTTPAndCache(t *testing.T) {
	m, _ := newTestMetrics()

	m.RecordHTTPRequest("/api/runs", "POST", 201, time.Millisecond)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	m.SetWSClients(2)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/api/runs", "POST", "201")); got != 1 {
		t.Errorf("expected 1 request, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 2 {
		t.Errorf("expected 2 misses, got %v", got)
	}
	if got := testutil.ToFloat64(m.WSClients); got != 2 {
		t.Errorf("expected 2 ws clients, got %v", got)
	}
}

func TestHandlerFor(t *testing.T) {
	m, reg := newTestMetrics()
	m.RecordSweep(12)

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "test_backtest_sweep_points_total 12") {
		t.Errorf("expected sweep counter in output:\n%s", body)
	}
}
