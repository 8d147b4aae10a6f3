// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusInvalid = "invalid"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	BacktestsTotal   *prometheus.CounterVec
	BacktestDuration prometheus.Histogram
	SimulatedDays    prometheus.Counter
	SweepPoints      prometheus.Counter

	// Dataset metrics
	DatasetRows    prometheus.Gauge
	DatasetTickers prometheus.Gauge
	UploadsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	WSClients         prometheus.Gauge

	// Cache metrics
	CacheLookups *prometheus.CounterVec

	// Health metrics
	LastSuccessfulBacktest prometheus.Gauge
	LastDatasetLoad        prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "momentum_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Backtest metrics
		BacktestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BacktestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest execution duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		SimulatedDays: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "simulated_days_total",
			Help:      "Total number of simulated trading days",
		}),
		SweepPoints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "sweep_points_total",
			Help:      "Total number of parameter grid points run by sweeps",
		}),

		// Dataset metrics
		DatasetRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "rows",
			Help:      "Number of rows in the loaded price dataset",
		}),
		DatasetTickers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "tickers",
			Help:      "Number of tickers in the loaded price dataset",
		}),
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "uploads_total",
			Help:      "Total number of dataset loads by status",
		}, []string{"status"}),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "ws_clients",
			Help:      "Number of connected run feed websocket clients",
		}),

		// Cache metrics
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of run cache lookups by result",
		}, []string{"result"}),

		// Health metrics
		LastSuccessfulBacktest: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_backtest_timestamp",
			Help:      "Unix timestamp of last successful backtest",
		}),
		LastDatasetLoad: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_dataset_load_timestamp",
			Help:      "Unix timestamp of last successful dataset load",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the metrics gathered by g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordBacktest records one backtest run.
func (m *Metrics) RecordBacktest(status string, duration time.Duration, days int) {
	m.BacktestsTotal.WithLabelValues(status).Inc()
	if status != StatusSuccess {
		return
	}
	m.BacktestDuration.Observe(duration.Seconds())
	m.SimulatedDays.Add(float64(days))
	m.LastSuccessfulBacktest.SetToCurrentTime()
}

// RecordSweep records the grid points of one sweep.
func (m *Metrics) RecordSweep(points int) {
	m.SweepPoints.Add(float64(points))
}

// RecordDatasetLoad records a dataset load. rows and tickers are ignored
// unless status is StatusSuccess.
func (m *Metrics) RecordDatasetLoad(status string, rows, tickers int) {
	m.UploadsTotal.WithLabelValues(status).Inc()
	if status != StatusSuccess {
		return
	}
	m.DatasetRows.Set(float64(rows))
	m.DatasetTickers.Set(float64(tickers))
	m.LastDatasetLoad.SetToCurrentTime()
}

// SetDataset sets the dataset gauges without counting a load.
func (m *Metrics) SetDataset(rows, tickers int) {
	m.DatasetRows.Set(float64(rows))
	m.DatasetTickers.Set(float64(tickers))
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(route, method string, code int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// SetWSClients sets the websocket client gauge.
func (m *Metrics) SetWSClients(n int) {
	m.WSClients.Set(float64(n))
}
