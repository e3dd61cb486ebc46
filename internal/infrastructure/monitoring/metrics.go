package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Proxy metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	TransformBytes   prometheus.Histogram

	// Extraction metrics
	Extractions     *prometheus.CounterVec
	ExtractionScore prometheus.Histogram

	// Share store metrics
	SharesActive  prometheus.Gauge
	SharesCreated prometheus.Counter
	SharesEvicted prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multiview_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "multiview_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "multiview_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		UpstreamRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multiview_upstream_requests_total",
				Help: "Upstream fetches performed by the proxy, by outcome",
			},
			[]string{"outcome"},
		),
		UpstreamDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "multiview_upstream_duration_seconds",
				Help:    "Upstream fetch duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		TransformBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "multiview_transform_bytes",
				Help:    "Size of HTML documents passed through the markup transformer",
				Buckets: []float64{1000, 10000, 100000, 500000, 1000000, 5000000},
			},
		),

		Extractions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multiview_extractions_total",
				Help: "Stream extraction attempts, by family and outcome",
			},
			[]string{"family", "outcome"},
		),
		ExtractionScore: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "multiview_extraction_top_score",
				Help:    "Score of the winning stream candidate",
				Buckets: []float64{0, 1, 2, 4, 6, 8, 10, 15, 1000},
			},
		),
		SharesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "multiview_shares_active",
				Help: "Number of share-link entries currently stored",
			},
		),
		SharesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "multiview_shares_created_total",
				Help: "Total share-link entries created",
			},
		),
		SharesEvicted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "multiview_shares_evicted_total",
				Help: "Total share-link entries removed by the eviction sweep",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "multiview_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if respSize > 0 {
		m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
	}
}

// RecordUpstream records an upstream fetch outcome
func (m *Metrics) RecordUpstream(outcome string, duration time.Duration) {
	m.UpstreamRequests.WithLabelValues(outcome).Inc()
	m.UpstreamDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordExtraction records an extraction attempt outcome
func (m *Metrics) RecordExtraction(family, outcome string) {
	m.Extractions.WithLabelValues(family, outcome).Inc()
}

// UpdateUptime refreshes the uptime gauge
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
