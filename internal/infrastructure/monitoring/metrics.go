package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Access metrics
	ReadsTotal     *prometheus.CounterVec
	ListingsTotal  *prometheus.CounterVec
	AccessDenials  prometheus.Counter
	NotModifiedHits prometheus.Counter

	// Rate limit metrics
	RateLimitRejections *prometheus.CounterVec
	BucketsActive       prometheus.Gauge

	// Artifact metrics
	ArtifactsCached  prometheus.Gauge
	ExtractionsTotal *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a collector bound to a specific registerer
// so tests can use isolated registries.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ReadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_file_reads_total",
				Help: "Total file read operations by outcome",
			},
			[]string{"outcome"},
		),
		ListingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_dir_listings_total",
				Help: "Total directory listing operations by outcome",
			},
			[]string{"outcome"},
		),
		AccessDenials: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_access_denials_total",
				Help: "Total path validations rejected by the guard",
			},
		),
		NotModifiedHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_conditional_not_modified_total",
				Help: "Reads short-circuited by a matching cache validator",
			},
		),

		RateLimitRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_rate_limit_rejections_total",
				Help: "Rate limit rejections by operation class",
			},
			[]string{"operation"},
		),
		BucketsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_rate_limit_buckets_active",
				Help: "Live token buckets",
			},
		),

		ArtifactsCached: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_artifacts_cached",
				Help: "Artifacts currently held in the extraction cache",
			},
		),
		ExtractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_artifact_extractions_total",
				Help: "Artifact extraction attempts by result",
			},
			[]string{"result"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
