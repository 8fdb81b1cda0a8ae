package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the estimator API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	httpDuration     *prometheus.HistogramVec
	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	estimatesCreated *prometheus.CounterVec
	statusChanges    *prometheus.CounterVec
	compensations    *prometheus.CounterVec
	renderDuration   prometheus.Histogram
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "estimator_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "estimator_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estimator_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estimator_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estimator_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estimator_rate_limited_total",
				Help: "Requests rejected by the rate limiter.",
			},
			[]string{"endpoint"},
		),
		estimatesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estimator_estimates_created_total",
				Help: "Estimates created, by initial status.",
			},
			[]string{"status"},
		),
		statusChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estimator_status_transitions_total",
				Help: "Estimate status transitions.",
			},
			[]string{"from", "to"},
		),
		compensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estimator_compensations_total",
				Help: "Compensating deletes after a failed multi-step write.",
			},
			[]string{"result"},
		),
		renderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "estimator_pdf_render_duration_seconds",
				Help:    "Time spent rendering estimate PDFs.",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
			},
		),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRateLimited counts a request rejected with 429.
func (m *Metrics) IncrRateLimited(endpoint string) {
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

// IncrEstimateCreated counts a persisted estimate.
func (m *Metrics) IncrEstimateCreated(status string) {
	m.estimatesCreated.WithLabelValues(status).Inc()
}

// IncrStatusTransition counts an applied status change.
func (m *Metrics) IncrStatusTransition(from, to string) {
	m.statusChanges.WithLabelValues(from, to).Inc()
}

// IncrCompensation counts a compensating delete; result is "ok" or "failed".
func (m *Metrics) IncrCompensation(result string) {
	m.compensations.WithLabelValues(result).Inc()
}

// ObserveRender records a PDF render.
func (m *Metrics) ObserveRender(d time.Duration) {
	m.renderDuration.Observe(d.Seconds())
}

// CounterValue reads the current value of one of the labelled counters.
// It exists for tests and the debug log line on shutdown.
func (m *Metrics) CounterValue(name string, labels ...string) float64 {
	var cv *prometheus.CounterVec
	switch name {
	case "external_errors":
		cv = m.externalErrors
	case "cache_hits":
		cv = m.cacheHits
	case "cache_misses":
		cv = m.cacheMisses
	case "rate_limited":
		cv = m.rateLimited
	case "estimates_created":
		cv = m.estimatesCreated
	case "status_transitions":
		cv = m.statusChanges
	case "compensations":
		cv = m.compensations
	default:
		return 0
	}
	return getCounterValue(cv, labels...)
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
