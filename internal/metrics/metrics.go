// Package metrics exposes Prometheus instrumentation for header routing,
// notification dispatch and configuration reloads.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reload targets.
const (
	TargetDistribution = "distribution"
	TargetNotification = "notification"
)

// Reload outcomes.
const (
	StatusApplied   = "applied"
	StatusUnchanged = "unchanged"
	StatusFailed    = "failed"
)

// Metrics holds every collector of the service on a private registry.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	routedMessages   *prometheus.CounterVec
	unroutedMessages prometheus.Counter
	stoppedMessages  prometheus.Counter
	patternFailures  *prometheus.CounterVec
	plugins          prometheus.Gauge

	notifiedRecords  prometheus.Counter
	deliveries       *prometheus.CounterVec
	flushFailures    *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	endpoints        *prometheus.GaugeVec

	configReloads *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		routedMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_routed_messages_total",
				Help: "Messages routed to a decoder plugin",
			},
			[]string{"plugin"},
		),

		unroutedMessages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_unrouted_messages_total",
				Help: "Messages whose header matched no registered plugin",
			},
		),

		stoppedMessages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_stopped_messages_total",
				Help: "Messages dropped because their referenced file does not exist",
			},
		),

		patternFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_pattern_compile_failures_total",
				Help: "Distribution patterns that failed to compile",
			},
			[]string{"plugin"},
		),

		plugins: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_distribution_plugins",
				Help: "Plugins with a loaded pattern set",
			},
		),

		notifiedRecords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_notification_records_total",
				Help: "Decoded records passed to the notification dispatcher",
			},
		),

		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_notification_deliveries_total",
				Help: "Batches published to notification endpoints",
			},
			[]string{"endpoint", "mode"},
		),

		flushFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_notification_flush_failures_total",
				Help: "Endpoint flushes that failed in transport",
			},
			[]string{"endpoint", "mode"},
		),

		dispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_notification_dispatch_duration_seconds",
				Help:    "Time spent dispatching one batch of records",
				Buckets: prometheus.DefBuckets,
			},
		),

		endpoints: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ingest_notification_endpoints",
				Help: "Active notification endpoints by kind",
			},
			[]string{"kind"},
		),

		configReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_config_reloads_total",
				Help: "Configuration reload attempts by target and outcome",
			},
			[]string{"target", "status"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_admin_http_requests_total",
				Help: "Admin API requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_admin_http_request_duration_seconds",
				Help:    "Admin API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.routedMessages,
		m.unroutedMessages,
		m.stoppedMessages,
		m.patternFailures,
		m.plugins,
		m.notifiedRecords,
		m.deliveries,
		m.flushFailures,
		m.dispatchDuration,
		m.endpoints,
		m.configReloads,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// RecordRouted counts a message routed to each of the given plugins.
func (m *Metrics) RecordRouted(plugins []string) {
	if m == nil {
		return
	}
	for _, p := range plugins {
		m.routedMessages.WithLabelValues(p).Inc()
	}
}

func (m *Metrics) RecordUnrouted() {
	if m == nil {
		return
	}
	m.unroutedMessages.Inc()
}

func (m *Metrics) RecordStopped() {
	if m == nil {
		return
	}
	m.stoppedMessages.Inc()
}

func (m *Metrics) RecordPatternFailure(plugin string) {
	if m == nil {
		return
	}
	m.patternFailures.WithLabelValues(plugin).Inc()
}

func (m *Metrics) SetPlugins(n int) {
	if m == nil {
		return
	}
	m.plugins.Set(float64(n))
}

// RecordDispatch observes one NotifyRoutes batch.
func (m *Metrics) RecordDispatch(records int, duration time.Duration) {
	if m == nil {
		return
	}
	m.notifiedRecords.Add(float64(records))
	m.dispatchDuration.Observe(duration.Seconds())
}

// RecordDelivery counts a flush attempt for an endpoint. Mode is
// "immediate" or "queued".
func (m *Metrics) RecordDelivery(endpoint, mode string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.flushFailures.WithLabelValues(endpoint, mode).Inc()
		return
	}
	m.deliveries.WithLabelValues(endpoint, mode).Inc()
}

// SetEndpoints records the size of the live receive-all and filtered lists.
func (m *Metrics) SetEndpoints(receiveAll, filtered int) {
	if m == nil {
		return
	}
	m.endpoints.WithLabelValues("receive_all").Set(float64(receiveAll))
	m.endpoints.WithLabelValues("filtered").Set(float64(filtered))
}

func (m *Metrics) RecordConfigReload(target, status string) {
	if m == nil {
		return
	}
	m.configReloads.WithLabelValues(target, status).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Middleware records request counts and latency for the admin API.
// endpointName maps a request to a low-cardinality label.
func (m *Metrics) Middleware(endpointName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			m.RecordHTTPRequest(r.Method, endpointName(r), strconv.Itoa(rw.statusCode), time.Since(start))
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
