package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	AuthEventsTotal         *prometheus.CounterVec
	PipelineRejectionsTotal *prometheus.CounterVec
	RateLimitedTotal        *prometheus.CounterVec

	// Janitor metrics
	ExpiredKeysPurgedTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campusgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusgate_auth_events_total",
				Help: "Credential flow outcomes (login, refresh, logout, api key issue)",
			},
			[]string{"event", "outcome"},
		),
		PipelineRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusgate_pipeline_rejections_total",
				Help: "Requests rejected by an auth pipeline stage",
			},
			[]string{"stage"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusgate_rate_limited_total",
				Help: "Requests refused by the rate limiter",
			},
			[]string{"route"},
		),

		ExpiredKeysPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "campusgate_expired_api_keys_purged_total",
				Help: "API keys deleted by the janitor after their cutoff",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthEventsTotal,
		m.PipelineRejectionsTotal,
		m.RateLimitedTotal,
		m.ExpiredKeysPurgedTotal,
	)

	return m
}

// RecordAuthEvent counts one credential flow outcome. Nil-safe.
func (m *Metrics) RecordAuthEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.AuthEventsTotal.WithLabelValues(event, outcome).Inc()
}

// RecordRejection counts one pipeline rejection. Nil-safe.
func (m *Metrics) RecordRejection(stage string) {
	if m == nil {
		return
	}
	m.PipelineRejectionsTotal.WithLabelValues(stage).Inc()
}

// RecordRateLimited counts one refused request. Nil-safe.
func (m *Metrics) RecordRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(route).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RouteLabel returns the matched route template, so label cardinality stays
// bounded by the route table rather than by concrete URLs.
func RouteLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Install it with router.Use so the matched route is known.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := RouteLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
