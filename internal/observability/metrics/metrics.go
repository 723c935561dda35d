package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service registry. One instance per process, shared
// by the upload runner and the HTTP layer.
type Metrics struct {
	registry *prometheus.Registry
	service  string

	jobsStarted      prometheus.Counter
	jobsFinished     *prometheus.CounterVec
	jobsInFlight     prometheus.Gauge
	recordsProcessed prometheus.Counter

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	jobsStarted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "handover",
			Subsystem: "uploads",
			Name:      "jobs_started_total",
			Help:      "Total upload jobs accepted for background processing.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	jobsFinished := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handover",
			Subsystem: "uploads",
			Name:      "jobs_finished_total",
			Help:      "Total upload jobs reaching a terminal state, by status.",
		},
		[]string{"service", "status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "handover",
			Subsystem: "uploads",
			Name:      "jobs_in_flight",
			Help:      "Number of upload jobs currently processing.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	recordsProcessed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "handover",
			Subsystem: "uploads",
			Name:      "records_processed_total",
			Help:      "Total update records processed across all upload jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handover",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "handover",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	registry.MustRegister(
		jobsStarted,
		jobsFinished,
		jobsInFlight,
		recordsProcessed,
		requestTotal,
		requestDuration,
	)

	return &Metrics{
		registry:         registry,
		service:          service,
		jobsStarted:      jobsStarted,
		jobsFinished:     jobsFinished,
		jobsInFlight:     jobsInFlight,
		recordsProcessed: recordsProcessed,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) JobStarted() {
	m.jobsStarted.Inc()
	m.jobsInFlight.Inc()
}

func (m *Metrics) JobFinished(status string) {
	if status == "" {
		status = "unknown"
	}
	m.jobsInFlight.Dec()
	m.jobsFinished.WithLabelValues(m.service, status).Inc()
}

func (m *Metrics) RecordsProcessed(n int) {
	if n <= 0 {
		return
	}
	m.recordsProcessed.Add(float64(n))
}

// Middleware records request counts and latency. The path label is the
// chi route pattern, not the raw path: job ids, handover ids and tracking
// numbers would otherwise mint one series per request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		path := routePattern(r)
		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routePattern is resolved after the handler ran, once chi has matched
// the route. Unrouted requests (404s) collapse into one bucket.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
