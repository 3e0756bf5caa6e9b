// Package metrics exposes Prometheus instrumentation for the HTTP API and the
// poll loop.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fwchecks"

// traceResponseWriter records the status code and body size of a response.
type traceResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (w *traceResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *traceResponseWriter) Write(data []byte) (int, error) {
	size, err := w.ResponseWriter.Write(data)
	w.size += size
	return size, err
}

// Metrics holds every collector of the service. It implements
// application.PollRecorder.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec
	PollCycles          prometheus.Counter
	PollDuration        prometheus.Histogram
	ChangePolls         *prometheus.CounterVec
	TrackedChangesGauge prometheus.Gauge
}

// New creates Metrics registered on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "http request duration in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"status", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "http response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 2, 10),
			},
			[]string{"status", "route"},
		),
		PollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "number of completed poll cycles",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "duration of a poll cycle in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ChangePolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "change_polls_total",
				Help:      "number of change polls against the CI service, by result",
			},
			[]string{"result"},
		),
		TrackedChangesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_changes",
			Help:      "number of change revisions currently tracked",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.PollCycles,
		m.PollDuration,
		m.ChangePolls,
		m.TrackedChangesGauge,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for inspection.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// PollCycle records a finished poll cycle.
func (m *Metrics) PollCycle(_, _ int, elapsed time.Duration) {
	m.PollCycles.Inc()
	m.PollDuration.Observe(elapsed.Seconds())
}

// TrackedChanges sets the tracked changes gauge.
func (m *Metrics) TrackedChanges(n int) {
	m.TrackedChangesGauge.Set(float64(n))
}

// ChangePolled counts one change poll.
func (m *Metrics) ChangePolled(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.ChangePolls.WithLabelValues(result).Inc()
}

// Middleware observes request duration and response size. route names the
// matched pattern so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(route func(*http.Request) string, next http.Handler) http.Handler {
	return m.middleware(route, next, time.Since)
}

func (m *Metrics) middleware(route func(*http.Request) string, next http.Handler, timeSince func(time.Time) time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		trw := &traceResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(trw, r)

		labels := prometheus.Labels{"status": strconv.Itoa(trw.statusCode), "route": route(r)}
		m.HTTPRequestDuration.With(labels).Observe(timeSince(start).Seconds())
		m.HTTPResponseSize.With(labels).Observe(float64(trw.size))
	})
}
