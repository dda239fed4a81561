package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatTurnsTotal      *prometheus.CounterVec
	chatStyleTotal      *prometheus.CounterVec
	retrievalCitations  *prometheus.HistogramVec
	retrievalDuration   *prometheus.HistogramVec
	retrievalConstraint *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tartam",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tartam",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tartam",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chatTurnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tartam",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total completed chat turns by outcome.",
		},
		[]string{"service", "outcome"},
	)
	chatStyleTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tartam",
			Subsystem: "chat",
			Name:      "style_total",
			Help:      "Total chat turns by detected answer style.",
		},
		[]string{"service", "style"},
	)
	retrievalCitations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tartam",
			Subsystem: "retrieval",
			Name:      "citations",
			Help:      "Distribution of citations returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tartam",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	retrievalConstraint := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tartam",
			Subsystem: "retrieval",
			Name:      "constrained_total",
			Help:      "Total retrievals by constraint kind.",
		},
		[]string{"service", "kind"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatTurnsTotal,
		chatStyleTotal,
		retrievalCitations,
		retrievalDuration,
		retrievalConstraint,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		chatTurnsTotal:      chatTurnsTotal,
		chatStyleTotal:      chatStyleTotal,
		retrievalCitations:  retrievalCitations,
		retrievalDuration:   retrievalDuration,
		retrievalConstraint: retrievalConstraint,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/sessions/") && strings.HasSuffix(path, "/history"):
		return "/v1/sessions/{session_id}/history"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordChatTurn(service, outcome, style string, citationCount int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	if style == "" {
		style = "unknown"
	}
	m.chatTurnsTotal.WithLabelValues(service, outcome).Inc()
	m.chatStyleTotal.WithLabelValues(service, style).Inc()
	m.retrievalCitations.WithLabelValues(service, "chat").Observe(float64(citationCount))
	m.retrievalDuration.WithLabelValues(service, "chat").Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordRetrieval(service, endpoint string, citationCount int, duration time.Duration) {
	m.retrievalCitations.WithLabelValues(service, endpoint).Observe(float64(citationCount))
	m.retrievalDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordConstraintKind(service, kind string) {
	if kind == "" {
		kind = "none"
	}
	m.retrievalConstraint.WithLabelValues(service, kind).Inc()
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
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
