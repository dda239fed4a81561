package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	reindexTotal    *prometheus.CounterVec
	reindexDuration *prometheus.HistogramVec
	reindexInFlight prometheus.Gauge
	reindexedUnits  *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	reindexTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tartam",
			Subsystem: "worker",
			Name:      "reindex_total",
			Help:      "Total processed reindex requests by status.",
		},
		[]string{"service", "status"},
	)
	reindexDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tartam",
			Subsystem: "worker",
			Name:      "reindex_duration_seconds",
			Help:      "Source set reindex duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	reindexInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tartam",
			Subsystem: "worker",
			Name:      "reindex_in_flight",
			Help:      "Number of in-flight reindex runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	reindexedUnits := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tartam",
			Subsystem: "worker",
			Name:      "reindexed_units",
			Help:      "Distribution of units re-embedded per reindex run.",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
		[]string{"service"},
	)

	registry.MustRegister(reindexTotal, reindexDuration, reindexInFlight, reindexedUnits)

	return &WorkerMetrics{
		registry:        registry,
		reindexTotal:    reindexTotal,
		reindexDuration: reindexDuration,
		reindexInFlight: reindexInFlight,
		reindexedUnits:  reindexedUnits,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartReindex() {
	m.reindexInFlight.Inc()
}

func (m *WorkerMetrics) FinishReindex(service string, duration time.Duration, err error) {
	m.reindexInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.reindexTotal.WithLabelValues(service, status).Inc()
	m.reindexDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveReindexedUnits(service string, count int) {
	if count < 0 {
		return
	}
	m.reindexedUnits.WithLabelValues(service).Observe(float64(count))
}
