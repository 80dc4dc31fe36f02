package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	rebuildTotal     *prometheus.CounterVec
	rebuildDuration  *prometheus.HistogramVec
	rebuildInFlight  prometheus.Gauge
	documentsByState *prometheus.CounterVec
	passagesIndexed  *prometheus.GaugeVec
	queueLag         *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	rebuildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "worker",
			Name:      "rebuild_total",
			Help:      "Total corpus rebuilds by status.",
		},
		[]string{"service", "status"},
	)
	rebuildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "worker",
			Name:      "rebuild_duration_seconds",
			Help:      "Corpus rebuild duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)
	rebuildInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "copilot",
			Subsystem: "worker",
			Name:      "rebuild_in_flight",
			Help:      "Number of in-flight corpus rebuilds.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentsByState := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "worker",
			Name:      "documents_total",
			Help:      "Total documents seen across rebuilds by ingest status.",
		},
		[]string{"service", "status"},
	)
	passagesIndexed := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "copilot",
			Subsystem: "worker",
			Name:      "passages_indexed",
			Help:      "Passage count of the most recent successful rebuild.",
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between a rebuild request and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(rebuildTotal, rebuildDuration, rebuildInFlight, documentsByState, passagesIndexed, queueLag)

	return &WorkerMetrics{
		registry:         registry,
		rebuildTotal:     rebuildTotal,
		rebuildDuration:  rebuildDuration,
		rebuildInFlight:  rebuildInFlight,
		documentsByState: documentsByState,
		passagesIndexed:  passagesIndexed,
		queueLag:         queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRebuild() {
	m.rebuildInFlight.Inc()
}

func (m *WorkerMetrics) FinishRebuild(service string, duration time.Duration, err error) {
	m.rebuildInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.rebuildTotal.WithLabelValues(service, status).Inc()
	m.rebuildDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordDocument(service, status string) {
	if status == "" {
		status = "unknown"
	}
	m.documentsByState.WithLabelValues(service, status).Inc()
}

func (m *WorkerMetrics) SetPassagesIndexed(service string, count int) {
	m.passagesIndexed.WithLabelValues(service).Set(float64(count))
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
