package metrics

import (
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

	queryTotal          *prometheus.CounterVec
	queryDuration       *prometheus.HistogramVec
	queryConfidence     *prometheus.HistogramVec
	retrievedPassages   *prometheus.HistogramVec
	noAnswerTotal       *prometheus.CounterVec
	guardrailHitsTotal  *prometheus.CounterVec
	filterFallbackTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "copilot",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total answered queries by confidence tier.",
		},
		[]string{"service", "tier"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	queryConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "query",
			Name:      "confidence_score",
			Help:      "Distribution of retrieval confidence scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.55, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"service"},
	)
	retrievedPassages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "query",
			Name:      "retrieved_passages",
			Help:      "Distribution of passages returned per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	noAnswerTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "query",
			Name:      "no_answer_total",
			Help:      "Total queries refused for lack of relevant content.",
		},
		[]string{"service"},
	)
	guardrailHitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "guardrail",
			Name:      "hits_total",
			Help:      "Total guardrail triggers by type.",
		},
		[]string{"service", "type"},
	)
	filterFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "query",
			Name:      "filter_fallback_total",
			Help:      "Total queries where metadata filters were dropped to find candidates.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryDuration,
		queryConfidence,
		retrievedPassages,
		noAnswerTotal,
		guardrailHitsTotal,
		filterFallbackTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		queryTotal:          queryTotal,
		queryDuration:       queryDuration,
		queryConfidence:     queryConfidence,
		retrievedPassages:   retrievedPassages,
		noAnswerTotal:       noAnswerTotal,
		guardrailHitsTotal:  guardrailHitsTotal,
		filterFallbackTotal: filterFallbackTotal,
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
	case strings.HasPrefix(path, "/v1/sessions/"):
		return "/v1/sessions/{session_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordQuery(service, tier string, confidence float64, passageCount int, duration time.Duration) {
	if tier == "" {
		tier = "unknown"
	}
	m.queryTotal.WithLabelValues(service, tier).Inc()
	m.queryDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.queryConfidence.WithLabelValues(service).Observe(confidence)
	m.retrievedPassages.WithLabelValues(service).Observe(float64(passageCount))
}

func (m *HTTPServerMetrics) RecordNoAnswer(service string) {
	m.noAnswerTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordGuardrailHit(service, violationType string) {
	if violationType == "" {
		violationType = "unknown"
	}
	m.guardrailHitsTotal.WithLabelValues(service, violationType).Inc()
}

func (m *HTTPServerMetrics) RecordFilterFallback(service string) {
	m.filterFallbackTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
