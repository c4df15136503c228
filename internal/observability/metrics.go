package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	turnsTotal        *prometheus.CounterVec
	turnDuration      *prometheus.HistogramVec
	streamFragments   prometheus.Counter
	activeSessions    prometheus.Gauge
	sessionsEvicted   prometheus.Counter
	retrievalDuration prometheus.Histogram
	indexedChunks     prometheus.Gauge
	summariesTotal    *prometheus.CounterVec
	mailTotal         *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			turnsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_turns_total",
					Help: "Total chat turns by kind and status.",
				},
				[]string{"kind", "status"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chat_turn_duration_seconds",
					Help:    "Chat turn duration in seconds by kind.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"kind"},
			),
			streamFragments: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "chat_stream_fragments_total",
					Help: "Total streamed response fragments emitted.",
				},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current active session count.",
				},
			),
			sessionsEvicted: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_evicted_total",
					Help: "Total sessions evicted by the idle sweeper.",
				},
			),
			retrievalDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "retrieval_duration_seconds",
					Help:    "Document retrieval duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			indexedChunks: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "indexed_chunks_total",
					Help: "Total document chunks currently indexed.",
				},
			),
			summariesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "summaries_total",
					Help: "Total summary generations by status.",
				},
				[]string{"status"},
			),
			mailTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mail_deliveries_total",
					Help: "Total summary mail deliveries by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.turnsTotal,
			m.turnDuration,
			m.streamFragments,
			m.activeSessions,
			m.sessionsEvicted,
			m.retrievalDuration,
			m.indexedChunks,
			m.summariesTotal,
			m.mailTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordTurn records a completed chat turn.
func RecordTurn(kind string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.turnsTotal.WithLabelValues(kind, status).Inc()
	m.turnDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordStreamFragment counts one emitted response fragment.
func RecordStreamFragment() {
	getMetrics().streamFragments.Inc()
}

// SetActiveSessions updates the active session gauge.
func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

// RecordSessionsEvicted counts sessions removed by the idle sweeper.
func RecordSessionsEvicted(count int) {
	getMetrics().sessionsEvicted.Add(float64(count))
}

// RecordRetrieval records a retrieval call duration.
func RecordRetrieval(duration time.Duration) {
	getMetrics().retrievalDuration.Observe(duration.Seconds())
}

// SetIndexedChunks updates the indexed chunk gauge.
func SetIndexedChunks(count int) {
	getMetrics().indexedChunks.Set(float64(count))
}

// RecordSummary records a summary generation attempt.
func RecordSummary(success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().summariesTotal.WithLabelValues(status).Inc()
}

// RecordMailDelivery records a summary mail delivery attempt.
func RecordMailDelivery(success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().mailTotal.WithLabelValues(status).Inc()
}
