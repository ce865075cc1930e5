package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Chat pipeline metrics
	chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devchat_chat_requests_total",
		Help: "Total number of chat requests",
	}, []string{"status"})

	chatRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devchat_chat_request_duration_seconds",
		Help:    "Duration of chat requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	// Model metrics
	modelRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devchat_model_request_duration_seconds",
		Help:    "Duration of language model requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	modelRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devchat_model_requests_total",
		Help: "Total number of language model requests",
	}, []string{"status"})

	// Cache metrics
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devchat_cache_hits_total",
		Help: "Total number of cache hits",
	}, []string{"kind"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devchat_cache_misses_total",
		Help: "Total number of cache misses",
	}, []string{"kind"})

	// Rate limit metrics
	rateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devchat_rate_limit_rejections_total",
		Help: "Total number of throttled requests",
	})

	// Directory metrics
	directoryOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devchat_directory_operations_total",
		Help: "Total number of chatbot directory operations",
	}, []string{"operation", "status"})

	directoryOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devchat_directory_operation_duration_seconds",
		Help:    "Duration of chatbot directory operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// Session metrics
	sessionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devchat_sessions_recorded_total",
		Help: "Total number of analytics sessions recorded",
	}, []string{"action"})

	// Engine registry gauge
	activeEngines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devchat_active_engines",
		Help: "Number of live conversation engines",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordChatRequest records a completed chat request
func (m *Metrics) RecordChatRequest(status string, duration time.Duration) {
	chatRequests.WithLabelValues(status).Inc()
	chatRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordModelRequest records a language model call
func (m *Metrics) RecordModelRequest(status string, duration time.Duration) {
	modelRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
	modelRequestsTotal.WithLabelValues(status).Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(kind string) {
	cacheHits.WithLabelValues(kind).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(kind string) {
	cacheMisses.WithLabelValues(kind).Inc()
}

// RecordRateLimitRejection records a throttled request
func (m *Metrics) RecordRateLimitRejection() {
	rateLimitRejections.Inc()
}

// RecordDirectoryOperation records a directory operation
func (m *Metrics) RecordDirectoryOperation(operation, status string, duration time.Duration) {
	directoryOperations.WithLabelValues(operation, status).Inc()
	directoryOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSession records an analytics session event
func (m *Metrics) RecordSession(action string) {
	sessionsRecorded.WithLabelValues(action).Inc()
}

// SetActiveEngines sets the live engine count
func (m *Metrics) SetActiveEngines(count float64) {
	activeEngines.Set(count)
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
