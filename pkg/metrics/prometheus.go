// Package metrics provides Prometheus metrics for the obdstream ingestion service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the ingestion service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion pipeline
	framesReceived *prometheus.CounterVec
	frameOutcomes  *prometheus.CounterVec
	recordKinds    *prometheus.CounterVec
	fieldsDropped  *prometheus.CounterVec
	frameLatency   prometheus.Histogram

	// Sessions
	authRejections prometheus.Counter
	sessionsOpened prometheus.Counter
	sessionsClosed *prometheus.CounterVec
	sessionsActive prometheus.Gauge

	// Storage
	storageLatency *prometheus.HistogramVec
	storageErrors  *prometheus.CounterVec
	storedRows     prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure replaces the global manager with one built from opts on a fresh
// registry. Call it at startup, before metrics are recorded or served.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	opts = append(append([]Option{}, opts...), WithPrometheusRegistry(registry))

	customRegistry = registry
	globalManager = NewManager(opts...)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "obdstream",
		subsystem:        "ingest",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.framesReceived = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("frames_received_total"),
		Help:        "Total number of frames read from telemetry sessions by message type",
		ConstLabels: labels,
	}, []string{"message_type"})

	m.frameOutcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("frame_outcomes_total"),
		Help:        "Total number of processed frames by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.recordKinds = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("records_decoded_total"),
		Help:        "Total number of decoded records by wire dialect",
		ConstLabels: labels,
	}, []string{"kind"})

	m.fieldsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("fields_dropped_total"),
		Help:        "Total number of fields dropped during mapping by reason",
		ConstLabels: labels,
	}, []string{"reason"})

	m.frameLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("frame_latency_milliseconds"),
		Help:        "Time from frame read to outcome in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.authRejections = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("auth_rejections_total"),
		Help:        "Total number of connections rejected by the credential check",
		ConstLabels: labels,
	})

	m.sessionsOpened = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("sessions_opened_total"),
		Help:        "Total number of authenticated sessions",
		ConstLabels: labels,
	})

	m.sessionsClosed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("sessions_closed_total"),
		Help:        "Total number of closed sessions by reason",
		ConstLabels: labels,
	}, []string{"reason"})

	m.sessionsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("sessions_active"),
		Help:        "Current number of streaming sessions",
		ConstLabels: labels,
	})

	m.storageLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("storage_latency_milliseconds"),
		Help:        "Store operation latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"operation"})

	m.storageErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("storage_errors_total"),
		Help:        "Total number of failed store operations",
		ConstLabels: labels,
	}, []string{"operation"})

	m.storedRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stored_rows"),
		Help:        "Number of rows in the active schema table at last count",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_component_total"),
			Help:        "Total number of errors by component",
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "System memory usage in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_time_milliseconds"),
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})
}

// Enabled reports whether the manager records anything.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// RefreshInterval is how often callers should refresh gauge metrics.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// Ingestion Metrics Functions.

// RecordFrameReceived counts one frame read from a session.
func RecordFrameReceived(messageType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.framesReceived.WithLabelValues(messageType).Inc()
}

// RecordFrameOutcome counts one processed frame and its pipeline latency.
func RecordFrameOutcome(outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.frameOutcomes.WithLabelValues(outcome).Inc()
	globalManager.frameLatency.Observe(latencyMs)
}

// RecordDecodedKind counts one decoded record by dialect.
func RecordDecodedKind(kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.recordKinds.WithLabelValues(kind).Inc()
}

// RecordFieldsDropped adds n dropped fields for reason.
func RecordFieldsDropped(reason string, n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.fieldsDropped.WithLabelValues(reason).Add(float64(n))
}

// Session Metrics Functions.

// RecordAuthRejected increments the rejected handshake counter.
func RecordAuthRejected() {
	if !globalManager.enabled {
		return
	}
	globalManager.authRejections.Inc()
}

// RecordSessionOpened increments the opened sessions counter.
func RecordSessionOpened() {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsOpened.Inc()
}

// RecordSessionClosed counts a closed session by reason.
func RecordSessionClosed(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsClosed.WithLabelValues(reason).Inc()
}

// UpdateActiveSessions sets the number of streaming sessions.
func UpdateActiveSessions(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsActive.Set(float64(count))
}

// Storage Metrics Functions.

// RecordStorageLatency records a store operation latency in milliseconds.
func RecordStorageLatency(operation string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.storageLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStorageError counts one failed store operation.
func RecordStorageError(operation string) {
	if !globalManager.enabled {
		return
	}
	globalManager.storageErrors.WithLabelValues(operation).Inc()
}

// UpdateStoredRows sets the last known row count.
func UpdateStoredRows(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.storedRows.Set(float64(count))
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
