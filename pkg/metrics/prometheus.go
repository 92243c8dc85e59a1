// Package metrics provides Prometheus metrics for the runboard leaderboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission kinds and outcomes used as label values.
const (
	KindRun  = "run"
	KindHero = "hero"

	OutcomeAccepted    = "accepted"
	OutcomeRateLimited = "rate_limited"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
)

// latencyBuckets are tuned for millisecond storage and HTTP timings.
var latencyBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Business metrics
	submissions      *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
	heroUpserts      *prometheus.CounterVec
	queriesServed    *prometheus.CounterVec

	// Rate limiter
	rateLimitDenied  prometheus.Counter
	rateLimitClients prometheus.Gauge

	// Storage
	storageLatency *prometheus.HistogramVec
	storageErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Live feed
	feedQueueSize   prometheus.Gauge
	feedDropped     prometheus.Counter
	feedDelivered   prometheus.Counter
	liveSubscribers prometheus.Gauge

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager. Without WithPrometheusRegistry
// metrics are registered on prometheus.DefaultRegisterer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "runboard",
		subsystem:        "leaderboard",
		histogramBuckets: latencyBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.submissions = m.counterVec("submissions_total",
		"Submissions by kind (run, hero) and outcome", "kind", "outcome")
	m.validationErrors = m.counterVec("validation_errors_total",
		"Rejected run submissions by offending field", "field")
	m.heroUpserts = m.counterVec("hero_upserts_total",
		"Hero upserts by result (applied, skipped)", "result")
	m.queriesServed = m.counterVec("queries_total",
		"Leaderboard reads by kind", "kind")

	m.rateLimitDenied = m.counter("rate_limit_denied_total",
		"Submissions denied by the per-client window")
	m.rateLimitClients = m.gauge("rate_limit_clients",
		"Clients with an active rate-limit window")

	m.storageLatency = m.histogramVec("storage_latency_milliseconds",
		"Storage operation latency in milliseconds", "op")
	m.storageErrors = m.counterVec("storage_errors_total",
		"Failed storage operations", "op")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.feedQueueSize = m.gauge("feed_queue_size", "Events waiting for live dispatch")
	m.feedDropped = m.counter("feed_dropped_total", "Live feed events dropped on a full queue or slow subscriber")
	m.feedDelivered = m.counter("feed_delivered_total", "Live feed messages handed to subscribers")
	m.liveSubscribers = m.gauge("live_subscribers", "Connected live feed websocket clients")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// RecordSubmission counts a submission by kind and outcome.
func RecordSubmission(kind, outcome string) {
	globalManager.submissions.WithLabelValues(kind, outcome).Inc()
}

// RecordValidationError counts a run rejected because of field.
func RecordValidationError(field string) {
	globalManager.validationErrors.WithLabelValues(field).Inc()
}

// RecordHeroUpsert counts hero upserts; applied is false when the stored level won.
func RecordHeroUpsert(applied bool) {
	result := "skipped"
	if applied {
		result = "applied"
	}
	globalManager.heroUpserts.WithLabelValues(result).Inc()
}

// RecordQuery counts a leaderboard read.
func RecordQuery(kind string) {
	globalManager.queriesServed.WithLabelValues(kind).Inc()
}

// RecordRateLimitDenied increments the denied counter.
func RecordRateLimitDenied() {
	globalManager.rateLimitDenied.Inc()
}

// UpdateRateLimitClients sets the number of tracked client windows.
func UpdateRateLimitClients(count int) {
	globalManager.rateLimitClients.Set(float64(count))
}

// RecordStorageLatency observes a storage call duration.
func RecordStorageLatency(op string, latencyMs float64) {
	globalManager.storageLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStorageError counts a failed storage call.
func RecordStorageError(op string) {
	globalManager.storageErrors.WithLabelValues(op).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateFeedQueueSize sets the live feed backlog.
func UpdateFeedQueueSize(size int) {
	globalManager.feedQueueSize.Set(float64(size))
}

// RecordFeedDropped counts a dropped feed event.
func RecordFeedDropped() {
	globalManager.feedDropped.Inc()
}

// RecordFeedDelivered counts a feed message queued to a subscriber.
func RecordFeedDelivered() {
	globalManager.feedDelivered.Inc()
}

// UpdateLiveSubscribers sets the websocket subscriber count.
func UpdateLiveSubscribers(count int) {
	globalManager.liveSubscribers.Set(float64(count))
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
