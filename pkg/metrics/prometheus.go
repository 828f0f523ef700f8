// Package metrics provides Prometheus metrics for the padmap service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 5 * time.Second
)

// Latency buckets in milliseconds. Input processing is expected to be well
// under a millisecond unless the output sink blocks.
var defaultLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100}

// Manager manages all Prometheus metrics for the padmap service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Engine
	eventsProcessed   *prometheus.CounterVec
	eventsUnmatched   prometheus.Counter
	rulesMatched      prometheus.Counter
	processLatency    prometheus.Histogram
	activeRules       prometheus.Gauge
	mappingLoads      prometheus.Counter
	actionsDispatched *prometheus.CounterVec
	actionFailures    *prometheus.CounterVec
	sinkFailures      prometheus.Counter

	// Profiles
	profileLoads        prometheus.Counter
	profileLoadFailures *prometheus.CounterVec
	profileSaves        prometheus.Counter
	profileActivations  prometheus.Counter
	profilesKnown       prometheus.Gauge

	// Ingest
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec
	eventsDuplicate    prometheus.Counter
	laneCount          prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Stream
	streamClients prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "padmap",
		subsystem:        "engine",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.eventsProcessed = m.counterVec("events_processed_total", "Total number of input events processed by kind", "kind")
	m.eventsUnmatched = m.counter("events_unmatched_total", "Total number of input events that matched no rule")
	m.rulesMatched = m.counter("rules_matched_total", "Total number of rule matches")
	m.processLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "process_latency_milliseconds",
		Help:        "Time spent matching and dispatching one input event",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})
	m.activeRules = m.gauge("active_rules", "Number of rules in the active rule set")
	m.mappingLoads = m.counter("mapping_loads_total", "Total number of rule set swaps")
	m.actionsDispatched = m.counterVec("actions_dispatched_total", "Total number of actions issued to the output sink", "action")
	m.actionFailures = m.counterVec("action_failures_total", "Total number of actions that could not be issued", "action", "reason")
	m.sinkFailures = m.counter("sink_failures_total", "Total number of failed output sink calls")

	m.profileLoads = m.counter("profile_loads_total", "Total number of profiles loaded")
	m.profileLoadFailures = m.counterVec("profile_load_failures_total", "Total number of failed profile loads by reason", "reason")
	m.profileSaves = m.counter("profile_saves_total", "Total number of profiles saved")
	m.profileActivations = m.counter("profile_activations_total", "Total number of profile activations")
	m.profilesKnown = m.gauge("profiles_known", "Number of profiles known to the store")

	m.queueSize = m.gauge("queue_size", "Current number of queued input events")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity across lanes")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Total number of rejected enqueues by reason", "reason")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Total number of duplicate ingested events")
	m.laneCount = m.gauge("lane_count", "Number of device lanes")

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.streamClients = m.gauge("stream_clients", "Number of connected pad state stream clients")
}

// Engine metrics.

// RecordEventProcessed increments the processed events counter for kind.
func RecordEventProcessed(kind string) {
	if globalManager.enabled {
		globalManager.eventsProcessed.WithLabelValues(kind).Inc()
	}
}

// RecordEventUnmatched increments the unmatched events counter.
func RecordEventUnmatched() {
	if globalManager.enabled {
		globalManager.eventsUnmatched.Inc()
	}
}

// RecordRuleMatched increments the rule match counter.
func RecordRuleMatched() {
	if globalManager.enabled {
		globalManager.rulesMatched.Inc()
	}
}

// RecordProcessLatency records the match+dispatch latency in milliseconds.
func RecordProcessLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.processLatency.Observe(latencyMs)
	}
}

// UpdateActiveRules sets the size of the active rule set.
func UpdateActiveRules(count int) {
	globalManager.activeRules.Set(float64(count))
}

// RecordMappingLoad increments the rule set swap counter.
func RecordMappingLoad() {
	globalManager.mappingLoads.Inc()
}

// RecordActionDispatched increments the dispatched action counter.
func RecordActionDispatched(action string) {
	if globalManager.enabled {
		globalManager.actionsDispatched.WithLabelValues(action).Inc()
	}
}

// RecordActionFailure increments the failed action counter.
func RecordActionFailure(action, reason string) {
	globalManager.actionFailures.WithLabelValues(action, reason).Inc()
}

// RecordSinkFailure increments the output sink failure counter.
func RecordSinkFailure() {
	globalManager.sinkFailures.Inc()
}

// Profile metrics.

// RecordProfileLoad increments the loaded profile counter.
func RecordProfileLoad() {
	globalManager.profileLoads.Inc()
}

// RecordProfileLoadFailure increments the failed profile load counter.
func RecordProfileLoadFailure(reason string) {
	globalManager.profileLoadFailures.WithLabelValues(reason).Inc()
}

// RecordProfileSave increments the saved profile counter.
func RecordProfileSave() {
	globalManager.profileSaves.Inc()
}

// RecordProfileActivation increments the activation counter.
func RecordProfileActivation() {
	globalManager.profileActivations.Inc()
}

// UpdateProfilesKnown sets the number of profiles known to the store.
func UpdateProfilesKnown(count int) {
	globalManager.profilesKnown.Set(float64(count))
}

// Ingest metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// UpdateLaneCount sets the number of device lanes.
func UpdateLaneCount(count int) {
	globalManager.laneCount.Set(float64(count))
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateStreamClients sets the number of connected stream clients.
func UpdateStreamClients(count int) {
	globalManager.streamClients.Set(float64(count))
}

// RefreshInterval is how often polled gauges such as the queue size are
// refreshed.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
