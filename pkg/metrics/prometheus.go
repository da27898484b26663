// Package metrics provides Prometheus metrics for the botscope analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Pipeline progress
	playersProcessed prometheus.Counter
	playerLatency    prometheus.Histogram
	queueRemaining   prometheus.Gauge
	budgetRemaining  prometheus.Gauge
	workerCount      prometheus.Gauge

	// Degradations
	stageFailures *prometheus.CounterVec
	parseFailures *prometheus.CounterVec

	// Outcomes
	verdicts *prometheus.CounterVec
	persists *prometheus.CounterVec

	// Oracle
	oracleCalls   *prometheus.CounterVec
	oracleRetries prometheus.Counter
	oracleLatency prometheus.Histogram

	// Queue
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	taskQueueDepth     prometheus.Gauge

	// Ops HTTP
	httpRequests *prometheus.CounterVec
	httpLatency  prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init replaces the global manager with one built from opts on a fresh registry.
// Call it once at startup, before any handler captures GetRegistry.
func Init(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "botscope",
		subsystem:        "pipeline",
		histogramBuckets: []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		enabled:          true,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.playersProcessed = m.counter("players_processed_total", "Players that went through every stage and produced a report")
	m.playerLatency = m.histogram("player_latency_milliseconds", "Wall time spent on one player across all stages")
	m.queueRemaining = m.gauge("queue_remaining", "Player ids still waiting in the pipeline queue")
	m.budgetRemaining = m.gauge("step_budget_remaining", "Steps left before the pipeline terminates")
	m.workerCount = m.gauge("worker_count", "Workers analysing players concurrently")

	m.stageFailures = m.counterVec("stage_failures_total", "Stages that degraded to a neutral result", "stage", "kind")
	m.parseFailures = m.counterVec("parse_failures_total", "Oracle replies whose score could not be parsed", "signal")

	m.verdicts = m.counterVec("verdicts_total", "Final classifications by label", "label")
	m.persists = m.counterVec("persist_total", "Classification writes by status", "status")

	m.oracleCalls = m.counterVec("oracle_calls_total", "Oracle calls by outcome", "outcome")
	m.oracleRetries = m.counter("oracle_retries_total", "Oracle calls retried after a failure")
	m.oracleLatency = m.histogram("oracle_latency_milliseconds", "Latency of a single oracle call")

	m.queueEnqueued = m.counter("queue_enqueued_total", "Player tasks accepted by the work queue")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Player tasks rejected by the work queue", "reason")
	m.taskQueueDepth = m.gauge("task_queue_depth", "Player tasks buffered between the controller and the workers")

	m.httpRequests = m.counterVec("http_requests_total", "Ops HTTP requests", "endpoint", "method", "status")
	m.httpLatency = m.histogram("http_request_duration_milliseconds", "Ops HTTP request latency")
}

// RecordPlayerProcessed counts a completed player and its latency.
func RecordPlayerProcessed(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.playersProcessed.Inc()
	globalManager.playerLatency.Observe(latencyMs)
}

// UpdateTaskQueueDepth sets the buffered-task gauge of the worker queue.
func UpdateTaskQueueDepth(n int) {
	globalManager.taskQueueDepth.Set(float64(n))
}

// UpdateQueueRemaining sets the pending-player gauge.
func UpdateQueueRemaining(n int) {
	globalManager.queueRemaining.Set(float64(n))
}

// UpdateBudgetRemaining sets the step budget gauge.
func UpdateBudgetRemaining(n int) {
	globalManager.budgetRemaining.Set(float64(n))
}

// UpdateWorkerCount sets the worker gauge.
func UpdateWorkerCount(n int) {
	globalManager.workerCount.Set(float64(n))
}

// RecordStageFailure counts a degraded stage.
func RecordStageFailure(stage, kind string) {
	globalManager.stageFailures.WithLabelValues(stage, kind).Inc()
}

// RecordParseFailure counts an unparseable score for signal.
func RecordParseFailure(signal string) {
	globalManager.parseFailures.WithLabelValues(signal).Inc()
}

// RecordVerdict counts a final label.
func RecordVerdict(label string) {
	globalManager.verdicts.WithLabelValues(label).Inc()
}

// RecordPersist counts a classification write outcome.
func RecordPersist(status string) {
	globalManager.persists.WithLabelValues(status).Inc()
}

// RecordOracleCall counts one oracle call and records its latency in milliseconds.
func RecordOracleCall(latencyMs float64, outcome string) {
	globalManager.oracleCalls.WithLabelValues(outcome).Inc()
	globalManager.oracleLatency.Observe(latencyMs)
}

// RecordOracleRetry counts a retried oracle call.
func RecordOracleRetry() {
	globalManager.oracleRetries.Inc()
}

// RecordQueueEnqueue counts an accepted task.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueEnqueueError counts a rejected task.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest counts one ops HTTP request and its latency.
func RecordHTTPRequest(endpoint, method, status string, latencyMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	globalManager.httpLatency.Observe(latencyMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
