// Package metrics provides Prometheus metrics for the rating engine.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// durationBuckets covers whole-run and phase timings in milliseconds.
var durationBuckets = []float64{1, 5, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 300000}

// Manager manages all Prometheus metrics for the rating engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Run metrics
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	phaseDuration *prometheus.HistogramVec
	runLastUnix   prometheus.Gauge

	// Rating metrics
	entitiesRated     prometheus.Gauge
	recordsPublished  prometheus.Gauge
	factorEvaluations prometheus.Counter
	anomalies         *prometheus.CounterVec
	missingSources    *prometheus.CounterVec

	// Snapshot metrics
	snapshotsCaptured prometheus.Counter
	snapshotsSkipped  prometheus.Counter

	// Store metrics
	storeSwapDuration prometheus.Histogram
	storeQueryLatency prometheus.Histogram

	// Leaderboard metrics
	leaderboardSize      prometheus.Gauge
	leaderboardRefreshes prometheus.Counter

	// Worker metrics
	workerActiveCount prometheus.Gauge
	workerTaskLatency prometheus.Histogram
	workerErrors      prometheus.Counter

	// Notification metrics
	notifications *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rating",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
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

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.runs = m.counterVec("runs_total", "Total number of runs by mode and status", "mode", "status")
	m.runDuration = m.histogram("run_duration_milliseconds", "Whole run duration in milliseconds", durationBuckets)
	m.phaseDuration = m.histogramVec("phase_duration_milliseconds", "Pipeline phase duration in milliseconds", durationBuckets, "phase")
	m.runLastUnix = m.gauge("run_last_success_unix", "Unix time of the last successful publish")

	m.entitiesRated = m.gauge("entities_rated", "Entities rated by the last run")
	m.recordsPublished = m.gauge("records_published", "Rating records in the published set")
	m.factorEvaluations = m.counter("factor_evaluations_total", "Total factor evaluations")
	m.anomalies = m.counterVec("anomalies_total", "Data-quality anomalies by factor and kind", "factor", "kind")
	m.missingSources = m.counterVec("missing_sources_total", "Factor sources found empty or unavailable", "source")

	m.snapshotsCaptured = m.counter("snapshot_rows_captured_total", "Weekly snapshot rows written")
	m.snapshotsSkipped = m.counter("snapshot_captures_skipped_total", "Captures skipped because the date was already stored")

	m.storeSwapDuration = m.histogram("store_swap_duration_milliseconds", "Duration of the atomic publish transaction", durationBuckets)
	m.storeQueryLatency = m.histogram("store_query_latency_milliseconds", "Store read latency in milliseconds", m.histogramBuckets)

	m.leaderboardSize = m.gauge("leaderboard_size", "Entities in the in-memory leaderboard")
	m.leaderboardRefreshes = m.counter("leaderboard_refreshes_total", "Leaderboard snapshot swaps")

	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently running pipeline tasks")
	m.workerTaskLatency = m.histogram("worker_task_latency_milliseconds", "Per-entity pipeline task latency in milliseconds",
		[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100})
	m.workerErrors = m.counter("worker_errors_total", "Pipeline tasks that returned an error")

	m.notifications = m.counterVec("notifications_total", "Audit notifications by status", "status")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Current memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Current number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100})
}

// RecordRun counts a finished run.
func RecordRun(mode string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	globalManager.runs.WithLabelValues(mode, status).Inc()
}

// RecordRunDuration records a whole run duration in milliseconds.
func RecordRunDuration(ms float64) {
	globalManager.runDuration.Observe(ms)
}

// RecordPhaseDuration records a pipeline phase duration in milliseconds.
func RecordPhaseDuration(phase string, ms float64) {
	globalManager.phaseDuration.WithLabelValues(phase).Observe(ms)
}

// UpdateLastPublish sets the time of the last successful publish.
func UpdateLastPublish(unix int64) {
	globalManager.runLastUnix.Set(float64(unix))
}

// UpdateEntitiesRated sets the entity count of the last run.
func UpdateEntitiesRated(n int) {
	globalManager.entitiesRated.Set(float64(n))
}

// UpdateRecordsPublished sets the size of the published set.
func UpdateRecordsPublished(n int) {
	globalManager.recordsPublished.Set(float64(n))
}

// RecordFactorEvaluations adds n factor evaluations.
func RecordFactorEvaluations(n int) {
	globalManager.factorEvaluations.Add(float64(n))
}

// RecordAnomaly counts one data-quality anomaly.
func RecordAnomaly(factorID, kind string) {
	globalManager.anomalies.WithLabelValues(factorID, kind).Inc()
}

// RecordMissingSource counts a source found empty or unavailable.
func RecordMissingSource(source string) {
	globalManager.missingSources.WithLabelValues(source).Inc()
}

// RecordSnapshotCapture counts captured rows, or one skipped capture.
func RecordSnapshotCapture(rows int, skipped bool) {
	if skipped {
		globalManager.snapshotsSkipped.Inc()
		return
	}
	globalManager.snapshotsCaptured.Add(float64(rows))
}

// RecordStoreSwapDuration records the publish transaction duration.
func RecordStoreSwapDuration(ms float64) {
	globalManager.storeSwapDuration.Observe(ms)
}

// RecordStoreQueryLatency records a store read latency.
func RecordStoreQueryLatency(ms float64) {
	globalManager.storeQueryLatency.Observe(ms)
}

// UpdateLeaderboardSize sets the leaderboard size and counts a refresh.
func UpdateLeaderboardSize(n int) {
	globalManager.leaderboardSize.Set(float64(n))
	globalManager.leaderboardRefreshes.Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(n int) {
	globalManager.workerActiveCount.Set(float64(n))
}

// RecordWorkerTaskLatency records one task latency in milliseconds.
func RecordWorkerTaskLatency(ms float64) {
	globalManager.workerTaskLatency.Observe(ms)
}

// RecordWorkerError counts a failed task.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordNotification counts a notification attempt.
func RecordNotification(success bool) {
	status := "sent"
	if !success {
		status = "failed"
	}
	globalManager.notifications.WithLabelValues(status).Inc()
}

// RecordHTTPRequest counts a request.
func RecordHTTPRequest(endpoint, method string, statusCode int) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Inc()
}

// RecordHTTPRequestDuration records a request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method string, statusCode int, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Observe(ms)
}

// RecordErrorByComponent counts an error.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the memory gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
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
