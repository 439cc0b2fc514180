// Package metrics provides Prometheus metrics for the achat assignment service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// complexityBuckets cover the scorer's range; the soft cap keeps almost every
// request below 200.
var complexityBuckets = []float64{1, 2, 5, 10, 20, 35, 50, 75, 100, 125, 150, 200} //nolint:gochecknoglobals // bucket layout

// Manager manages all Prometheus metrics for the achat service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Assignment engine
	requestsCreated   *prometheus.CounterVec
	assignments       *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	complexityScore   prometheus.Histogram
	buyerWorkload     *prometheus.GaugeVec
	buyersTotal       prometheus.Gauge
	activeRequests    prometheus.Gauge

	// Batch optimizer
	batchRuns          *prometheus.CounterVec
	batchSolveDuration *prometheus.HistogramVec
	batchMaxLoad       prometheus.Gauge
	batchSize          prometheus.Histogram

	// Mutation queue and writer
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	mutationLatency    prometheus.Histogram
	mutationErrors     prometheus.Counter

	// Store
	storeRecords        *prometheus.GaugeVec
	storePersistLatency prometheus.Histogram
	storePersistErrors  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of /metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "achat",
		subsystem:        "assignment",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.requestsCreated = auto.NewCounterVec(m.counterOpts("requests_created_total",
		"Dossiers created, by type and initial status"), []string{"type", "status"})
	m.assignments = auto.NewCounterVec(m.counterOpts("assignments_total",
		"Dossiers assigned to a buyer, by strategy (greedy, manual, batch)"), []string{"strategy"})
	m.statusTransitions = auto.NewCounterVec(m.counterOpts("status_transitions_total",
		"Dossier lifecycle transitions"), []string{"from", "to"})
	m.complexityScore = auto.NewHistogram(m.histogramOpts("complexity_score",
		"Complexity score of created dossiers (load units)", complexityBuckets))
	m.buyerWorkload = auto.NewGaugeVec(m.gaugeOpts("buyer_workload",
		"Sum of complexity of a buyer's active dossiers"), []string{"buyer"})
	m.buyersTotal = auto.NewGauge(m.gaugeOpts("buyers_total", "Registered buyers"))
	m.activeRequests = auto.NewGauge(m.gaugeOpts("active_requests", "Dossiers in Active status"))

	m.batchRuns = auto.NewCounterVec(m.counterOpts("batch_runs_total",
		"Batch optimizer runs by solver and result status"), []string{"solver", "status"})
	m.batchSolveDuration = auto.NewHistogramVec(m.histogramOpts("batch_solve_duration_milliseconds",
		"Wall-clock time spent in the batch solver", []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000}), []string{"solver"})
	m.batchMaxLoad = auto.NewGauge(m.gaugeOpts("batch_max_load", "Achieved maximum load of the last batch run"))
	m.batchSize = auto.NewHistogram(m.histogramOpts("batch_size", "Dossiers per batch run",
		[]float64{1, 2, 5, 10, 20, 50, 100}))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Pending mutations in the writer queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Capacity of the writer queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Writer queue fill ratio (0-1)"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Mutations accepted by the queue"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Mutations handed to the writer"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total",
		"Mutations rejected by the queue (full, closed or cancelled)"))
	m.mutationLatency = auto.NewHistogram(m.histogramOpts("mutation_latency_milliseconds",
		"Time the writer spends applying one mutation", m.histogramBuckets))
	m.mutationErrors = auto.NewCounter(m.counterOpts("mutation_errors_total", "Mutations that returned an error"))

	m.storeRecords = auto.NewGaugeVec(m.gaugeOpts("store_records", "Records held by the store, by kind"), []string{"kind"})
	m.storePersistLatency = auto.NewHistogram(m.histogramOpts("store_persist_latency_milliseconds",
		"Time spent writing the store to disk", m.histogramBuckets))
	m.storePersistErrors = auto.NewCounter(m.counterOpts("store_persist_errors_total", "Failed store persist calls"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component and error type"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total",
		"Errors by type and severity"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"HTTP errors by endpoint, method and type"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Live goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds",
		"Average GC pause time", m.histogramBuckets))
}

// Assignment engine.

// RecordRequestCreated counts a new dossier and observes its complexity.
func RecordRequestCreated(requestType, status string, complexity float64) {
	globalManager.requestsCreated.WithLabelValues(requestType, status).Inc()
	globalManager.complexityScore.Observe(complexity)
}

// RecordAssignment counts an assignment made with the given strategy.
func RecordAssignment(strategy string) {
	globalManager.assignments.WithLabelValues(strategy).Inc()
}

// RecordAssignments counts n assignments made with the given strategy.
func RecordAssignments(strategy string, n int) {
	globalManager.assignments.WithLabelValues(strategy).Add(float64(n))
}

// RecordStatusTransition counts a lifecycle transition.
func RecordStatusTransition(from, to string) {
	globalManager.statusTransitions.WithLabelValues(from, to).Inc()
}

// UpdateBuyerWorkloads replaces the per-buyer workload gauges.
func UpdateBuyerWorkloads(loads map[string]float64) {
	globalManager.buyerWorkload.Reset()
	for buyer, load := range loads {
		globalManager.buyerWorkload.WithLabelValues(buyer).Set(load)
	}
	globalManager.buyersTotal.Set(float64(len(loads)))
}

// UpdateActiveRequests sets the number of active dossiers.
func UpdateActiveRequests(count int) {
	globalManager.activeRequests.Set(float64(count))
}

// Batch optimizer.

// RecordBatchRun records one optimizer run.
func RecordBatchRun(solver, status string, size int, durationMs, maxLoad float64) {
	globalManager.batchRuns.WithLabelValues(solver, status).Inc()
	globalManager.batchSolveDuration.WithLabelValues(solver).Observe(durationMs)
	globalManager.batchSize.Observe(float64(size))
	globalManager.batchMaxLoad.Set(maxLoad)
}

// RecordBatchFailure records an infeasible optimizer run.
func RecordBatchFailure(solver string) {
	globalManager.batchRuns.WithLabelValues(solver, "infeasible").Inc()
}

// Queue and writer.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordMutationLatency observes the time spent applying one mutation.
func RecordMutationLatency(latencyMs float64) {
	globalManager.mutationLatency.Observe(latencyMs)
}

// RecordMutationError increments the failed mutation counter.
func RecordMutationError() {
	globalManager.mutationErrors.Inc()
}

// Store.

// UpdateStoreRecords sets the record count for kind ("requests" or "buyers").
func UpdateStoreRecords(kind string, count int) {
	globalManager.storeRecords.WithLabelValues(kind).Set(float64(count))
}

// RecordStorePersist observes a persist call.
func RecordStorePersist(latencyMs float64, err error) {
	globalManager.storePersistLatency.Observe(latencyMs)
	if err != nil {
		globalManager.storePersistErrors.Inc()
	}
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

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
