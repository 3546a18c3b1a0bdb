// Package metrics provides Prometheus metrics for the cohort engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the cohort engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Balancer metrics - the invariant-bearing job
	balanceRuns     prometheus.Counter
	balanceRejected prometheus.Counter
	balanceAborted  prometheus.Counter
	balanceDuration prometheus.Histogram
	movesPlanned    prometheus.Counter
	movesDeferred   prometheus.Counter
	movesCommitted  prometheus.Counter
	cohortMerges    prometheus.Counter
	cohortSplits    prometheus.Counter
	globalFallbacks prometheus.Counter

	// Aggregator metrics
	aggregationRuns     prometheus.Counter
	aggregationDuration prometheus.Histogram
	snapshotCount       prometheus.Gauge

	// Partition health
	cohortCount  prometheus.Gauge
	memberCount  prometheus.Gauge
	globalBucket prometheus.Gauge
	movements    prometheus.Counter

	// Ghost data serving
	ghostRequests   prometheus.Counter
	benchmarkHits   prometheus.Counter
	benchmarkMisses prometheus.Counter

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByType        *prometheus.CounterVec
	errorLatency        *prometheus.HistogramVec

	// Progress ingestion pipeline
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueues      prometheus.Counter
	queueDequeues      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	queueLatency       prometheus.Histogram
	workerLatency      prometheus.Histogram
	workerErrors       prometheus.Counter
	workerActive       prometheus.Gauge
	progressApplied    prometheus.Counter
	progressDuplicates prometheus.Counter
	dedupeSize         prometheus.Gauge
	errorsByComponent  *prometheus.CounterVec

	// System metrics
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

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cohortd",
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

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.balanceRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "balance_runs_total",
		Help:      "Total number of completed cohort balance runs",
	})

	m.balanceRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "balance_runs_rejected_total",
		Help:      "Total number of balance triggers rejected because a run was in progress",
	})

	m.balanceAborted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "balance_runs_aborted_total",
		Help:      "Total number of balance runs aborted by validation or transfer conflicts",
	})

	m.balanceDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "balance_duration_seconds",
		Help:      "Histogram of full balance run duration in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.movesPlanned = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "moves_planned_total",
		Help:      "Total number of member moves planned across balance runs",
	})

	m.movesDeferred = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "moves_deferred_total",
		Help:      "Total number of candidate moves deferred by the per-cohort cap",
	})

	m.movesCommitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "moves_committed_total",
		Help:      "Total number of member transfers committed to the partition store",
	})

	m.cohortMerges = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cohort_merges_total",
		Help:      "Total number of undersized cohorts merged into a neighbor",
	})

	m.cohortSplits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cohort_splits_total",
		Help:      "Total number of oversized cohorts split",
	})

	m.globalFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "global_fallbacks_total",
		Help:      "Total number of cohorts whose members were reassigned to the global bucket",
	})

	m.aggregationRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregation_runs_total",
		Help:      "Total number of peer stats aggregation cycles",
	})

	m.aggregationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregation_duration_seconds",
		Help:      "Histogram of aggregation cycle duration in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.snapshotCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_count",
		Help:      "Number of cohort snapshots in the current aggregate set",
	})

	m.cohortCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cohort_count",
		Help:      "Number of non-global cohorts in the partition",
	})

	m.memberCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "member_count",
		Help:      "Number of members tracked across all cohorts",
	})

	m.globalBucket = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "global_bucket_size",
		Help:      "Number of members currently in the global fallback bucket",
	})

	m.movements = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "movements_recorded_total",
		Help:      "Total number of movement records appended to the audit log",
	})

	m.ghostRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ghost_requests_total",
		Help:      "Total number of ghost data requests served",
	})

	m.benchmarkHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "benchmark_hits_total",
		Help:      "Total number of benchmark lookups that found a qualifying entry",
	})

	m.benchmarkMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "benchmark_misses_total",
		Help:      "Total number of benchmark lookups with no qualifying entry",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by endpoint, method, and status",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "Histogram of HTTP request duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"endpoint", "method", "status"})

	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "errors_by_endpoint_total",
		Help:      "Total number of HTTP errors by endpoint and type",
	}, []string{"endpoint", "method", "error_type"})

	m.errorsByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "errors_by_type_total",
		Help:      "Total number of errors by type and severity",
	}, []string{"error_type", "severity"})

	m.errorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "error_latency_ms",
		Help:      "Histogram of failed request latency in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"component", "error_type"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "queue_size",
		Help:      "Current number of queued progress updates",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "queue_capacity",
		Help:      "Configured progress queue capacity",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "queue_utilization",
		Help:      "Progress queue fill ratio between 0 and 1",
	})

	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "queue_enqueues_total",
		Help:      "Total number of progress updates accepted into the queue",
	})

	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "queue_dequeues_total",
		Help:      "Total number of progress updates handed to workers",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of rejected enqueue attempts",
	})

	m.queueLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "queue_latency_ms",
		Help:      "Histogram of enqueue latency in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100},
	})

	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "worker_latency_ms",
		Help:      "Histogram of per-update worker processing latency in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100},
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "worker_errors_total",
		Help:      "Total number of progress updates that failed to apply",
	})

	m.workerActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "worker_active_count",
		Help:      "Number of progress workers in the pool",
	})

	m.progressApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "progress_applied_total",
		Help:      "Total number of progress updates applied to the roster",
	})

	m.progressDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "progress_duplicates_total",
		Help:      "Total number of progress updates rejected as duplicates",
	})

	m.dedupeSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "dedupe_size",
		Help:      "Number of event IDs tracked by the deduper",
	})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ingest",
		Name:      "errors_by_component_total",
		Help:      "Total number of ingestion errors by component and reason",
	}, []string{"component", "reason"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Current heap memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutine_count",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "gc_pause_ms",
		Help:      "Histogram of average GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100},
	})
}

// Package-level helpers operating on the global manager.

// RecordBalanceRun increments the completed balance run counter.
func RecordBalanceRun() {
	globalManager.balanceRuns.Inc()
}

// RecordBalanceRejected increments the rejected trigger counter.
func RecordBalanceRejected() {
	globalManager.balanceRejected.Inc()
}

// RecordBalanceAborted increments the aborted run counter.
func RecordBalanceAborted() {
	globalManager.balanceAborted.Inc()
}

// RecordBalanceDuration observes a full balance run duration in seconds.
func RecordBalanceDuration(seconds float64) {
	globalManager.balanceDuration.Observe(seconds)
}

// RecordMovesPlanned adds to the planned move counter.
func RecordMovesPlanned(n int) {
	globalManager.movesPlanned.Add(float64(n))
}

// RecordMovesDeferred adds to the deferred move counter.
func RecordMovesDeferred(n int) {
	globalManager.movesDeferred.Add(float64(n))
}

// RecordMoveCommitted increments the committed transfer counter.
func RecordMoveCommitted() {
	globalManager.movesCommitted.Inc()
}

// RecordCohortMerge increments the merge counter.
func RecordCohortMerge() {
	globalManager.cohortMerges.Inc()
}

// RecordCohortSplit increments the split counter.
func RecordCohortSplit() {
	globalManager.cohortSplits.Inc()
}

// RecordGlobalFallback increments the global fallback counter.
func RecordGlobalFallback() {
	globalManager.globalFallbacks.Inc()
}

// RecordAggregationRun increments the aggregation cycle counter.
func RecordAggregationRun() {
	globalManager.aggregationRuns.Inc()
}

// RecordAggregationDuration observes an aggregation cycle duration in seconds.
func RecordAggregationDuration(seconds float64) {
	globalManager.aggregationDuration.Observe(seconds)
}

// UpdateSnapshotCount sets the current snapshot set size.
func UpdateSnapshotCount(count int) {
	globalManager.snapshotCount.Set(float64(count))
}

// UpdateCohortCount sets the current non-global cohort count.
func UpdateCohortCount(count int) {
	globalManager.cohortCount.Set(float64(count))
}

// UpdateMemberCount sets the current tracked member count.
func UpdateMemberCount(count int) {
	globalManager.memberCount.Set(float64(count))
}

// UpdateGlobalBucketSize sets the current global bucket size.
func UpdateGlobalBucketSize(count int) {
	globalManager.globalBucket.Set(float64(count))
}

// RecordMovement increments the movement log counter.
func RecordMovement() {
	globalManager.movements.Inc()
}

// RecordGhostRequest increments the ghost data request counter.
func RecordGhostRequest() {
	globalManager.ghostRequests.Inc()
}

// RecordBenchmarkHit increments the benchmark hit counter.
func RecordBenchmarkHit() {
	globalManager.benchmarkHits.Inc()
}

// RecordBenchmarkMiss increments the benchmark miss counter.
func RecordBenchmarkMiss() {
	globalManager.benchmarkMisses.Inc()
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

// RecordErrorByEndpoint increments the per-endpoint error counter.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType increments the per-type error counter.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorLatency observes a failed request latency in milliseconds.
func RecordErrorLatency(component, errorType string, ms float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(ms)
}

// UpdateQueueSize sets the current progress queue depth.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the configured progress queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the progress queue fill ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the accepted enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency observes an enqueue latency in milliseconds.
func RecordQueueProcessingLatency(ms float64) {
	globalManager.queueLatency.Observe(ms)
}

// RecordWorkerProcessingLatency observes a worker processing latency in milliseconds.
func RecordWorkerProcessingLatency(ms float64) {
	globalManager.workerLatency.Observe(ms)
}

// RecordWorkerError increments the failed-apply counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateWorkerActiveCount sets the progress worker pool size.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordProgressApplied increments the applied progress update counter.
func RecordProgressApplied() {
	globalManager.progressApplied.Inc()
}

// RecordProgressDuplicate increments the duplicate rejection counter.
func RecordProgressDuplicate() {
	globalManager.progressDuplicates.Inc()
}

// UpdateDedupeSize sets the deduper entry count.
func UpdateDedupeSize(size int64) {
	globalManager.dedupeSize.Set(float64(size))
}

// RecordErrorByComponent increments the per-component ingestion error counter.
func RecordErrorByComponent(component, reason string) {
	globalManager.errorsByComponent.WithLabelValues(component, reason).Inc()
}

// UpdateSystemMemoryUsage sets the current heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes an average GC pause time in milliseconds.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPauseTime.Observe(ms)
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
