// Package metrics provides Prometheus metrics for the attendance sync service.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the sync service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Run metrics
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	runsRejected     prometheus.Counter
	runActive        prometheus.Gauge
	lastRunTimestamp prometheus.Gauge

	// Reconciliation metrics
	punchesRetrieved prometheus.Counter
	punchesCollapsed prometheus.Counter
	groupsTotal      *prometheus.CounterVec
	statusTotal      *prometheus.CounterVec

	// Store metrics
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Scheduler and notification metrics
	schedulerTriggers *prometheus.CounterVec
	notifications     *prometheus.CounterVec

	// Queue and worker metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge
	workerTaskLatency  prometheus.Histogram
	workerPanics       prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "attendance",
		subsystem:        "sync",
		histogramBuckets: prometheus.DefBuckets,
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

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)
	msBuckets := []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("runs_total"),
		Help: "Sync runs by terminal status",
	}, []string{"status"})
	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("run_duration_seconds"),
		Help:    "Wall time of sync runs",
		Buckets: m.histogramBuckets,
	})
	m.runsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("runs_rejected_total"),
		Help: "Run requests rejected because another run was in progress",
	})
	m.runActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("run_active"),
		Help: "1 while a sync run holds the run lock",
	})
	m.lastRunTimestamp = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("last_run_timestamp_seconds"),
		Help: "Unix time the last run finished",
	})

	m.punchesRetrieved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("punches_retrieved_total"),
		Help: "Raw transactions fetched from sources",
	})
	m.punchesCollapsed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("punches_collapsed_total"),
		Help: "Duplicate reads folded by deduplication",
	})
	m.groupsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("groups_total"),
		Help: "Employee-day groups by outcome",
	}, []string{"outcome"})
	m.statusTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("status_total"),
		Help: "Classified edges by edge and status",
	}, []string{"edge", "status"})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("store_latency_milliseconds"),
		Help:    "Latency of store operations",
		Buckets: msBuckets,
	}, []string{"op"})
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("store_errors_total"),
		Help: "Store operations that failed after retries",
	}, []string{"op"})

	m.schedulerTriggers = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("scheduler_triggers_total"),
		Help: "Scheduler trigger decisions",
	}, []string{"outcome"})
	m.notifications = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("notifications_total"),
		Help: "Notification deliveries by result",
	}, []string{"result"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("queue_size"),
		Help: "Group tasks waiting for a worker",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("queue_capacity"),
		Help: "Capacity of the task queue",
	})
	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("queue_enqueue_errors_total"),
		Help: "Tasks rejected by the queue and run inline",
	})
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("worker_count"),
		Help: "Workers in the pool",
	})
	m.workerTaskLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("worker_task_latency_milliseconds"),
		Help:    "Time a worker spends on one group task",
		Buckets: msBuckets,
	})
	m.workerPanics = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("worker_panics_total"),
		Help: "Tasks that panicked and were recovered",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("http_requests_total"),
		Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("http_request_duration_milliseconds"),
		Help:    "HTTP request latency",
		Buckets: msBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_memory_bytes"),
		Help: "Allocated heap bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_goroutines"),
		Help: "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("system_gc_pause_milliseconds"),
		Help:    "Average GC pause",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})
}

// Run metrics.

// RecordRun records a finished run.
func (m *Manager) RecordRun(status string, d time.Duration) {
	if !m.enabled {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
	m.lastRunTimestamp.Set(float64(time.Now().Unix()))
}

// RecordRunRejected counts a run refused by the run lock.
func (m *Manager) RecordRunRejected() {
	if m.enabled {
		m.runsRejected.Inc()
	}
}

// SetRunActive flips the run-active gauge.
func (m *Manager) SetRunActive(active bool) {
	if !m.enabled {
		return
	}
	if active {
		m.runActive.Set(1)
		return
	}
	m.runActive.Set(0)
}

// AddPunchesRetrieved adds fetched raw transactions.
func (m *Manager) AddPunchesRetrieved(n int) {
	if m.enabled && n > 0 {
		m.punchesRetrieved.Add(float64(n))
	}
}

// AddPunchesCollapsed adds deduplicated reads.
func (m *Manager) AddPunchesCollapsed(n int) {
	if m.enabled && n > 0 {
		m.punchesCollapsed.Add(float64(n))
	}
}

// RecordGroup counts a group outcome: inserted, skipped, cancelled.
func (m *Manager) RecordGroup(outcome string) {
	if m.enabled {
		m.groupsTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordStatus counts one classified edge.
func (m *Manager) RecordStatus(edge, status string) {
	if !m.enabled {
		return
	}
	if status == "" {
		status = "none"
	}
	m.statusTotal.WithLabelValues(edge, status).Inc()
}

// RecordStoreLatency observes one store call.
func (m *Manager) RecordStoreLatency(op string, d time.Duration) {
	if m.enabled {
		m.storeLatency.WithLabelValues(op).Observe(float64(d.Milliseconds()))
	}
}

// RecordStoreError counts a store call that exhausted its retries.
func (m *Manager) RecordStoreError(op string) {
	if m.enabled {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

// RecordSchedulerTrigger counts a scheduler decision.
func (m *Manager) RecordSchedulerTrigger(outcome string) {
	if m.enabled {
		m.schedulerTriggers.WithLabelValues(outcome).Inc()
	}
}

// RecordNotification counts a delivery attempt result.
func (m *Manager) RecordNotification(success bool) {
	if !m.enabled {
		return
	}
	if success {
		m.notifications.WithLabelValues("success").Inc()
		return
	}
	m.notifications.WithLabelValues("failure").Inc()
}

// UpdateQueue sets the queue gauges.
func (m *Manager) UpdateQueue(size, capacity int) {
	if !m.enabled {
		return
	}
	m.queueSize.Set(float64(size))
	m.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected enqueue.
func (m *Manager) RecordQueueEnqueueError() {
	if m.enabled {
		m.queueEnqueueErrors.Inc()
	}
}

// UpdateWorkerCount sets the worker gauge.
func (m *Manager) UpdateWorkerCount(n int) {
	if m.enabled {
		m.workerCount.Set(float64(n))
	}
}

// RecordWorkerTask observes one task.
func (m *Manager) RecordWorkerTask(d time.Duration) {
	if m.enabled {
		m.workerTaskLatency.Observe(float64(d.Milliseconds()))
	}
}

// RecordWorkerPanic counts a recovered panic.
func (m *Manager) RecordWorkerPanic() {
	if m.enabled {
		m.workerPanics.Inc()
	}
}

// RecordHTTPRequest counts and times one request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateSystem sets the system gauges.
func (m *Manager) UpdateSystem(memBytes uint64, goroutines int, avgGCPauseMs float64) {
	if !m.enabled {
		return
	}
	m.systemMemoryUsage.Set(float64(memBytes))
	m.systemGoroutineCount.Set(float64(goroutines))
	if avgGCPauseMs > 0 {
		m.systemGCPauseTime.Observe(avgGCPauseMs)
	}
}

// StartSystemCollector samples runtime stats every refresh interval until ctx ends.
func (m *Manager) StartSystemCollector(ctx context.Context) {
	if !m.enabled {
		return
	}
	go func() {
		ticker := time.NewTicker(m.refreshInterval)
		defer ticker.Stop()
		for {
			m.sampleSystem()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (m *Manager) sampleSystem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	var avgPause float64
	if ms.NumGC > 0 {
		avgPause = float64(ms.PauseTotalNs) / float64(ms.NumGC) / 1e6
	}
	m.UpdateSystem(ms.Alloc, runtime.NumGoroutine(), avgPause)
}

// Global convenience wrappers.

func RecordRun(status string, d time.Duration)      { globalManager.RecordRun(status, d) }
func RecordRunRejected()                            { globalManager.RecordRunRejected() }
func SetRunActive(active bool)                      { globalManager.SetRunActive(active) }
func AddPunchesRetrieved(n int)                     { globalManager.AddPunchesRetrieved(n) }
func AddPunchesCollapsed(n int)                     { globalManager.AddPunchesCollapsed(n) }
func RecordGroup(outcome string)                    { globalManager.RecordGroup(outcome) }
func RecordStatus(edge, status string)              { globalManager.RecordStatus(edge, status) }
func RecordStoreLatency(op string, d time.Duration) { globalManager.RecordStoreLatency(op, d) }
func RecordStoreError(op string)                    { globalManager.RecordStoreError(op) }
func RecordSchedulerTrigger(outcome string)         { globalManager.RecordSchedulerTrigger(outcome) }
func RecordNotification(success bool)               { globalManager.RecordNotification(success) }
func UpdateQueue(size, capacity int)                { globalManager.UpdateQueue(size, capacity) }
func RecordQueueEnqueueError()                      { globalManager.RecordQueueEnqueueError() }
func UpdateWorkerCount(n int)                       { globalManager.UpdateWorkerCount(n) }
func RecordWorkerTask(d time.Duration)              { globalManager.RecordWorkerTask(d) }
func RecordWorkerPanic()                            { globalManager.RecordWorkerPanic() }
func UpdateSystem(mem uint64, goroutines int, gc float64) {
	globalManager.UpdateSystem(mem, goroutines, gc)
}

// RecordHTTPRequest records an HTTP request on the global manager.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// StartSystemCollector starts the global manager's runtime sampler.
func StartSystemCollector(ctx context.Context) { globalManager.StartSystemCollector(ctx) }

// GetRegistry returns the registry the global manager registers on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
