// Package metrics exposes Prometheus instrumentation for the orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors used by the orchestrator.
type Metrics struct {
	// Task lifecycle
	TasksSubmitted *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksFailed    *prometheus.CounterVec
	TaskRetries    *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	TasksActive    prometheus.Gauge
	TasksQueued    prometheus.Gauge

	// Worker pool
	WorkerLoad        *prometheus.GaugeVec
	WorkerStatus      *prometheus.GaugeVec
	WorkerHealthFails *prometheus.CounterVec

	// Resource manager / quota
	QuotaDenials   *prometheus.CounterVec
	QuotaTokens    *prometheus.CounterVec
	QuotaCostUSD   *prometheus.CounterVec
	ReservedCPU    prometheus.Gauge
	ReservedMemory prometheus.Gauge
	ReservedGPUs   prometheus.Gauge

	// Resilience
	CircuitBreakerState *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates and registers all orchestrator metrics under namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		TasksSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "tasks_submitted_total", Help: "Total tasks submitted"},
			[]string{"kind", "priority"},
		),
		TasksCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "tasks_completed_total", Help: "Total tasks completed successfully"},
			[]string{"kind"},
		),
		TasksFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "tasks_failed_total", Help: "Total tasks that failed terminally"},
			[]string{"kind", "reason"},
		),
		TaskRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "task_retries_total", Help: "Total task retry attempts"},
			[]string{"kind"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Task execution duration in seconds",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"kind", "worker_id"},
		),
		TasksActive: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "tasks_active", Help: "Tasks currently in flight"},
		),
		TasksQueued: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "tasks_queued", Help: "Tasks waiting in the scheduler queue"},
		),

		WorkerLoad: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "worker_load", Help: "Current concurrent load per worker"},
			[]string{"worker_id", "type"},
		),
		WorkerStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "worker_status", Help: "1 if the worker is in the given status"},
			[]string{"worker_id", "status"},
		),
		WorkerHealthFails: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "worker_health_check_failures_total", Help: "Total failed worker health probes"},
			[]string{"worker_id"},
		),

		QuotaDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "quota_denials_total", Help: "Total requests denied by quota"},
			[]string{"worker_id", "reason"},
		),
		QuotaTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "quota_tokens_total", Help: "Total tokens recorded against quota"},
			[]string{"worker_id"},
		),
		QuotaCostUSD: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "quota_cost_usd_total", Help: "Total estimated cost recorded against quota"},
			[]string{"worker_id"},
		),
		ReservedCPU: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "reserved_cpu_cores", Help: "Coarse CPU cores currently reserved"},
		),
		ReservedMemory: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "reserved_memory_mb", Help: "Coarse memory MB currently reserved"},
		),
		ReservedGPUs: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "reserved_gpus", Help: "Number of GPU reservations currently held"},
		),

		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "circuit_breaker_state", Help: "0=closed 1=half-open 2=open"},
			[]string{"name"},
		),
	}

	m.registry.MustRegister(
		m.TasksSubmitted, m.TasksCompleted, m.TasksFailed, m.TaskRetries, m.TaskDuration,
		m.TasksActive, m.TasksQueued,
		m.WorkerLoad, m.WorkerStatus, m.WorkerHealthFails,
		m.QuotaDenials, m.QuotaTokens, m.QuotaCostUSD, m.ReservedCPU, m.ReservedMemory, m.ReservedGPUs,
		m.CircuitBreakerState,
	)

	return m
}

// Registry returns the underlying Prometheus registry, e.g. to back a
// /metrics handler in the (out-of-scope) HTTP façade.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
