// Package worker defines the capability-typed execution backends the
// orchestrator dispatches tasks to, and the variants that implement them.
package worker

import (
	"context"

	"github.com/synapseflow/compute-orchestrator/internal/task"
)

// Capability tags what kind of work a worker can perform; the router
// matches a task's required capability against a worker's capability set.
type Capability string

const (
	CapabilityLocalLLM      Capability = "LOCAL_LLM"
	CapabilityLLMInference  Capability = "LLM_INFERENCE"
	CapabilityContainer     Capability = "CONTAINER"
	CapabilityCodeExecution Capability = "CODE_EXECUTION"
	CapabilityToolCall      Capability = "TOOL_CALL"
	CapabilityRemote        Capability = "REMOTE"
)

// Status is a worker's lifecycle/health state.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusBusy      Status = "BUSY"
	StatusDraining  Status = "DRAINING"
	StatusUnhealthy Status = "UNHEALTHY"
	StatusStopped   Status = "STOPPED"
)

// Metrics accumulates cumulative execution statistics for a worker.
type Metrics struct {
	TasksExecuted   int64
	Failures        int64
	TotalDurationMS int64
}

// AverageDurationMS returns the mean task duration, zero if no task has
// completed yet.
func (m Metrics) AverageDurationMS() float64 {
	if m.TasksExecuted == 0 {
		return 0
	}
	return float64(m.TotalDurationMS) / float64(m.TasksExecuted)
}

// Worker is the contract every execution backend satisfies. Implementations
// must be safe for concurrent use: Submit runs concurrently with
// HealthCheck and with other Submit calls up to the worker's own
// concurrency cap.
type Worker interface {
	ID() string
	Type() string
	Capabilities() map[Capability]struct{}

	// Start performs a one-time handshake. Idempotent; returns false
	// without panicking on failure.
	Start(ctx context.Context) bool

	// Stop drains in-flight tasks on a best-effort basis and releases
	// handles.
	Stop(ctx context.Context)

	// CanHandle reports whether the worker's capability set covers the
	// task's requirement, the worker is IDLE, and current load is below
	// its concurrency cap.
	CanHandle(t *task.Task) bool

	// Submit executes t and blocks until completion. Implementations must
	// increment load on entry and decrement it on every exit path, never
	// let an internal panic escape, and always return a Result.
	Submit(ctx context.Context, t *task.Task) *task.Result

	// HealthCheck performs a lightweight liveness probe, flips Status to
	// UNHEALTHY on failure and back to IDLE on recovery.
	HealthCheck(ctx context.Context) bool

	Status() Status
	Load() int
	ConcurrencyCap() int
	Metrics() Metrics
}

// HasCapability reports whether cap is present in caps.
func HasCapability(caps map[Capability]struct{}, cap Capability) bool {
	_, ok := caps[cap]
	return ok
}

// CapabilitySet builds a capability set from a variadic list.
func CapabilitySet(caps ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}
