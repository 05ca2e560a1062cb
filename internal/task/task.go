// Package task defines the unit of work the orchestrator schedules and
// routes: its kind, priority, dependencies, retry policy, and lifecycle.
package task

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what a task asks a worker to do. The router uses it to
// decide which worker capability is required.
type Kind string

const (
	KindToolCall        Kind = "TOOL_CALL"
	KindLLMRequest       Kind = "LLM_REQUEST"
	KindLocalLLMRequest Kind = "LOCAL_LLM_REQUEST"
	KindCodeExecution   Kind = "CODE_EXECUTION"
	KindBackground      Kind = "BACKGROUND"
	KindAPIRequest      Kind = "API_REQUEST"
	KindContainerTask   Kind = "CONTAINER_TASK"
	KindRemoteCompute   Kind = "REMOTE_COMPUTE"
	KindParallelBatch   Kind = "PARALLEL_BATCH"
	KindCustom          Kind = "CUSTOM"
)

// ValidKind reports whether k is one of the recognised kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindToolCall, KindLLMRequest, KindLocalLLMRequest, KindCodeExecution,
		KindBackground, KindAPIRequest, KindContainerTask, KindRemoteCompute,
		KindParallelBatch, KindCustom:
		return true
	}
	return false
}

// Priority is a total order over scheduling preference; lower value runs
// first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityBackground
)

// ParsePriority maps a case-insensitive priority string onto a Priority, as
// used by the (out-of-scope) façade's submit endpoint.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "critical":
		return PriorityCritical, nil
	case "high":
		return PriorityHigh, nil
	case "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "background":
		return PriorityBackground, nil
	default:
		return 0, fmt.Errorf("unknown priority: %q", s)
	}
}

// Status is the task lifecycle state.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusQueued          Status = "QUEUED"
	StatusRunning         Status = "RUNNING"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
	StatusCancelled       Status = "CANCELLED"
	StatusRateLimited     Status = "RATE_LIMITED"
	StatusWaitingResources Status = "WAITING_RESOURCES"
)

// Requirements describes the resources and capabilities a task needs from
// a worker.
type Requirements struct {
	CPUCores           float64
	MemoryMB           int
	GPU                bool
	MaxRuntimeSeconds  float64
	RequiredCapability string
}

// RetryPolicy controls how many times a task is retried and how long the
// orchestrator waits between attempts.
type RetryPolicy struct {
	MaxRetries     int
	BaseDelaySeconds float64
}

// DefaultRetryPolicy mirrors the spec default of 3 retries with a 1 second
// base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelaySeconds: 1.0}
}

// Backoff returns the wait duration before retry attempt number attempt
// (0-indexed): base_delay * 2^attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	seconds := p.BaseDelaySeconds * float64(uint(1)<<uint(attempt))
	return time.Duration(seconds * float64(time.Second))
}

// Result is the outcome of a single worker invocation, owned by the task
// once recorded.
type Result struct {
	Success         bool
	Data            map[string]interface{}
	Error           string
	Metrics         map[string]interface{}
	ExecutionTimeMS int64
	WorkerID        string
	Timestamp       time.Time
}

// Hooks are optional fire-and-forget callbacks invoked once, terminally.
// A hook panicking or returning must never affect task state; callers are
// responsible for recovering inside their own hook bodies if needed.
type Hooks struct {
	OnComplete func(*Task, *Result)
	OnError    func(*Task, *Result)
	OnProgress func(*Task, map[string]interface{})
}

// Task is a unit of work submitted to the orchestrator.
type Task struct {
	ID           string
	Kind         Kind
	Payload      map[string]interface{}
	Requirements Requirements
	Retry        RetryPolicy
	DependsOn    map[string]struct{}
	Tags         []string
	Metadata     map[string]interface{}
	Hooks        Hooks

	SubmittedAt time.Time

	mu          sync.Mutex
	priority    Priority
	status      Status
	retryCount  int
	startedAt   time.Time
	completedAt time.Time
	result      *Result
}

// New creates a task with a fresh id, PENDING status, and default retry
// policy. Callers override Priority/Requirements/Retry/DependsOn/Hooks on
// the returned value before submission.
func New(kind Kind, payload map[string]interface{}, priority Priority) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Kind:        kind,
		Payload:     payload,
		Requirements: Requirements{},
		Retry:       DefaultRetryPolicy(),
		DependsOn:   make(map[string]struct{}),
		Metadata:    make(map[string]interface{}),
		SubmittedAt: time.Now(),
		priority:    priority,
		status:      StatusPending,
	}
}

// Priority returns the task's scheduling priority.
func (t *Task) Priority() Priority {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.priority
}

// SetPriority overrides the scheduling priority; only meaningful before the
// task is enqueued.
func (t *Task) SetPriority(p Priority) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.priority = p
}

// Status returns the current lifecycle status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// RetryCount returns the number of retry attempts so far.
func (t *Task) RetryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retryCount
}

// Result returns the last recorded result, or nil if no attempt has
// recorded one yet. A failed attempt that still has retries left also
// records its result here.
func (t *Task) Result() *Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// StartedAt returns the timestamp of the most recent dispatch.
func (t *Task) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt
}

// CompletedAt returns the terminal timestamp, zero if not yet terminal.
func (t *Task) CompletedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedAt
}

// MarkQueued transitions PENDING/QUEUED (after a failed retry) to QUEUED.
func (t *Task) MarkQueued() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusQueued
}

// MarkStarted transitions to RUNNING and stamps startedAt.
func (t *Task) MarkStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusRunning
	t.startedAt = time.Now()
}

// MarkCompleted records a successful result and transitions to COMPLETED.
func (t *Task) MarkCompleted(result *Result) {
	t.mu.Lock()
	t.status = StatusCompleted
	t.completedAt = time.Now()
	t.result = result
	t.mu.Unlock()

	if t.Hooks.OnComplete != nil {
		t.Hooks.OnComplete(t, result)
	}
}

// MarkFailed records a failed result. If retries remain it returns to
// QUEUED and increments retryCount; otherwise it transitions terminally to
// FAILED and fires the error hook.
func (t *Task) MarkFailed(result *Result) {
	t.mu.Lock()
	if t.retryCount < t.Retry.MaxRetries {
		t.retryCount++
		t.status = StatusQueued
		t.result = result
		t.mu.Unlock()
		return
	}
	t.status = StatusFailed
	t.completedAt = time.Now()
	t.result = result
	t.mu.Unlock()

	if t.Hooks.OnError != nil {
		t.Hooks.OnError(t, result)
	}
}

// MarkRoutingFailed records a failed result and transitions terminally to
// FAILED without consuming retry budget. A routing failure (no worker
// available for the task's kind) is not a transient execution error and is
// never retried by the router.
func (t *Task) MarkRoutingFailed(result *Result) {
	t.mu.Lock()
	t.status = StatusFailed
	t.completedAt = time.Now()
	t.result = result
	t.mu.Unlock()

	if t.Hooks.OnError != nil {
		t.Hooks.OnError(t, result)
	}
}

// MarkCancelled transitions terminally to CANCELLED, e.g. on orchestrator
// shutdown.
func (t *Task) MarkCancelled(reason string) {
	t.mu.Lock()
	t.status = StatusCancelled
	t.completedAt = time.Now()
	t.result = &Result{Success: false, Error: reason, Timestamp: time.Now()}
	t.mu.Unlock()
}

// MarkRateLimited transitions momentarily to RATE_LIMITED; the caller
// decides whether to retry.
func (t *Task) MarkRateLimited() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusRateLimited
}

// IsTerminal reports whether the task has reached a terminal status.
func (t *Task) IsTerminal() bool {
	switch t.Status() {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsReady reports whether every dependency id is present in completed.
func (t *Task) IsReady(completed map[string]struct{}) bool {
	for dep := range t.DependsOn {
		if _, ok := completed[dep]; !ok {
			return false
		}
	}
	return true
}

// Less implements the scheduler's ordering: lower Priority value first,
// ties broken by earlier SubmittedAt.
func Less(a, b *Task) bool {
	pa, pb := a.Priority(), b.Priority()
	if pa != pb {
		return pa < pb
	}
	return a.SubmittedAt.Before(b.SubmittedAt)
}

// SortByPriority sorts tasks in place per Less, for callers building a
// queue snapshot.
func SortByPriority(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return Less(tasks[i], tasks[j])
	})
}
