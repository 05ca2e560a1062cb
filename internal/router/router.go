// Package router decides which worker handles a task, detects cyclic task
// dependency graphs, and levels a batch into parallel-safe waves.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/synapseflow/compute-orchestrator/internal/platform/logger"
	"github.com/synapseflow/compute-orchestrator/internal/platform/resilience"
	"github.com/synapseflow/compute-orchestrator/internal/registry"
	"github.com/synapseflow/compute-orchestrator/internal/task"
	"github.com/synapseflow/compute-orchestrator/internal/worker"
)

// ErrNoWorkerAvailable is returned when no registered worker can currently
// handle a task.
var ErrNoWorkerAvailable = errors.New("no worker available for task")

// ErrDependencyCycle is returned when a batch's DependsOn edges form a
// cycle.
var ErrDependencyCycle = errors.New("task batch contains a dependency cycle")

// Router selects a worker per task kind and drives single/parallel/retry
// execution against the registry.
type Router struct {
	registry *registry.Registry
	log      logger.Logger
	breakers *resilience.CircuitBreakerRegistry

	mu        sync.Mutex
	completed map[string]struct{}
	stats     Stats
}

// Stats tracks cumulative routing outcomes for GetTaskStats.
type Stats struct {
	Routed    int64
	Succeeded int64
	Failed    int64
	Retried   int64
}

// New creates a router over reg. breakers guards calls to workers that
// cross a network boundary (CapabilityRemote, or CapabilityLLMInference
// without CapabilityLocalLLM); a nil breakers registry disables circuit
// breaking entirely.
func New(reg *registry.Registry, log logger.Logger, breakers *resilience.CircuitBreakerRegistry) *Router {
	return &Router{
		registry:  reg,
		log:       log,
		breakers:  breakers,
		completed: make(map[string]struct{}),
	}
}

// needsBreaker reports whether w's calls cross a network boundary and
// should be guarded by a circuit breaker. Local-LLM workers also advertise
// CapabilityLLMInference and are excluded by their CapabilityLocalLLM tag.
func needsBreaker(w worker.Worker) bool {
	caps := w.Capabilities()
	if worker.HasCapability(caps, worker.CapabilityRemote) {
		return true
	}
	return worker.HasCapability(caps, worker.CapabilityLLMInference) && !worker.HasCapability(caps, worker.CapabilityLocalLLM)
}

// Route selects the best worker for t per the routing table: LOCAL_LLM and
// container/code-execution kinds prefer the first available match, LLM and
// default kinds prefer the registry's lowest-load/lowest-cost pick.
func (r *Router) Route(t *task.Task) (worker.Worker, error) {
	var w worker.Worker
	switch t.Kind {
	case task.KindLocalLLMRequest:
		w = firstAvailable(r.registry.ByCapability(worker.CapabilityLocalLLM))
	case task.KindContainerTask:
		w = firstAvailable(r.registry.ByCapability(worker.CapabilityContainer))
	case task.KindCodeExecution:
		w = firstAvailable(r.registry.ByCapability(worker.CapabilityCodeExecution))
	case task.KindToolCall:
		w = r.registry.BestFor(t)
	case task.KindLLMRequest, task.KindAPIRequest:
		w = r.registry.BestFor(t)
	default:
		w = r.registry.BestFor(t)
	}

	if w == nil {
		return nil, fmt.Errorf("%w: kind=%s", ErrNoWorkerAvailable, t.Kind)
	}
	return w, nil
}

// submit executes t on w, wrapping the call in a per-worker circuit
// breaker when w crosses a network boundary and a breaker registry is
// configured. An open circuit short-circuits to a failed result without
// touching the worker, so a stalled cloud/remote endpoint stops eating
// capacity from every task routed its way.
func (r *Router) submit(ctx context.Context, w worker.Worker, t *task.Task) *task.Result {
	if r.breakers == nil || !needsBreaker(w) {
		return w.Submit(ctx, t)
	}

	cb := r.breakers.Get(w.ID())
	var result *task.Result
	err := cb.Execute(ctx, func() error {
		result = w.Submit(ctx, t)
		if !result.Success {
			return errors.New(result.Error)
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return &task.Result{Success: false, Error: fmt.Sprintf("circuit open for worker %s", w.ID()), Timestamp: timeNow()}
	}
	return result
}

func firstAvailable(workers []worker.Worker) worker.Worker {
	for _, w := range workers {
		if w.Status() == worker.StatusIdle && w.Load() < w.ConcurrencyCap() {
			return w
		}
	}
	return nil
}

// Run routes and executes t once, recording the outcome in the router's
// completed-set on success.
func (r *Router) Run(ctx context.Context, t *task.Task) *task.Result {
	w, err := r.Route(t)
	if err != nil {
		result := &task.Result{Success: false, Error: err.Error(), Timestamp: timeNow()}
		t.MarkRoutingFailed(result)
		r.recordRouted(false)
		return result
	}

	t.MarkStarted()
	r.recordRouted(true)
	result := r.submit(ctx, w, t)
	result.ExecutionTimeMS = timeSince(t.StartedAt())

	if result.Success {
		t.MarkCompleted(result)
		r.markCompleted(t.ID)
		r.recordOutcome(true)
	} else {
		t.MarkFailed(result)
		r.recordOutcome(false)
	}
	return result
}

// RunWithRetry runs t, and on failure retries up to t.Retry.MaxRetries with
// exponential backoff, sleeping between attempts.
func (r *Router) RunWithRetry(ctx context.Context, t *task.Task) *task.Result {
	for {
		result := r.Run(ctx, t)
		if result.Success || t.IsTerminal() {
			return result
		}

		attempt := t.RetryCount()
		r.mu.Lock()
		r.stats.Retried++
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return result
		case <-time.After(t.Retry.Backoff(attempt - 1)):
		}
	}
}

// RunParallel routes tasks with no outstanding dependency first, leveling
// the batch topologically so each wave runs with at most maxConcurrent
// tasks in flight. Returns ErrDependencyCycle if the batch's DependsOn
// edges are cyclic.
func (r *Router) RunParallel(ctx context.Context, tasks []*task.Task, maxConcurrent int) ([]*task.Result, error) {
	levels, err := levelize(tasks)
	if err != nil {
		return nil, err
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	results := make(map[string]*task.Result, len(tasks))
	var resultsMu sync.Mutex

	for _, wave := range levels {
		sem := make(chan struct{}, maxConcurrent)
		var wg sync.WaitGroup
		for _, t := range wave {
			wg.Add(1)
			sem <- struct{}{}
			go func(t *task.Task) {
				defer wg.Done()
				defer func() { <-sem }()
				res := func() (res *task.Result) {
					defer func() {
						if rec := recover(); rec != nil {
							r.log.Error("task panicked during parallel run", "task_id", t.ID, "recovered", rec)
							res = &task.Result{Success: false, Error: fmt.Sprintf("task panicked: %v", rec), Timestamp: timeNow()}
							t.MarkFailed(res)
						}
					}()
					return r.RunWithRetry(ctx, t)
				}()
				resultsMu.Lock()
				results[t.ID] = res
				resultsMu.Unlock()
			}(t)
		}
		wg.Wait()
	}

	ordered := make([]*task.Result, len(tasks))
	for i, t := range tasks {
		ordered[i] = results[t.ID]
	}
	return ordered, nil
}

// levelize performs a DFS cycle check (grounded on the same recursion-stack
// pattern used to validate workflow node graphs) and groups tasks into
// waves where every task's dependencies lie in an earlier wave.
func levelize(tasks []*task.Task) ([][]*task.Task, error) {
	byID := make(map[string]*task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var visit func(id string) bool
	visit = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		if t, ok := byID[id]; ok {
			for dep := range t.DependsOn {
				if _, known := byID[dep]; !known {
					continue
				}
				if !visited[dep] {
					if visit(dep) {
						return true
					}
				} else if recStack[dep] {
					return true
				}
			}
		}

		recStack[id] = false
		return false
	}

	for _, t := range tasks {
		if !visited[t.ID] {
			if visit(t.ID) {
				return nil, ErrDependencyCycle
			}
		}
	}

	levelOf := make(map[string]int, len(tasks))
	var depth func(id string) int
	depth = func(id string) int {
		if lvl, ok := levelOf[id]; ok {
			return lvl
		}
		t, ok := byID[id]
		if !ok || len(t.DependsOn) == 0 {
			levelOf[id] = 0
			return 0
		}
		max := 0
		for dep := range t.DependsOn {
			if _, known := byID[dep]; !known {
				continue
			}
			if d := depth(dep) + 1; d > max {
				max = d
			}
		}
		levelOf[id] = max
		return max
	}

	maxLevel := 0
	for _, t := range tasks {
		if d := depth(t.ID); d > maxLevel {
			maxLevel = d
		}
	}

	levels := make([][]*task.Task, maxLevel+1)
	for _, t := range tasks {
		lvl := levelOf[t.ID]
		levels[lvl] = append(levels[lvl], t)
	}
	return levels, nil
}

func (r *Router) markCompleted(id string) {
	r.mu.Lock()
	r.completed[id] = struct{}{}
	r.mu.Unlock()
}

func (r *Router) recordRouted(ok bool) {
	r.mu.Lock()
	r.stats.Routed++
	if !ok {
		r.stats.Failed++
	}
	r.mu.Unlock()
}

func (r *Router) recordOutcome(success bool) {
	r.mu.Lock()
	if success {
		r.stats.Succeeded++
	} else {
		r.stats.Failed++
	}
	r.mu.Unlock()
}

// CompletedIDs returns a snapshot of task ids the router has completed
// successfully, for dependency-readiness checks.
func (r *Router) CompletedIDs() map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]struct{}, len(r.completed))
	for id := range r.completed {
		out[id] = struct{}{}
	}
	return out
}

// GetTaskStats returns a snapshot of cumulative routing statistics.
func (r *Router) GetTaskStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func timeNow() time.Time { return time.Now() }

func timeSince(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return time.Since(t).Milliseconds()
}
