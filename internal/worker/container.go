package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/synapseflow/compute-orchestrator/internal/platform/logger"
	"github.com/synapseflow/compute-orchestrator/internal/task"
)

// ContainerRunner is the minimum contract this worker needs from a
// container daemon: run a payload inside a container and collect a
// structured result. Image pulls, volume mounts, and the daemon socket
// protocol itself are out of scope here.
type ContainerRunner interface {
	Ping(ctx context.Context) error
	Run(ctx context.Context, payload map[string]interface{}) (output map[string]interface{}, err error)
}

// ContainerWorker runs CODE_EXECUTION, TOOL_CALL, and CONTAINER_TASK tasks
// inside a per-worker container via its embedded runner.
type ContainerWorker struct {
	base
	runner ContainerRunner
	log    logger.Logger
}

// NewContainerWorker creates a container worker with the given concurrency
// cap.
func NewContainerWorker(id string, concurrencyCap int, runner ContainerRunner, log logger.Logger) *ContainerWorker {
	return &ContainerWorker{
		base:   newBase(id, "container", CapabilitySet(CapabilityContainer, CapabilityCodeExecution, CapabilityToolCall), concurrencyCap),
		runner: runner,
		log:    log,
	}
}

func (w *ContainerWorker) Start(ctx context.Context) bool {
	if err := w.runner.Ping(ctx); err != nil {
		w.log.Warn("container worker failed to start", "worker_id", w.id, "error", err)
		return false
	}
	w.setStatus(StatusIdle)
	return true
}

func (w *ContainerWorker) Stop(ctx context.Context) {
	w.setStatus(StatusDraining)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for w.Load() > 0 {
		select {
		case <-ctx.Done():
			w.setStatus(StatusStopped)
			return
		case <-ticker.C:
		}
	}
	w.setStatus(StatusStopped)
}

func (w *ContainerWorker) CanHandle(t *task.Task) bool {
	switch t.Kind {
	case task.KindCodeExecution, task.KindToolCall, task.KindContainerTask:
	default:
		return false
	}
	return w.canHandleBase()
}

func (w *ContainerWorker) Submit(ctx context.Context, t *task.Task) *task.Result {
	release := w.acquire()
	defer release()

	start := time.Now()
	result := w.execute(ctx, t)
	w.recordResult(result, time.Since(start).Milliseconds())
	return result
}

func (w *ContainerWorker) execute(ctx context.Context, t *task.Task) (result *task.Result) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("container worker panicked", "worker_id", w.id, "recovered", r)
			result = &task.Result{
				Success:   false,
				Error:     fmt.Sprintf("container worker panicked: %v", r),
				WorkerID:  w.id,
				Timestamp: time.Now(),
			}
		}
	}()

	runCtx := ctx
	var cancel context.CancelFunc
	timeout := t.Requirements.MaxRuntimeSeconds
	if timeout <= 0 {
		timeout = 60
	}
	runCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout*float64(time.Second)))
	defer cancel()

	output, err := w.runner.Run(runCtx, t.Payload)
	if err != nil {
		if runCtx.Err() != nil {
			return &task.Result{
				Success:   false,
				Error:     "container execution timed out",
				WorkerID:  w.id,
				Timestamp: time.Now(),
			}
		}
		return &task.Result{
			Success:   false,
			Error:     fmt.Sprintf("container execution failed: %v", err),
			WorkerID:  w.id,
			Timestamp: time.Now(),
		}
	}

	return &task.Result{
		Success:   true,
		Data:      output,
		WorkerID:  w.id,
		Timestamp: time.Now(),
	}
}

func (w *ContainerWorker) HealthCheck(ctx context.Context) bool {
	err := w.runner.Ping(ctx)
	w.markHealthChecked(err == nil)
	return err == nil
}

// Pool owns a homogeneous set of container workers and supports dynamic
// resize. New workers are registered on scale-up only after Start
// succeeds; workers removed on scale-down finish in-flight work before
// deregistration.
type Pool struct {
	mu             sync.Mutex
	factory        func(id string) *ContainerWorker
	workers        map[string]*ContainerWorker
	onRegister     func(*ContainerWorker)
	onDeregister   func(string)
	maxSize        int
	nextSeq        int
}

// NewPool creates a container pool. onRegister/onDeregister are called as
// workers are added/removed so the caller (the worker registry) stays in
// sync.
func NewPool(maxSize int, factory func(id string) *ContainerWorker, onRegister func(*ContainerWorker), onDeregister func(string)) *Pool {
	return &Pool{
		factory:      factory,
		workers:      make(map[string]*ContainerWorker),
		onRegister:   onRegister,
		onDeregister: onDeregister,
		maxSize:      maxSize,
	}
}

// Resize scales the pool by delta: positive grows by starting delta new
// workers (only registering those that start successfully), negative
// shrinks by draining and removing |delta| workers. Growth is capped at
// maxSize.
func (p *Pool) Resize(ctx context.Context, delta int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if delta > 0 {
		room := p.maxSize - len(p.workers)
		if delta > room {
			delta = room
		}
		added := 0
		for i := 0; i < delta; i++ {
			p.nextSeq++
			id := fmt.Sprintf("container-%d", p.nextSeq)
			w := p.factory(id)
			if !w.Start(ctx) {
				continue
			}
			p.workers[id] = w
			if p.onRegister != nil {
				p.onRegister(w)
			}
			added++
		}
		return added
	}

	removed := 0
	for id, w := range p.workers {
		if removed >= -delta {
			break
		}
		w.Stop(ctx)
		delete(p.workers, id)
		if p.onDeregister != nil {
			p.onDeregister(id)
		}
		removed++
	}
	return removed
}

// Size returns the current number of workers in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// MaxSize returns the pool's configured upper bound.
func (p *Pool) MaxSize() int {
	return p.maxSize
}

// StopAll stops every worker in the pool, for orchestrator shutdown.
func (p *Pool) StopAll(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, w := range p.workers {
		w.Stop(ctx)
		if p.onDeregister != nil {
			p.onDeregister(id)
		}
	}
	p.workers = make(map[string]*ContainerWorker)
}
