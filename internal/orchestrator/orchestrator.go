// Package orchestrator wires the registry, router, scheduler, and resource
// manager into the orchestrator's public submit/status/shutdown surface.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/synapseflow/compute-orchestrator/internal/platform/config"
	"github.com/synapseflow/compute-orchestrator/internal/platform/credential"
	"github.com/synapseflow/compute-orchestrator/internal/platform/health"
	"github.com/synapseflow/compute-orchestrator/internal/platform/logger"
	"github.com/synapseflow/compute-orchestrator/internal/platform/messaging/kafka"
	"github.com/synapseflow/compute-orchestrator/internal/platform/metrics"
	"github.com/synapseflow/compute-orchestrator/internal/platform/resilience"
	"github.com/synapseflow/compute-orchestrator/internal/platform/telemetry"
	"github.com/synapseflow/compute-orchestrator/internal/registry"
	"github.com/synapseflow/compute-orchestrator/internal/resource"
	"github.com/synapseflow/compute-orchestrator/internal/router"
	"github.com/synapseflow/compute-orchestrator/internal/scheduler"
	"github.com/synapseflow/compute-orchestrator/internal/task"
	"github.com/synapseflow/compute-orchestrator/internal/worker"
)

// HookPublisher observes task completion/failure, e.g. to emit lifecycle
// events. KafkaHookPublisher is the concrete implementation backed by
// platform/messaging/kafka.
type HookPublisher interface {
	OnComplete(t *task.Task, result *task.Result)
	OnError(t *task.Task, result *task.Result)
}

// KafkaHookPublisher publishes task lifecycle events to Kafka.
type KafkaHookPublisher struct {
	publisher *kafka.Publisher
	log       logger.Logger
}

// NewKafkaHookPublisher wraps an already-connected Kafka publisher.
func NewKafkaHookPublisher(p *kafka.Publisher, log logger.Logger) *KafkaHookPublisher {
	return &KafkaHookPublisher{publisher: p, log: log}
}

// OnComplete publishes a task.completed event, fire-and-forget.
func (k *KafkaHookPublisher) OnComplete(t *task.Task, result *task.Result) {
	k.publish(t, kafka.EventTaskCompleted, result)
}

// OnError publishes a task.failed event, fire-and-forget.
func (k *KafkaHookPublisher) OnError(t *task.Task, result *task.Result) {
	k.publish(t, kafka.EventTaskFailed, result)
}

func (k *KafkaHookPublisher) publish(t *task.Task, eventType kafka.EventType, result *task.Result) {
	event := &kafka.Event{
		Type:   eventType,
		TaskID: t.ID,
		Payload: map[string]interface{}{
			"kind":    string(t.Kind),
			"success": result.Success,
			"error":   result.Error,
		},
	}
	if err := k.publisher.Publish(context.Background(), event); err != nil {
		k.log.Warn("failed to publish task event", "task_id", t.ID, "event", eventType, "error", err)
	}
}

// Orchestrator is the core compute orchestrator: it owns the worker
// registry, the resource manager, the task scheduler, and the background
// dispatch/health loops.
type Orchestrator struct {
	cfg       config.OrchestratorConfig
	log       logger.Logger
	metrics   *metrics.Metrics
	telemetry *telemetry.Telemetry

	registry   *registry.Registry
	resources  *resource.Manager
	router     *router.Router
	scheduler  *scheduler.Scheduler
	history    *task.History
	containers *worker.Pool
	breakers   *resilience.CircuitBreakerRegistry
	health     *health.Handler
	hooks      []HookPublisher
	encryptor  *credential.Encryptor

	mu            sync.Mutex
	started       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup
	remoteTokens  map[string]string
}

// New creates an orchestrator. Callers register workers (RegisterWorker,
// RegisterLLMAPI, RegisterRemoteWorker) before or after Start; the
// background loops pick up newly registered workers on their next tick.
func New(cfg config.OrchestratorConfig, log logger.Logger, m *metrics.Metrics, t *telemetry.Telemetry) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		telemetry:  t,
		registry:   registry.New(),
		resources:  resource.NewManager(),
		scheduler:  scheduler.New(),
		history:    task.NewHistory(cfg.TaskHistoryLimit),
		breakers:   resilience.NewCircuitBreakerRegistry(resilience.DefaultCircuitBreakerConfig("worker")),
		health:       health.NewHandler("orchestrator"),
		stopCh:       make(chan struct{}),
		remoteTokens: make(map[string]string),
	}
}

// AddHook registers an observer invoked on every task completion/failure.
func (o *Orchestrator) AddHook(h HookPublisher) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hooks = append(o.hooks, h)
}

// SetEncryptor attaches the at-rest encryptor used to protect remote-worker
// auth tokens held in memory by RegisterRemoteWorker.
func (o *Orchestrator) SetEncryptor(e *credential.Encryptor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.encryptor = e
}

// Start boots the container pool and background loops. A container that
// fails its initial health probe is skipped rather than aborting startup
// (degrade on partial failure); Start only fails if the pool ends up with
// zero usable workers.
func (o *Orchestrator) Start(ctx context.Context, containerFactory func(id string) *worker.ContainerWorker) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}

	o.router = router.New(o.registry, o.log, o.breakers)
	o.containers = worker.NewPool(o.cfg.ContainerPoolMaxSize, containerFactory,
		func(w *worker.ContainerWorker) { o.registry.Register(w) },
		func(id string) { o.registry.Deregister(ctx, id) },
	)
	o.started = true
	o.mu.Unlock()

	added := o.containers.Resize(ctx, o.cfg.ContainerPoolSize)
	if added == 0 && o.cfg.ContainerPoolSize > 0 {
		return fmt.Errorf("failed to start any container worker out of %d requested", o.cfg.ContainerPoolSize)
	}
	if added < o.cfg.ContainerPoolSize {
		o.log.Warn("container pool started degraded", "requested", o.cfg.ContainerPoolSize, "started", added)
	}

	o.health.AddCheck("registry", func() error {
		if o.registry.Statistics().TotalWorkers == 0 {
			return fmt.Errorf("no workers registered")
		}
		return nil
	})
	o.health.AddCheck("scheduler_backlog", func() error {
		if o.scheduler.Size() > o.cfg.MaxConcurrentTasks*20 {
			return fmt.Errorf("scheduler queue depth %d exceeds threshold", o.scheduler.Size())
		}
		return nil
	})

	o.wg.Add(2)
	go o.dispatchLoop(ctx)
	go o.healthLoop(ctx)

	o.log.Info("orchestrator started", "container_workers", added)
	return nil
}

// Health runs every registered liveness check and returns the aggregate
// result.
func (o *Orchestrator) Health() *health.Response {
	return o.health.Check()
}

// Stop idempotently cancels both background loops and stops every worker.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	close(o.stopCh)
	o.mu.Unlock()

	o.wg.Wait()

	if o.containers != nil {
		o.containers.StopAll(ctx)
	}
	o.log.Info("orchestrator stopped")
}

// RegisterWorker registers an already-started worker (local-LLM, remote,
// or bedrock/cloud-LLM variants) into the dispatch registry.
func (o *Orchestrator) RegisterWorker(w worker.Worker) {
	o.registry.Register(w)
}

// ResourceManager exposes the resource manager so callers can register a
// cloud-LLM worker's quota before RegisterLLMAPI, or inspect usage.
func (o *Orchestrator) ResourceManager() *resource.Manager {
	return o.resources
}

// RegisterLLMAPI registers a cloud-LLM worker with the resource manager's
// quota pool, and with the dispatch registry.
func (o *Orchestrator) RegisterLLMAPI(w *worker.CloudLLMWorker, quota resource.APIQuota) {
	o.resources.Pool.Register(w, quota)
	o.registry.Register(w)
}

// RegisterLocalLLM registers a local-LLM worker with the resource
// manager's local tier, and with the dispatch registry.
func (o *Orchestrator) RegisterLocalLLM(w *worker.LocalLLMWorker) {
	o.resources.RegisterLocalLLM(w)
	o.registry.Register(w)
}

// RegisterRemoteWorker registers an externally-hosted worker. When an
// encryptor is configured, plainAuthToken is encrypted before being held in
// memory; callers that need to rotate or audit it use RemoteAuthToken.
func (o *Orchestrator) RegisterRemoteWorker(w *worker.RemoteWorker, plainAuthToken string) {
	o.mu.Lock()
	if o.encryptor != nil {
		if enc, err := o.encryptor.EncryptString(plainAuthToken); err == nil {
			o.remoteTokens[w.ID()] = enc
		} else {
			o.log.Warn("failed to encrypt remote worker auth token", "worker_id", w.ID(), "error", err)
		}
	}
	o.mu.Unlock()

	o.registry.Register(w)
	o.log.Info("registered remote worker", "worker_id", w.ID(), "token", credential.Mask(plainAuthToken))
}

// RemoteAuthToken decrypts and returns the stored auth token for a
// registered remote worker, for rotation or audit tooling.
func (o *Orchestrator) RemoteAuthToken(workerID string) (string, error) {
	o.mu.Lock()
	enc, ok := o.remoteTokens[workerID]
	encryptor := o.encryptor
	o.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("no stored auth token for worker %s", workerID)
	}
	if encryptor == nil {
		return "", fmt.Errorf("no encryptor configured")
	}
	return encryptor.DecryptString(enc)
}

// Submit enqueues t for dispatch and records it in history, returning t's
// id immediately. When wait is true, it instead bypasses the scheduler and
// runs t synchronously through the router (like ExecuteLLMRequest), blocking
// until a terminal result is available; the scheduler-enqueue path is
// skipped entirely in that case, so wait=true requires Start to have run
// first. Callers that want async dispatch plus a completion notification
// should use wait=false and observe t.Hooks or TaskHistory instead.
func (o *Orchestrator) Submit(ctx context.Context, t *task.Task, wait bool) (string, *task.Result) {
	o.wireHooks(t)
	o.history.Record(t)

	if wait {
		result := o.router.RunWithRetry(ctx, t)
		o.history.MarkInactive(t.ID)
		return t.ID, result
	}

	o.scheduler.Enqueue(t)
	if o.metrics != nil {
		o.metrics.TasksSubmitted.WithLabelValues(string(t.Kind), fmt.Sprint(t.Priority())).Inc()
	}
	return t.ID, nil
}

// SubmitBatch enqueues every task in a dependency-linked batch and returns
// their ids. When parallel and wait are both true, it bypasses the
// scheduler entirely and runs the whole batch through router.RunParallel,
// honoring DependsOn edges (dependency fan-out levels run back to back,
// each wave capped at MaxConcurrentTasks) and returning one result per task
// in the same order as tasks, or ErrDependencyCycle if the batch's
// dependencies are cyclic. Otherwise every task is just enqueued for async
// dispatch and results is nil.
func (o *Orchestrator) SubmitBatch(ctx context.Context, tasks []*task.Task, parallel, wait bool) (ids []string, results []*task.Result, err error) {
	ids = make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		o.wireHooks(t)
		o.history.Record(t)
	}

	if parallel && wait {
		results, err = o.router.RunParallel(ctx, tasks, o.cfg.MaxConcurrentTasks)
		for _, t := range tasks {
			o.history.MarkInactive(t.ID)
		}
		return ids, results, err
	}

	for _, t := range tasks {
		o.scheduler.Enqueue(t)
		if o.metrics != nil {
			o.metrics.TasksSubmitted.WithLabelValues(string(t.Kind), fmt.Sprint(t.Priority())).Inc()
		}
	}
	return ids, nil, nil
}

func (o *Orchestrator) wireHooks(t *task.Task) {
	userOnComplete, userOnError := t.Hooks.OnComplete, t.Hooks.OnError
	t.Hooks.OnComplete = func(t *task.Task, r *task.Result) {
		o.history.MarkInactive(t.ID)
		for _, h := range o.hooks {
			h.OnComplete(t, r)
		}
		if userOnComplete != nil {
			userOnComplete(t, r)
		}
	}
	t.Hooks.OnError = func(t *task.Task, r *task.Result) {
		o.history.MarkInactive(t.ID)
		for _, h := range o.hooks {
			h.OnError(t, r)
		}
		if userOnError != nil {
			userOnError(t, r)
		}
	}
}

// ExecuteLLMRequest is a synchronous convenience wrapper: it resolves
// preferLocal against the resource manager's three-tier local/cloud
// availability (ResolveLLMWorker), submits the resolved-tier task kind, and
// blocks on RunWithRetry directly rather than going through the scheduler.
// When preferLocal requests the local tier but no local worker is
// available, it falls back to cloud (and vice versa) instead of failing
// outright; it only fails fast when neither tier has capacity.
func (o *Orchestrator) ExecuteLLMRequest(ctx context.Context, prompt string, preferLocal bool, apiType string) *task.Result {
	_, tier := o.resources.ResolveLLMWorker(preferLocal, apiType)
	if tier == "" {
		return &task.Result{
			Success:   false,
			Error:     "no local or cloud LLM worker available",
			Timestamp: time.Now(),
		}
	}

	kind := task.KindLLMRequest
	if tier == "local" {
		kind = task.KindLocalLLMRequest
	}
	t := task.New(kind, map[string]interface{}{"prompt": prompt, "api_type": apiType}, task.PriorityNormal)
	o.history.Record(t)
	result := o.router.RunWithRetry(ctx, t)
	o.history.MarkInactive(t.ID)
	return result
}

// ExecuteToolCall is a synchronous convenience wrapper around a TOOL_CALL
// task.
func (o *Orchestrator) ExecuteToolCall(ctx context.Context, payload map[string]interface{}) *task.Result {
	t := task.New(task.KindToolCall, payload, task.PriorityNormal)
	o.history.Record(t)
	result := o.router.RunWithRetry(ctx, t)
	o.history.MarkInactive(t.ID)
	return result
}

// dispatchLoop periodically drains dependency-ready batches from the
// scheduler and routes them. A panic inside a single tick is recovered and
// logged; the loop backs off 5s before the next tick rather than spinning.
func (o *Orchestrator) dispatchLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.SchedulerTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("dispatch tick panicked", "recovered", r)
			time.Sleep(5 * time.Second)
		}
	}()

	completed := o.router.CompletedIDs()
	batch := o.scheduler.NextBatch(o.cfg.MaxConcurrentTasks, completed)
	if len(batch) == 0 {
		if o.metrics != nil {
			o.metrics.TasksQueued.Set(float64(o.scheduler.Size()))
		}
		return
	}

	if o.metrics != nil {
		o.metrics.TasksQueued.Set(float64(o.scheduler.Size()))
		o.metrics.TasksActive.Add(float64(len(batch)))
	}

	results, err := o.router.RunParallel(ctx, batch, o.cfg.MaxConcurrentTasks)
	if o.metrics != nil {
		o.metrics.TasksActive.Sub(float64(len(batch)))
	}
	if err != nil {
		o.log.Error("batch dependency cycle detected", "error", err)
		for _, t := range batch {
			t.MarkCancelled("dependency cycle")
		}
		return
	}

	for i, t := range batch {
		result := results[i]
		if result == nil {
			continue
		}
		if o.metrics != nil {
			if result.Success {
				o.metrics.TasksCompleted.WithLabelValues(string(t.Kind)).Inc()
			} else {
				o.metrics.TasksFailed.WithLabelValues(string(t.Kind), result.Error).Inc()
			}
			if t.RetryCount() > 0 {
				o.metrics.TaskRetries.WithLabelValues(string(t.Kind)).Inc()
			}
			o.metrics.TaskDuration.WithLabelValues(string(t.Kind), result.WorkerID).
				Observe(float64(result.ExecutionTimeMS) / 1000.0)
		}
		if !t.IsTerminal() {
			o.scheduler.Requeue(t)
		}
	}

	if o.metrics != nil {
		for name, stats := range o.breakers.Stats() {
			var state float64
			switch stats.State {
			case resilience.StateHalfOpen.String():
				state = 1
			case resilience.StateOpen.String():
				state = 2
			}
			o.metrics.CircuitBreakerState.WithLabelValues(name).Set(state)
		}
	}
}

// healthLoop periodically health-checks every worker and auto-scales the
// container pool up when the queue is deep relative to available workers.
// Scale-down is not performed automatically.
func (o *Orchestrator) healthLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.registry.HealthCheckAll(ctx, 8)
			o.maybeScaleUp(ctx)
		}
	}
}

func (o *Orchestrator) maybeScaleUp(ctx context.Context) {
	if o.containers == nil {
		return
	}
	stats := o.registry.Statistics()
	queued := o.scheduler.Size()
	if stats.AvailableWorkers == 0 {
		stats.AvailableWorkers = 1
	}
	if queued > 2*stats.AvailableWorkers && o.containers.Size() < o.containers.MaxSize() {
		added := o.containers.Resize(ctx, 1)
		if added > 0 {
			o.log.Info("scaled up container pool", "queue_size", queued, "pool_size", o.containers.Size())
		}
	}
}

// Status is a point-in-time snapshot of orchestrator state.
type Status struct {
	Registry  registry.Statistics
	Resources resource.Stats
	Queued    int
	Router    router.Stats
}

// Status returns a snapshot of the registry, resource manager, scheduler
// depth, and cumulative routing stats.
func (o *Orchestrator) Status() Status {
	status := Status{
		Registry:  o.registry.Statistics(),
		Resources: o.resources.Stats(),
		Queued:    o.scheduler.Size(),
	}
	if o.router != nil {
		status.Router = o.router.GetTaskStats()
	}
	return status
}

// TaskHistory returns up to limit recent tasks, optionally filtered by
// status.
func (o *Orchestrator) TaskHistory(limit int, status task.Status) []*task.Task {
	return o.history.Recent(limit, status)
}
