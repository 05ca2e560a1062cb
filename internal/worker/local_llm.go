package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/synapseflow/compute-orchestrator/internal/platform/logger"
	"github.com/synapseflow/compute-orchestrator/internal/task"
)

// LocalLLMWorker wraps a local inference endpoint (e.g. an Ollama-style
// server). Concurrency defaults low to match a single-GPU host.
type LocalLLMWorker struct {
	base
	baseURL string
	client  LocalInferenceClient
	log     logger.Logger
}

// LocalInferenceClient is the minimum contract this worker needs from a
// local inference backend; the wire protocol itself is out of scope here.
type LocalInferenceClient interface {
	Ping(ctx context.Context) error
	Complete(ctx context.Context, prompt string, params map[string]interface{}) (text string, tokens int, err error)
}

// NewLocalLLMWorker creates a local-LLM worker with a default concurrency
// cap of 2, matching a single-GPU machine.
func NewLocalLLMWorker(id, baseURL string, client LocalInferenceClient, log logger.Logger) *LocalLLMWorker {
	return &LocalLLMWorker{
		base:    newBase(id, "local_llm", CapabilitySet(CapabilityLocalLLM, CapabilityLLMInference), 2),
		baseURL: baseURL,
		client:  client,
		log:     log,
	}
}

// Available reports whether the worker can currently accept one more task,
// for resource.Manager's local/cloud resolution.
func (w *LocalLLMWorker) Available() bool {
	return w.canHandleBase()
}

func (w *LocalLLMWorker) Start(ctx context.Context) bool {
	if err := w.client.Ping(ctx); err != nil {
		w.log.Warn("local-llm worker failed to start", "worker_id", w.id, "error", err)
		return false
	}
	w.setStatus(StatusIdle)
	return true
}

func (w *LocalLLMWorker) Stop(ctx context.Context) {
	w.setStatus(StatusDraining)
	w.setStatus(StatusStopped)
}

func (w *LocalLLMWorker) CanHandle(t *task.Task) bool {
	cap, ok := capabilityFor(t.Kind)
	if !ok || !HasCapability(w.caps, cap) {
		return false
	}
	return w.canHandleBase()
}

func (w *LocalLLMWorker) Submit(ctx context.Context, t *task.Task) *task.Result {
	release := w.acquire()
	defer release()

	start := time.Now()
	result := w.execute(ctx, t)
	w.recordResult(result, time.Since(start).Milliseconds())
	return result
}

func (w *LocalLLMWorker) execute(ctx context.Context, t *task.Task) (result *task.Result) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("local-llm worker panicked", "worker_id", w.id, "recovered", r)
			result = &task.Result{
				Success:   false,
				Error:     fmt.Sprintf("local-llm worker panicked: %v", r),
				WorkerID:  w.id,
				Timestamp: time.Now(),
			}
		}
	}()

	prompt, _ := t.Payload["prompt"].(string)
	runCtx := ctx
	var cancel context.CancelFunc
	if t.Requirements.MaxRuntimeSeconds > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(t.Requirements.MaxRuntimeSeconds*float64(time.Second)))
		defer cancel()
	}

	text, tokens, err := w.client.Complete(runCtx, prompt, t.Payload)
	if err != nil {
		return &task.Result{
			Success:   false,
			Error:     fmt.Sprintf("local llm request failed: %v", err),
			WorkerID:  w.id,
			Timestamp: time.Now(),
		}
	}

	return &task.Result{
		Success:   true,
		Data:      map[string]interface{}{"text": text},
		Metrics:   map[string]interface{}{"tokens": tokens},
		WorkerID:  w.id,
		Timestamp: time.Now(),
	}
}

func (w *LocalLLMWorker) HealthCheck(ctx context.Context) bool {
	err := w.client.Ping(ctx)
	w.markHealthChecked(err == nil)
	return err == nil
}
