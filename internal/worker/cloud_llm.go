package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/synapseflow/compute-orchestrator/internal/platform/logger"
	"github.com/synapseflow/compute-orchestrator/internal/resource"
	"github.com/synapseflow/compute-orchestrator/internal/task"
)

// CloudLLMClient is the minimum contract this worker needs from a remote
// provider; wire-protocol details (OpenAI, Anthropic, Bedrock, ...) are out
// of scope here.
type CloudLLMClient interface {
	Complete(ctx context.Context, prompt string, params map[string]interface{}) (text string, tokens int, err error)
}

// CloudLLMWorker wraps a remote LLM provider, consulting the resource
// manager's quota pool before every call.
type CloudLLMWorker struct {
	base
	apiType         string
	costPer1kTokens float64
	client          CloudLLMClient
	pool            *resource.LLMAPIPool
	log             logger.Logger
}

// NewCloudLLMWorker creates a cloud-LLM worker registered under apiType,
// paired with the resource manager's quota pool.
func NewCloudLLMWorker(id, apiType string, costPer1kTokens float64, concurrencyCap int, client CloudLLMClient, pool *resource.LLMAPIPool, log logger.Logger) *CloudLLMWorker {
	return &CloudLLMWorker{
		base:            newBase(id, "cloud_llm:"+apiType, CapabilitySet(CapabilityLLMInference), concurrencyCap),
		apiType:         apiType,
		costPer1kTokens: costPer1kTokens,
		client:          client,
		pool:            pool,
		log:             log,
	}
}

// APIType satisfies resource.CloudWorker.
func (w *CloudLLMWorker) APIType() string { return w.apiType }

// CostPer1kTokens satisfies resource.CloudWorker.
func (w *CloudLLMWorker) CostPer1kTokens() float64 { return w.costPer1kTokens }

// Available satisfies resource.CloudWorker: idle and under the concurrency
// cap. Quota is checked separately at Submit time.
func (w *CloudLLMWorker) Available() bool {
	return w.canHandleBase()
}

func (w *CloudLLMWorker) Start(ctx context.Context) bool {
	w.setStatus(StatusIdle)
	return true
}

func (w *CloudLLMWorker) Stop(ctx context.Context) {
	w.setStatus(StatusDraining)
	w.setStatus(StatusStopped)
}

func (w *CloudLLMWorker) CanHandle(t *task.Task) bool {
	if t.Kind != task.KindLLMRequest && t.Kind != task.KindAPIRequest {
		return false
	}
	return w.canHandleBase()
}

func (w *CloudLLMWorker) Submit(ctx context.Context, t *task.Task) *task.Result {
	if ok, reason := w.pool.CheckQuota(w.id); !ok {
		w.setStatus(StatusDraining)
		go func() {
			time.Sleep(time.Millisecond)
			w.setStatus(StatusIdle)
		}()
		return &task.Result{
			Success:   false,
			Error:     reason,
			WorkerID:  w.id,
			Timestamp: time.Now(),
		}
	}

	release := w.acquire()
	defer release()

	start := time.Now()
	result := w.execute(ctx, t)
	w.recordResult(result, time.Since(start).Milliseconds())
	return result
}

func (w *CloudLLMWorker) execute(ctx context.Context, t *task.Task) (result *task.Result) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("cloud llm worker panicked", "worker_id", w.id, "recovered", r)
			result = &task.Result{
				Success:   false,
				Error:     fmt.Sprintf("cloud llm worker panicked: %v", r),
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
			Error:     fmt.Sprintf("cloud llm request failed: %v", err),
			WorkerID:  w.id,
			Timestamp: time.Now(),
		}
	}

	cost := float64(tokens) / 1000.0 * w.costPer1kTokens
	w.pool.RecordUsage(w.id, tokens, cost)

	return &task.Result{
		Success:  true,
		Data:     map[string]interface{}{"text": text},
		Metrics:  map[string]interface{}{"tokens": tokens, "cost_usd": cost},
		WorkerID: w.id,
		Timestamp: time.Now(),
	}
}

func (w *CloudLLMWorker) HealthCheck(ctx context.Context) bool {
	w.markHealthChecked(true)
	return true
}
