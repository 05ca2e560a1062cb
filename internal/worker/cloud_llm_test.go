package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapseflow/compute-orchestrator/internal/platform/config"
	"github.com/synapseflow/compute-orchestrator/internal/platform/logger"
	"github.com/synapseflow/compute-orchestrator/internal/resource"
	"github.com/synapseflow/compute-orchestrator/internal/task"
)

type stubCloudClient struct {
	text   string
	tokens int
	err    error
	panics bool
}

func (c *stubCloudClient) Complete(ctx context.Context, prompt string, params map[string]interface{}) (string, int, error) {
	if c.panics {
		panic("stub cloud client exploded")
	}
	return c.text, c.tokens, c.err
}

func testLogger() logger.Logger {
	return logger.New(config.LoggerConfig{Level: "error", Format: "console"})
}

func TestCloudLLMWorkerSubmitRecordsUsage(t *testing.T) {
	pool := resource.NewLLMAPIPool()
	client := &stubCloudClient{text: "hello", tokens: 100}
	w := NewCloudLLMWorker("cloud-0", "bedrock", 0.01, 2, client, pool, testLogger())
	pool.Register(w, resource.APIQuota{RequestsPerDay: 10})

	tk := task.New(task.KindLLMRequest, map[string]interface{}{"prompt": "hi"}, task.PriorityNormal)
	result := w.Submit(context.Background(), tk)

	require.True(t, result.Success)
	assert.Equal(t, "cloud-0", result.WorkerID)

	usage, _ := pool.UsageSummary()
	require.Len(t, usage, 1)
	assert.Equal(t, 100, usage[0].TokensToday)
}

func TestCloudLLMWorkerSubmitDeniedByQuota(t *testing.T) {
	pool := resource.NewLLMAPIPool()
	client := &stubCloudClient{text: "hello", tokens: 10}
	w := NewCloudLLMWorker("cloud-0", "bedrock", 0.01, 2, client, pool, testLogger())
	pool.Register(w, resource.APIQuota{RequestsPerDay: 1})

	pool.RecordUsage("cloud-0", 10, 0.001)

	tk := task.New(task.KindLLMRequest, map[string]interface{}{"prompt": "hi"}, task.PriorityNormal)
	result := w.Submit(context.Background(), tk)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "per-day")
}

func TestCloudLLMWorkerSubmitPropagatesClientError(t *testing.T) {
	pool := resource.NewLLMAPIPool()
	client := &stubCloudClient{err: assertErr{}}
	w := NewCloudLLMWorker("cloud-0", "bedrock", 0.01, 2, client, pool, testLogger())
	pool.Register(w, resource.APIQuota{})

	tk := task.New(task.KindLLMRequest, map[string]interface{}{"prompt": "hi"}, task.PriorityNormal)
	result := w.Submit(context.Background(), tk)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "cloud llm request failed")
}

func TestCloudLLMWorkerSubmitRecoversFromClientPanic(t *testing.T) {
	pool := resource.NewLLMAPIPool()
	client := &stubCloudClient{panics: true}
	w := NewCloudLLMWorker("cloud-0", "bedrock", 0.01, 2, client, pool, testLogger())
	pool.Register(w, resource.APIQuota{})

	tk := task.New(task.KindLLMRequest, map[string]interface{}{"prompt": "hi"}, task.PriorityNormal)

	var result *task.Result
	assert.NotPanics(t, func() {
		result = w.Submit(context.Background(), tk)
	})
	require.NotNil(t, result, "a recovered panic must still produce a Result")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "panicked")
	assert.Equal(t, "cloud-0", result.WorkerID)
}

func TestCloudLLMWorkerCanHandleRespectsKindAndCapacity(t *testing.T) {
	pool := resource.NewLLMAPIPool()
	w := NewCloudLLMWorker("cloud-0", "bedrock", 0.01, 1, &stubCloudClient{}, pool, testLogger())
	w.Start(context.Background())

	llmTask := task.New(task.KindLLMRequest, nil, task.PriorityNormal)
	toolTask := task.New(task.KindToolCall, nil, task.PriorityNormal)

	assert.True(t, w.CanHandle(llmTask))
	assert.False(t, w.CanHandle(toolTask))
}

type assertErr struct{}

func (assertErr) Error() string { return "provider unavailable" }
