package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapseflow/compute-orchestrator/internal/task"
)

type stubLocalClient struct {
	pingErr error
	text    string
	tokens  int
	compErr error
}

func (c *stubLocalClient) Ping(ctx context.Context) error { return c.pingErr }

func (c *stubLocalClient) Complete(ctx context.Context, prompt string, params map[string]interface{}) (string, int, error) {
	return c.text, c.tokens, c.compErr
}

func TestLocalLLMWorkerStartFailsOnPingError(t *testing.T) {
	w := NewLocalLLMWorker("local-0", "http://x", &stubLocalClient{pingErr: assertErr{}}, testLogger())
	assert.False(t, w.Start(context.Background()))
}

func TestLocalLLMWorkerCanHandleLocalAndGenericLLMKinds(t *testing.T) {
	w := NewLocalLLMWorker("local-0", "http://x", &stubLocalClient{}, testLogger())
	require.True(t, w.Start(context.Background()))

	assert.True(t, w.CanHandle(task.New(task.KindLocalLLMRequest, nil, task.PriorityNormal)))
	assert.True(t, w.CanHandle(task.New(task.KindLLMRequest, nil, task.PriorityNormal)))
	assert.False(t, w.CanHandle(task.New(task.KindContainerTask, nil, task.PriorityNormal)))
}

func TestLocalLLMWorkerSubmitSuccess(t *testing.T) {
	w := NewLocalLLMWorker("local-0", "http://x", &stubLocalClient{text: "hi", tokens: 5}, testLogger())
	w.Start(context.Background())

	tk := task.New(task.KindLocalLLMRequest, map[string]interface{}{"prompt": "hi"}, task.PriorityNormal)
	result := w.Submit(context.Background(), tk)

	require.True(t, result.Success)
	assert.Equal(t, "local-0", result.WorkerID)
	assert.Equal(t, int64(1), w.Metrics().TasksExecuted)
}

func TestLocalLLMWorkerSubmitFailurePropagates(t *testing.T) {
	w := NewLocalLLMWorker("local-0", "http://x", &stubLocalClient{compErr: assertErr{}}, testLogger())
	w.Start(context.Background())

	tk := task.New(task.KindLocalLLMRequest, nil, task.PriorityNormal)
	result := w.Submit(context.Background(), tk)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "local llm request failed")
	assert.Equal(t, int64(1), w.Metrics().Failures)
}

func TestLocalLLMWorkerLoadTracksAcquireRelease(t *testing.T) {
	w := NewLocalLLMWorker("local-0", "http://x", &stubLocalClient{}, testLogger())
	w.Start(context.Background())

	assert.Equal(t, 0, w.Load())
	w.Submit(context.Background(), task.New(task.KindLocalLLMRequest, nil, task.PriorityNormal))
	assert.Equal(t, 0, w.Load(), "load must return to zero after Submit returns")
}
