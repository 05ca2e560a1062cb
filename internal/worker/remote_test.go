package worker

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapseflow/compute-orchestrator/internal/task"
)

type stubRemoteClient struct {
	pingErr  error
	output   map[string]interface{}
	callErr  error
	pingHits int
}

func (c *stubRemoteClient) Ping(ctx context.Context, url, authToken string) error {
	c.pingHits++
	return c.pingErr
}

func (c *stubRemoteClient) Invoke(ctx context.Context, url, authToken string, payload map[string]interface{}) (map[string]interface{}, error) {
	if c.callErr != nil {
		return nil, c.callErr
	}
	return c.output, nil
}

func TestMintAuthTokenProducesVerifiableToken(t *testing.T) {
	tok, err := MintAuthToken("worker-1", "secret", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	parsed, err := jwt.ParseWithClaims(tok, &RemoteWorkerClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "worker-1", parsed.Claims.(*RemoteWorkerClaims).WorkerID)
}

func TestNewRemoteWorkerAlwaysAdvertisesCapabilityRemote(t *testing.T) {
	caps := CapabilitySet(CapabilityToolCall)
	w := NewRemoteWorker("remote-0", "http://x", "token", 2, caps, &stubRemoteClient{}, testLogger())

	assert.True(t, HasCapability(w.Capabilities(), CapabilityRemote),
		"remote workers must always cross-cut as CapabilityRemote regardless of caller-supplied capabilities")
	assert.True(t, HasCapability(w.Capabilities(), CapabilityToolCall))
}

func TestRemoteWorkerStartFailsOnPingError(t *testing.T) {
	w := NewRemoteWorker("remote-0", "http://x", "token", 1, nil, &stubRemoteClient{pingErr: assertErr{}}, testLogger())
	assert.False(t, w.Start(context.Background()))
}

func TestRemoteWorkerCanHandleRespectsKind(t *testing.T) {
	caps := CapabilitySet(CapabilityToolCall)
	w := NewRemoteWorker("remote-0", "http://x", "token", 1, caps, &stubRemoteClient{}, testLogger())
	require.True(t, w.Start(context.Background()))

	assert.True(t, w.CanHandle(task.New(task.KindToolCall, nil, task.PriorityNormal)))
	assert.False(t, w.CanHandle(task.New(task.KindLLMRequest, nil, task.PriorityNormal)))
}

func TestRemoteWorkerSubmitSuccess(t *testing.T) {
	client := &stubRemoteClient{output: map[string]interface{}{"ok": true}}
	w := NewRemoteWorker("remote-0", "http://x", "token", 1, nil, client, testLogger())
	w.Start(context.Background())

	result := w.Submit(context.Background(), task.New(task.KindToolCall, nil, task.PriorityNormal))
	require.True(t, result.Success)
	assert.Equal(t, "remote-0", result.WorkerID)
	assert.Equal(t, map[string]interface{}{"ok": true}, result.Data)
}

func TestRemoteWorkerSubmitPropagatesInvokeError(t *testing.T) {
	client := &stubRemoteClient{callErr: assertErr{}}
	w := NewRemoteWorker("remote-0", "http://x", "token", 1, nil, client, testLogger())
	w.Start(context.Background())

	result := w.Submit(context.Background(), task.New(task.KindToolCall, nil, task.PriorityNormal))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "remote worker invocation failed")
}

func TestRemoteWorkerHealthCheckReflectsPingResult(t *testing.T) {
	client := &stubRemoteClient{}
	w := NewRemoteWorker("remote-0", "http://x", "token", 1, nil, client, testLogger())

	assert.True(t, w.HealthCheck(context.Background()))

	client.pingErr = assertErr{}
	assert.False(t, w.HealthCheck(context.Background()))
}
