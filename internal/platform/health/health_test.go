package health

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerCheckHealthyWithNoChecks(t *testing.T) {
	h := NewHandler("orchestrator")
	resp := h.Check()

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "orchestrator", resp.Service)
	assert.Empty(t, resp.Checks)
}

func TestHandlerCheckAggregatesUnhealthyCheck(t *testing.T) {
	h := NewHandler("orchestrator")
	h.AddCheck("redis", RedisChecker(func() error { return errors.New("connection refused") }))
	h.AddCheck("kafka", KafkaChecker(func() error { return nil }))

	resp := h.Check()

	assert.Equal(t, StatusUnhealthy, resp.Status)
	require.Contains(t, resp.Checks, "redis")
	assert.Equal(t, StatusUnhealthy, resp.Checks["redis"].Status)
	assert.Equal(t, "connection refused", resp.Checks["redis"].Message)
	require.Contains(t, resp.Checks, "kafka")
	assert.Equal(t, StatusHealthy, resp.Checks["kafka"].Status)
}

func TestRemoveCheckStopsItFromRunning(t *testing.T) {
	h := NewHandler("orchestrator")
	h.AddCheck("flaky", func() error { return errors.New("down") })
	h.RemoveCheck("flaky")

	resp := h.Check()
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.NotContains(t, resp.Checks, "flaky")
}

func TestAddCheckReplacesExisting(t *testing.T) {
	h := NewHandler("orchestrator")
	h.AddCheck("dep", func() error { return errors.New("first") })
	h.AddCheck("dep", func() error { return nil })

	resp := h.Check()
	assert.Equal(t, StatusHealthy, resp.Checks["dep"].Status)
}
