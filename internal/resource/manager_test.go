package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLocalWorker struct {
	id        string
	available bool
}

func (s *stubLocalWorker) ID() string      { return s.id }
func (s *stubLocalWorker) Available() bool { return s.available }

func TestResolveLLMWorkerPrefersLocalWhenRequested(t *testing.T) {
	m := NewManager()
	m.RegisterLocalLLM(&stubLocalWorker{id: "local-0", available: true})
	m.Pool.Register(&stubCloudWorker{id: "cloud-0", apiType: "bedrock", available: true}, APIQuota{})

	id, tier := m.ResolveLLMWorker(true, "bedrock")
	assert.Equal(t, "local-0", id)
	assert.Equal(t, "local", tier)
}

func TestResolveLLMWorkerFallsBackToCloudWhenLocalUnavailable(t *testing.T) {
	m := NewManager()
	m.RegisterLocalLLM(&stubLocalWorker{id: "local-0", available: false})
	m.Pool.Register(&stubCloudWorker{id: "cloud-0", apiType: "bedrock", available: true}, APIQuota{})

	id, tier := m.ResolveLLMWorker(true, "bedrock")
	assert.Equal(t, "cloud-0", id)
	assert.Equal(t, "cloud", tier)
}

func TestResolveLLMWorkerPrefersCloudByDefault(t *testing.T) {
	m := NewManager()
	m.RegisterLocalLLM(&stubLocalWorker{id: "local-0", available: true})
	m.Pool.Register(&stubCloudWorker{id: "cloud-0", apiType: "bedrock", available: true}, APIQuota{})

	id, tier := m.ResolveLLMWorker(false, "bedrock")
	assert.Equal(t, "cloud-0", id)
	assert.Equal(t, "cloud", tier)
}

func TestResolveLLMWorkerReturnsEmptyWhenNothingAvailable(t *testing.T) {
	m := NewManager()
	id, tier := m.ResolveLLMWorker(false, "bedrock")
	assert.Empty(t, id)
	assert.Empty(t, tier)
}

func TestStatsAggregatesAcrossPoolAndLocalTier(t *testing.T) {
	m := NewManager()
	m.RegisterLocalLLM(&stubLocalWorker{id: "local-0", available: true})
	m.Pool.Register(&stubCloudWorker{id: "cloud-0", apiType: "bedrock", available: true}, APIQuota{RequestsPerDay: 100})
	m.Pool.RecordUsage("cloud-0", 50, 0.05)

	stats := m.Stats()
	require.Equal(t, 1, stats.LocalLLMWorkers)
	require.Len(t, stats.CloudUsage, 1)
	assert.Equal(t, 50, stats.CloudUsage[0].TokensToday)
	assert.Equal(t, 50, stats.CloudAggregate.TokensToday)
}
