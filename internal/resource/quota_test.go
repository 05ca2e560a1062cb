package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(q APIQuota, now time.Time) *quotaEntry {
	return &quotaEntry{quota: q, usage: newAPIUsage(now)}
}

func TestCheckQuotaAllowsUnderLimit(t *testing.T) {
	now := time.Now()
	e := newEntry(APIQuota{RequestsPerMinute: 2}, now)

	ok, reason := e.checkQuota(now)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestCheckQuotaDeniesAtLimit(t *testing.T) {
	now := time.Now()
	e := newEntry(APIQuota{RequestsPerMinute: 2}, now)

	e.recordUsage(10, 0.01)
	e.recordUsage(10, 0.01)

	ok, reason := e.checkQuota(now)
	assert.False(t, ok)
	assert.Contains(t, reason, "per-minute")
}

func TestCheckQuotaDeniesOnTokenBudget(t *testing.T) {
	now := time.Now()
	e := newEntry(APIQuota{TokensPerDay: 100}, now)

	e.recordUsage(150, 0)

	ok, reason := e.checkQuota(now)
	assert.False(t, ok)
	assert.Contains(t, reason, "token")
}

func TestCheckQuotaDeniesOnCostBudget(t *testing.T) {
	now := time.Now()
	e := newEntry(APIQuota{CostPerDayUSD: 1.0}, now)

	e.recordUsage(0, 1.5)

	ok, reason := e.checkQuota(now)
	assert.False(t, ok)
	assert.Contains(t, reason, "cost")
}

func TestRolloverResetsExpiredWindowsOnly(t *testing.T) {
	start := time.Now()
	e := newEntry(APIQuota{RequestsPerMinute: 1, RequestsPerHour: 100}, start)
	e.recordUsage(0, 0)

	ok, _ := e.checkQuota(start)
	assert.False(t, ok, "per-minute cap reached")

	afterMinute := start.Add(61 * time.Second)
	ok, _ = e.checkQuota(afterMinute)
	assert.True(t, ok, "minute window should have rolled over")

	quota, usage := e.snapshot()
	require.Equal(t, 1, quota.RequestsPerMinute)
	assert.Equal(t, 1, usage.RequestsThisHour, "hour window must not reset alongside minute window")
}

func TestRolloverResetsDayCountersTogether(t *testing.T) {
	start := time.Now()
	e := newEntry(APIQuota{TokensPerDay: 1000}, start)
	e.recordUsage(500, 2.5)

	nextDay := start.Add(25 * time.Hour)
	e.usage.rollover(nextDay)

	_, usage := e.snapshot()
	assert.Zero(t, usage.TokensThisDay)
	assert.Zero(t, usage.CostThisDayUSD)
	assert.Zero(t, usage.RequestsThisDay)
}

func TestLLMAPIPoolSelectFiltersByQuotaAndAvailability(t *testing.T) {
	pool := NewLLMAPIPool()
	available := &stubCloudWorker{id: "a", apiType: "bedrock", available: true}
	unavailable := &stubCloudWorker{id: "b", apiType: "bedrock", available: false}
	pool.Register(available, APIQuota{})
	pool.Register(unavailable, APIQuota{})

	got := pool.Select("bedrock", false)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.ID())
}

func TestLLMAPIPoolSelectPrefersLowCost(t *testing.T) {
	pool := NewLLMAPIPool()
	cheap := &stubCloudWorker{id: "cheap", apiType: "bedrock", available: true, cost: 0.001}
	pricey := &stubCloudWorker{id: "pricey", apiType: "bedrock", available: true, cost: 0.01}
	pool.Register(pricey, APIQuota{})
	pool.Register(cheap, APIQuota{})

	got := pool.Select("bedrock", true)
	require.NotNil(t, got)
	assert.Equal(t, "cheap", got.ID())
}

func TestLLMAPIPoolSelectExcludesExhaustedQuota(t *testing.T) {
	pool := NewLLMAPIPool()
	w := &stubCloudWorker{id: "a", apiType: "bedrock", available: true}
	pool.Register(w, APIQuota{RequestsPerDay: 1})

	pool.RecordUsage("a", 10, 0.01)

	assert.Nil(t, pool.Select("bedrock", false))
}

type stubCloudWorker struct {
	id        string
	apiType   string
	available bool
	cost      float64
}

func (s *stubCloudWorker) ID() string               { return s.id }
func (s *stubCloudWorker) APIType() string           { return s.apiType }
func (s *stubCloudWorker) CostPer1kTokens() float64  { return s.cost }
func (s *stubCloudWorker) Available() bool           { return s.available }
