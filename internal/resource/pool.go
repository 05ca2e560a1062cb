package resource

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CloudWorker is the minimal view the pool needs of a registered cloud-LLM
// worker. worker.CloudLLMWorker satisfies this interface structurally;
// resource never imports the worker package, keeping the dependency
// one-directional (worker -> resource for quota checks).
type CloudWorker interface {
	ID() string
	APIType() string
	CostPer1kTokens() float64
	Available() bool
}

// UsageSummary is a point-in-time view of a worker's quota usage.
type UsageSummary struct {
	WorkerID          string
	RequestsToday     int
	TokensToday       int
	CostTodayUSD      float64
	RequestsRemaining int // -1 when the day window has no configured cap
}

// QuotaMirror mirrors quota usage counters to a shared store so multiple
// orchestrator processes can observe cumulative cross-process usage.
// platform/cache.RedisCache satisfies this structurally. Quota decisions
// themselves stay authoritative in the local quotaEntry; the mirror is
// best-effort and its errors never block a request.
type QuotaMirror interface {
	IncrementBy(ctx context.Context, key string, value int64) (int64, error)
}

// LLMAPIPool owns the set of registered cloud-LLM workers and their quota
// state, and selects among them for a given api_type.
type LLMAPIPool struct {
	mu      sync.RWMutex
	workers map[string]CloudWorker
	quotas  map[string]*quotaEntry
	mirror  QuotaMirror
}

// NewLLMAPIPool creates an empty pool.
func NewLLMAPIPool() *LLMAPIPool {
	return &LLMAPIPool{
		workers: make(map[string]CloudWorker),
		quotas:  make(map[string]*quotaEntry),
	}
}

// SetMirror attaches a cross-process quota usage mirror. Passing nil
// disables mirroring.
func (p *LLMAPIPool) SetMirror(m QuotaMirror) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mirror = m
}

// Register adds a cloud-LLM worker with its quota configuration. Re-
// registering the same id replaces the prior entry.
func (p *LLMAPIPool) Register(w CloudWorker, quota APIQuota) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workers[w.ID()] = w
	p.quotas[w.ID()] = &quotaEntry{quota: quota, usage: newAPIUsage(time.Now())}
}

// Deregister removes a worker and its quota state.
func (p *LLMAPIPool) Deregister(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.workers, id)
	delete(p.quotas, id)
}

// CheckQuota reports whether worker id may make another call right now.
func (p *LLMAPIPool) CheckQuota(id string) (bool, string) {
	p.mu.RLock()
	entry, ok := p.quotas[id]
	p.mu.RUnlock()
	if !ok {
		return false, "worker not registered with resource manager"
	}
	return entry.checkQuota(time.Now())
}

// RecordUsage increments all window counters for worker id atomically, and
// mirrors the request/token counts to the cross-process store when one is
// configured.
func (p *LLMAPIPool) RecordUsage(id string, tokens int, cost float64) {
	p.mu.RLock()
	entry, ok := p.quotas[id]
	mirror := p.mirror
	p.mu.RUnlock()
	if !ok {
		return
	}
	entry.recordUsage(tokens, cost)

	if mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	mirror.IncrementBy(ctx, fmt.Sprintf("quota:%s:requests_day", id), 1)
	mirror.IncrementBy(ctx, fmt.Sprintf("quota:%s:tokens_day", id), int64(tokens))
}

// Select scans workers matching apiType (or any, when apiType is empty),
// filters to quota-ok and available, then orders by cost ascending when
// preferLowCost is set, with ties broken by worker id. When preferLowCost is
// not set, candidates are ordered by worker id only; worker load is not
// considered.
func (p *LLMAPIPool) Select(apiType string, preferLowCost bool) CloudWorker {
	p.mu.RLock()
	candidates := make([]CloudWorker, 0, len(p.workers))
	for _, w := range p.workers {
		if apiType != "" && w.APIType() != apiType {
			continue
		}
		if !w.Available() {
			continue
		}
		if ok, _ := p.CheckQuota(w.ID()); !ok {
			continue
		}
		candidates = append(candidates, w)
	}
	p.mu.RUnlock()

	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if preferLowCost && candidates[i].CostPer1kTokens() != candidates[j].CostPer1kTokens() {
			return candidates[i].CostPer1kTokens() < candidates[j].CostPer1kTokens()
		}
		return candidates[i].ID() < candidates[j].ID()
	})

	return candidates[0]
}

// UsageSummary returns per-worker and aggregate usage totals for today,
// plus quota remaining where a daily request cap is configured.
func (p *LLMAPIPool) UsageSummary() (perWorker []UsageSummary, aggregate UsageSummary) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.quotas))
	for id := range p.quotas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry := p.quotas[id]
		quota, usage := entry.snapshot()

		remaining := -1
		if quota.RequestsPerDay > 0 {
			remaining = quota.RequestsPerDay - usage.RequestsThisDay
			if remaining < 0 {
				remaining = 0
			}
		}

		s := UsageSummary{
			WorkerID:          id,
			RequestsToday:     usage.RequestsThisDay,
			TokensToday:       usage.TokensThisDay,
			CostTodayUSD:      usage.CostThisDayUSD,
			RequestsRemaining: remaining,
		}
		perWorker = append(perWorker, s)

		aggregate.RequestsToday += s.RequestsToday
		aggregate.TokensToday += s.TokensToday
		aggregate.CostTodayUSD += s.CostTodayUSD
	}
	aggregate.RequestsRemaining = -1

	return perWorker, aggregate
}
