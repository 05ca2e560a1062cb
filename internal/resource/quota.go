// Package resource accounts for quota, cost, and coarse compute reservation
// across cloud-LLM workers and the rest of the worker pool.
package resource

import (
	"sync"
	"time"
)

// APIQuota bounds a cloud-LLM worker's usage over rolling minute/hour/day
// windows. A zero limit means unlimited for that window.
type APIQuota struct {
	RequestsPerMinute int
	RequestsPerHour   int
	RequestsPerDay    int
	TokensPerDay      int
	CostPerDayUSD     float64
}

// APIUsage tracks counters since the last window reset, per window.
type APIUsage struct {
	RequestsThisMinute int
	RequestsThisHour   int
	RequestsThisDay    int
	TokensThisDay      int
	CostThisDayUSD     float64

	minuteReset time.Time
	hourReset   time.Time
	dayReset    time.Time
}

func newAPIUsage(now time.Time) *APIUsage {
	return &APIUsage{
		minuteReset: now,
		hourReset:   now,
		dayReset:    now,
	}
}

// rollover resets any counter whose window has elapsed as of now. Lazy
// strategy: counters reset on the next access after the window elapses,
// per the spec's design note on quota windows.
func (u *APIUsage) rollover(now time.Time) {
	if now.Sub(u.minuteReset) >= time.Minute {
		u.RequestsThisMinute = 0
		u.minuteReset = now
	}
	if now.Sub(u.hourReset) >= time.Hour {
		u.RequestsThisHour = 0
		u.hourReset = now
	}
	if now.Sub(u.dayReset) >= 24*time.Hour {
		u.RequestsThisDay = 0
		u.TokensThisDay = 0
		u.CostThisDayUSD = 0
		u.dayReset = now
	}
}

// quotaEntry pairs one worker's quota config with its usage counters under
// a per-worker lock, per the spec's concurrency model.
type quotaEntry struct {
	mu    sync.Mutex
	quota APIQuota
	usage *APIUsage
}

// checkQuota rolls over expired windows then reports whether a new call is
// permitted, with a human-readable denial reason when not.
func (e *quotaEntry) checkQuota(now time.Time) (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.usage.rollover(now)

	if e.quota.RequestsPerMinute > 0 && e.usage.RequestsThisMinute >= e.quota.RequestsPerMinute {
		return false, "per-minute request limit exceeded"
	}
	if e.quota.RequestsPerHour > 0 && e.usage.RequestsThisHour >= e.quota.RequestsPerHour {
		return false, "per-hour request limit exceeded"
	}
	if e.quota.RequestsPerDay > 0 && e.usage.RequestsThisDay >= e.quota.RequestsPerDay {
		return false, "per-day request limit exceeded"
	}
	if e.quota.TokensPerDay > 0 && e.usage.TokensThisDay >= e.quota.TokensPerDay {
		return false, "per-day token budget exceeded"
	}
	if e.quota.CostPerDayUSD > 0 && e.usage.CostThisDayUSD >= e.quota.CostPerDayUSD {
		return false, "per-day cost budget exceeded"
	}
	return true, ""
}

func (e *quotaEntry) recordUsage(tokens int, cost float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.usage.RequestsThisMinute++
	e.usage.RequestsThisHour++
	e.usage.RequestsThisDay++
	e.usage.TokensThisDay += tokens
	e.usage.CostThisDayUSD += cost
}

func (e *quotaEntry) snapshot() (APIQuota, APIUsage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quota, *e.usage
}
