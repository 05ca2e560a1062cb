package worker

import (
	"sync"
	"time"

	"github.com/synapseflow/compute-orchestrator/internal/task"
)

// base provides the load tracking, status, and metrics bookkeeping common
// to every worker variant. Variants embed it and implement Submit/Start/
// Stop/HealthCheck on top.
type base struct {
	mu             sync.Mutex
	id             string
	kind           string
	caps           map[Capability]struct{}
	concurrencyCap int
	status         Status
	load           int
	metrics        Metrics
	lastHealthAt   time.Time
}

func newBase(id, kind string, caps map[Capability]struct{}, concurrencyCap int) base {
	return base{
		id:             id,
		kind:           kind,
		caps:           caps,
		concurrencyCap: concurrencyCap,
		status:         StatusIdle,
	}
}

func (b *base) ID() string                            { return b.id }
func (b *base) Type() string                           { return b.kind }
func (b *base) Capabilities() map[Capability]struct{}  { return b.caps }
func (b *base) ConcurrencyCap() int                    { return b.concurrencyCap }

func (b *base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *base) setStatus(s Status) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
}

func (b *base) Load() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load
}

func (b *base) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

// acquire increments load and flips status to BUSY if this is the first
// concurrent task; returns a release func that must be deferred.
func (b *base) acquire() func() {
	b.mu.Lock()
	b.load++
	if b.status == StatusIdle {
		b.status = StatusBusy
	}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.load--
		if b.load <= 0 && b.status == StatusBusy {
			b.status = StatusIdle
		}
		b.mu.Unlock()
	}
}

func (b *base) recordResult(result *task.Result, durationMS int64) {
	b.mu.Lock()
	b.metrics.TasksExecuted++
	b.metrics.TotalDurationMS += durationMS
	if !result.Success {
		b.metrics.Failures++
	}
	b.mu.Unlock()
}

// canHandleBase implements the shared predicate of CanHandle: idle and
// under cap. Variants call it after checking their own capability mapping
// for the task kind.
func (b *base) canHandleBase() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status == StatusIdle && b.load < b.concurrencyCap
}

func (b *base) markHealthChecked(healthy bool) {
	b.mu.Lock()
	b.lastHealthAt = time.Now()
	if healthy {
		if b.status == StatusUnhealthy {
			b.status = StatusIdle
		}
	} else {
		b.status = StatusUnhealthy
	}
	b.mu.Unlock()
}

func capabilityFor(k task.Kind) (Capability, bool) {
	switch k {
	case task.KindLocalLLMRequest:
		return CapabilityLocalLLM, true
	case task.KindLLMRequest, task.KindAPIRequest:
		return CapabilityLLMInference, true
	case task.KindContainerTask:
		return CapabilityContainer, true
	case task.KindCodeExecution:
		return CapabilityCodeExecution, true
	case task.KindToolCall:
		return CapabilityToolCall, true
	default:
		return "", false
	}
}
