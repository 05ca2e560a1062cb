package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapseflow/compute-orchestrator/internal/task"
	"github.com/synapseflow/compute-orchestrator/internal/worker"
)

// fakeWorker is a minimal, fully-controllable worker.Worker for exercising
// registry selection logic without pulling in a real worker variant.
type fakeWorker struct {
	id       string
	caps     map[worker.Capability]struct{}
	status   worker.Status
	load     int
	capacity int
	cost     float64
	hasCost  bool
	handles  bool
	stopped  bool
}

func (f *fakeWorker) ID() string                           { return f.id }
func (f *fakeWorker) Type() string                          { return "fake" }
func (f *fakeWorker) Capabilities() map[worker.Capability]struct{} { return f.caps }
func (f *fakeWorker) Start(ctx context.Context) bool        { return true }
func (f *fakeWorker) Stop(ctx context.Context)              { f.stopped = true }
func (f *fakeWorker) CanHandle(t *task.Task) bool           { return f.handles }
func (f *fakeWorker) Submit(ctx context.Context, t *task.Task) *task.Result {
	return &task.Result{Success: true, WorkerID: f.id}
}
func (f *fakeWorker) HealthCheck(ctx context.Context) bool { return true }
func (f *fakeWorker) Status() worker.Status                { return f.status }
func (f *fakeWorker) Load() int                            { return f.load }
func (f *fakeWorker) ConcurrencyCap() int                   { return f.capacity }
func (f *fakeWorker) Metrics() worker.Metrics               { return worker.Metrics{} }

// CostPer1kTokens is only defined on workers that opt into the tie-break;
// costedWorker wraps fakeWorker to add it.
type costedWorker struct {
	*fakeWorker
}

func (c costedWorker) CostPer1kTokens() float64 { return c.cost }

func newFake(id string, caps ...worker.Capability) *fakeWorker {
	return &fakeWorker{
		id:       id,
		caps:     worker.CapabilitySet(caps...),
		status:   worker.StatusIdle,
		capacity: 1,
		handles:  true,
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	w := newFake("w1", worker.CapabilityToolCall)
	r.Register(w)

	got, ok := r.Get("w1")
	require.True(t, ok)
	assert.Equal(t, w, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegisterReplacesExistingIDAndReindexesCapabilities(t *testing.T) {
	r := New()
	r.Register(newFake("w1", worker.CapabilityToolCall))
	r.Register(newFake("w1", worker.CapabilityContainer))

	assert.Empty(t, r.ByCapability(worker.CapabilityToolCall))
	assert.Len(t, r.ByCapability(worker.CapabilityContainer), 1)
}

func TestByCapabilitySortedByID(t *testing.T) {
	r := New()
	r.Register(newFake("b", worker.CapabilityToolCall))
	r.Register(newFake("a", worker.CapabilityToolCall))

	workers := r.ByCapability(worker.CapabilityToolCall)
	require.Len(t, workers, 2)
	assert.Equal(t, "a", workers[0].ID())
	assert.Equal(t, "b", workers[1].ID())
}

func TestDeregisterStopsWorkerAndRemovesFromIndexes(t *testing.T) {
	r := New()
	w := newFake("w1", worker.CapabilityToolCall)
	r.Register(w)

	r.Deregister(context.Background(), "w1")

	assert.True(t, w.stopped)
	_, ok := r.Get("w1")
	assert.False(t, ok)
	assert.Empty(t, r.ByCapability(worker.CapabilityToolCall))
}

func TestBestForPicksLowestLoad(t *testing.T) {
	r := New()
	busy := newFake("busy", worker.CapabilityToolCall)
	busy.load = 5
	idle := newFake("idle", worker.CapabilityToolCall)
	idle.load = 0
	r.Register(busy)
	r.Register(idle)

	best := r.BestFor(task.New(task.KindToolCall, nil, task.PriorityNormal))
	require.NotNil(t, best)
	assert.Equal(t, "idle", best.ID())
}

func TestBestForBreaksLoadTieOnCost(t *testing.T) {
	r := New()
	cheap := costedWorker{newFake("cheap", worker.CapabilityLLMInference)}
	cheap.cost = 0.001
	pricey := costedWorker{newFake("pricey", worker.CapabilityLLMInference)}
	pricey.cost = 0.01
	r.Register(cheap)
	r.Register(pricey)

	best := r.BestFor(task.New(task.KindLLMRequest, nil, task.PriorityNormal))
	require.NotNil(t, best)
	assert.Equal(t, "cheap", best.ID())
}

func TestBestForReturnsNilWhenNoneAvailable(t *testing.T) {
	r := New()
	w := newFake("w1", worker.CapabilityToolCall)
	w.handles = false
	r.Register(w)

	assert.Nil(t, r.BestFor(task.New(task.KindToolCall, nil, task.PriorityNormal)))
}

func TestHealthCheckAllRunsEveryWorker(t *testing.T) {
	r := New()
	for i := 0; i < 5; i++ {
		r.Register(newFake(string(rune('a'+i)), worker.CapabilityToolCall))
	}

	// bounded concurrency must still reach every worker; this just needs to
	// return without deadlocking even when maxConcurrent < worker count.
	r.HealthCheckAll(context.Background(), 2)
}

func TestStatistics(t *testing.T) {
	r := New()
	idle := newFake("idle", worker.CapabilityToolCall)
	busy := newFake("busy", worker.CapabilityContainer)
	busy.status = worker.StatusBusy
	busy.load = 1
	busy.capacity = 1
	r.Register(idle)
	r.Register(busy)

	stats := r.Statistics()
	assert.Equal(t, 2, stats.TotalWorkers)
	assert.Equal(t, 1, stats.ByStatus[worker.StatusIdle])
	assert.Equal(t, 1, stats.ByStatus[worker.StatusBusy])
	assert.Equal(t, 1, stats.ByCapability[worker.CapabilityToolCall])
	assert.Equal(t, 1, stats.AvailableWorkers)
}
