// Package registry maintains the set of live workers, indexed by id and by
// capability, and selects the best worker for a task.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/synapseflow/compute-orchestrator/internal/task"
	"github.com/synapseflow/compute-orchestrator/internal/worker"
)

// Registry indexes workers by id and by capability, grounded on the
// executor service's worker map and lowest-load selection.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]worker.Worker
	byCap map[worker.Capability]map[string]worker.Worker
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byID:  make(map[string]worker.Worker),
		byCap: make(map[worker.Capability]map[string]worker.Worker),
	}
}

// Register inserts w, indexing it by id and by every capability it
// advertises. Re-registering an existing id replaces it.
func (r *Registry) Register(w worker.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[w.ID()]; ok {
		r.removeFromCapIndex(existing)
	}

	r.byID[w.ID()] = w
	for cap := range w.Capabilities() {
		if r.byCap[cap] == nil {
			r.byCap[cap] = make(map[string]worker.Worker)
		}
		r.byCap[cap][w.ID()] = w
	}
}

// Deregister stops the worker and removes it from both indexes.
func (r *Registry) Deregister(ctx context.Context, id string) {
	r.mu.Lock()
	w, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		r.removeFromCapIndex(w)
	}
	r.mu.Unlock()

	if ok {
		w.Stop(ctx)
	}
}

func (r *Registry) removeFromCapIndex(w worker.Worker) {
	for cap := range w.Capabilities() {
		if idx, ok := r.byCap[cap]; ok {
			delete(idx, w.ID())
		}
	}
}

// Get returns a worker by id.
func (r *Registry) Get(id string) (worker.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byID[id]
	return w, ok
}

// ByCapability returns every worker advertising cap, ordered by id for
// determinism.
func (r *Registry) ByCapability(cap worker.Capability) []worker.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.byCap[cap]
	workers := make([]worker.Worker, 0, len(idx))
	for _, w := range idx {
		workers = append(workers, w)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID() < workers[j].ID() })
	return workers
}

// AvailableFor returns every worker that can currently handle t.
func (r *Registry) AvailableFor(t *task.Task) []worker.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	available := make([]worker.Worker, 0)
	for _, w := range r.byID {
		if w.CanHandle(t) {
			available = append(available, w)
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i].ID() < available[j].ID() })
	return available
}

// costPer1kTokens is satisfied by workers that price their usage (cloud-LLM
// variants); workers that don't implement it are left out of the cost
// tie-break and fall through to the id tie-break.
type costPer1kTokens interface {
	CostPer1kTokens() float64
}

// BestFor returns the most preferable available worker for t: lowest
// current load first, then cheapest cost_per_1k_tokens when the candidates
// expose one, then worker id for determinism. Returns nil if none is
// available.
func (r *Registry) BestFor(t *task.Task) worker.Worker {
	candidates := r.AvailableFor(t)
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Load() != b.Load() {
			return a.Load() < b.Load()
		}
		ac, aok := a.(costPer1kTokens)
		bc, bok := b.(costPer1kTokens)
		if aok && bok && ac.CostPer1kTokens() != bc.CostPer1kTokens() {
			return ac.CostPer1kTokens() < bc.CostPer1kTokens()
		}
		return a.ID() < b.ID()
	})

	return candidates[0]
}

// HealthCheckAll invokes every worker's HealthCheck concurrently, bounded
// by maxConcurrent.
func (r *Registry) HealthCheckAll(ctx context.Context, maxConcurrent int) {
	r.mu.RLock()
	workers := make([]worker.Worker, 0, len(r.byID))
	for _, w := range r.byID {
		workers = append(workers, w)
	}
	r.mu.RUnlock()

	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		sem <- struct{}{}
		go func(w worker.Worker) {
			defer wg.Done()
			defer func() { <-sem }()
			w.HealthCheck(ctx)
		}(w)
	}
	wg.Wait()
}

// Statistics aggregates worker counts by status and by capability.
type Statistics struct {
	TotalWorkers     int
	ByStatus         map[worker.Status]int
	ByCapability     map[worker.Capability]int
	AvailableWorkers int
}

// Statistics returns the current aggregate view.
func (r *Registry) Statistics() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Statistics{
		ByStatus:     make(map[worker.Status]int),
		ByCapability: make(map[worker.Capability]int),
	}

	for _, w := range r.byID {
		stats.TotalWorkers++
		stats.ByStatus[w.Status()]++
		if w.Status() == worker.StatusIdle && w.Load() < w.ConcurrencyCap() {
			stats.AvailableWorkers++
		}
	}
	for cap, idx := range r.byCap {
		stats.ByCapability[cap] = len(idx)
	}

	return stats
}
