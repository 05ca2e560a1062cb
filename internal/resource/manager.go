package resource

import "sync"

// LocalLLMWorker is the minimal view the manager needs of a registered
// local-LLM worker for the prefer-local/prefer-cloud resolution.
type LocalLLMWorker interface {
	ID() string
	Available() bool
}

// Manager owns the cloud-LLM pool and the reservation table, and resolves
// LLM requests across local and cloud tiers.
type Manager struct {
	Pool        *LLMAPIPool
	Reservation *ReservationTable

	mu          sync.RWMutex
	localLLMs   map[string]LocalLLMWorker
}

// NewManager creates a resource manager with an empty pool and reservation
// table.
func NewManager() *Manager {
	return &Manager{
		Pool:        NewLLMAPIPool(),
		Reservation: NewReservationTable(),
		localLLMs:   make(map[string]LocalLLMWorker),
	}
}

// RegisterLocalLLM adds a local-LLM worker to the manager's local tier.
func (m *Manager) RegisterLocalLLM(w LocalLLMWorker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localLLMs[w.ID()] = w
}

// DeregisterLocalLLM removes a local-LLM worker.
func (m *Manager) DeregisterLocalLLM(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.localLLMs, id)
}

// ResolveLLMWorker implements the original three-tier preference: when
// preferLocal is set, try an available local worker first, then fall back
// to the cloud pool; when it is not set, try the cloud pool first, then
// fall back to local. Returns the resolved worker id and tier ("local" or
// "cloud"), or ("", "") if nothing is available.
func (m *Manager) ResolveLLMWorker(preferLocal bool, apiType string) (id string, tier string) {
	local := func() (string, bool) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		for wid, w := range m.localLLMs {
			if w.Available() {
				return wid, true
			}
		}
		return "", false
	}
	cloud := func() (string, bool) {
		if w := m.Pool.Select(apiType, true); w != nil {
			return w.ID(), true
		}
		return "", false
	}

	if preferLocal {
		if wid, ok := local(); ok {
			return wid, "local"
		}
		if wid, ok := cloud(); ok {
			return wid, "cloud"
		}
		return "", ""
	}

	if wid, ok := cloud(); ok {
		return wid, "cloud"
	}
	if wid, ok := local(); ok {
		return wid, "local"
	}
	return "", ""
}

// LocalLLMCount returns the number of registered local-LLM workers.
func (m *Manager) LocalLLMCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.localLLMs)
}

// Stats aggregates reservation totals, cloud-LLM usage, and local-LLM
// worker count, per the spec's reservation-table stats() operation.
type Stats struct {
	Totals          Totals
	CloudUsage      []UsageSummary
	CloudAggregate  UsageSummary
	LocalLLMWorkers int
}

// Stats returns the current aggregate view.
func (m *Manager) Stats() Stats {
	perWorker, aggregate := m.Pool.UsageSummary()
	return Stats{
		Totals:          m.Reservation.Stats(),
		CloudUsage:      perWorker,
		CloudAggregate:  aggregate,
		LocalLLMWorkers: m.LocalLLMCount(),
	}
}
