package resource

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Reservation is a coarse, book-keeping-only record of resources claimed
// for a task. It does not enforce OS-level limits.
type Reservation struct {
	TaskID      string
	CPUCores    float64
	MemoryMB    int
	GPU         bool
	AllocatedAt time.Time
}

// ReservationTable tracks in-flight coarse resource allocations, used to
// report aggregate load. Allocation always succeeds in this implementation;
// the interface leaves room for later enforcement.
type ReservationTable struct {
	mu           sync.Mutex
	reservations map[string]Reservation
}

// NewReservationTable creates an empty table.
func NewReservationTable() *ReservationTable {
	return &ReservationTable{reservations: make(map[string]Reservation)}
}

// Allocate records an allocation for taskID, replacing any existing one.
// Always succeeds.
func (t *ReservationTable) Allocate(taskID string, cpuCores float64, memoryMB int, gpu bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reservations[taskID] = Reservation{
		TaskID:      taskID,
		CPUCores:    cpuCores,
		MemoryMB:    memoryMB,
		GPU:         gpu,
		AllocatedAt: time.Now(),
	}
	return true
}

// Release removes a taskID's reservation, if any.
func (t *ReservationTable) Release(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.reservations, taskID)
}

// Totals is the aggregate of all currently allocated reservations plus a
// snapshot of real host CPU/memory gauges (gopsutil-backed) for reporting.
type Totals struct {
	AllocatedCPUCores float64
	AllocatedMemoryMB int
	AllocatedGPUs     int
	HostCPUPercent    float64
	HostMemoryPercent float64
}

// Stats aggregates current allocations and samples host CPU/memory usage.
// gopsutil sampling failures are non-fatal; the host gauges are left at
// zero so reservation bookkeeping is never blocked by a monitoring probe.
func (t *ReservationTable) Stats() Totals {
	t.mu.Lock()
	var totals Totals
	for _, r := range t.reservations {
		totals.AllocatedCPUCores += r.CPUCores
		totals.AllocatedMemoryMB += r.MemoryMB
		if r.GPU {
			totals.AllocatedGPUs++
		}
	}
	t.mu.Unlock()

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		totals.HostCPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		totals.HostMemoryPercent = vm.UsedPercent
	}

	return totals
}
