// Package scheduler holds the pending-task queue and dispenses
// dependency-ready batches in priority order.
package scheduler

import (
	"sync"

	"github.com/synapseflow/compute-orchestrator/internal/task"
)

// Scheduler is a priority queue keyed by (priority, submitted_at), gated on
// task dependency readiness at dispense time.
type Scheduler struct {
	mu    sync.Mutex
	queue []*task.Task
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Enqueue adds t to the queue and marks it QUEUED.
func (s *Scheduler) Enqueue(t *task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.MarkQueued()
	s.queue = append(s.queue, t)
}

// EnqueueBatch adds every task in a parallel batch to the queue.
func (s *Scheduler) EnqueueBatch(tasks []*task.Task) {
	for _, t := range tasks {
		s.Enqueue(t)
	}
}

// NextBatch removes and returns up to maxSize tasks that are dependency-
// ready against completed, in priority order. Tasks whose dependencies are
// not yet satisfied are left in the queue for a later call.
func (s *Scheduler) NextBatch(maxSize int, completed map[string]struct{}) []*task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxSize <= 0 {
		return nil
	}

	task.SortByPriority(s.queue)

	batch := make([]*task.Task, 0, maxSize)
	remaining := s.queue[:0]
	for _, t := range s.queue {
		if len(batch) >= maxSize {
			remaining = append(remaining, t)
			continue
		}
		if t.IsReady(completed) {
			batch = append(batch, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	s.queue = remaining
	return batch
}

// Size returns the number of tasks still queued.
func (s *Scheduler) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Requeue puts t back into the queue, e.g. after a transient dispatch
// failure that should not count as a retry attempt. NextBatch re-sorts by
// (priority, submitted_at), so a requeued task is dispensed in that order,
// not ahead of older tasks of the same priority.
func (s *Scheduler) Requeue(t *task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append([]*task.Task{t}, s.queue...)
}
