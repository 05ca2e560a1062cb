package task

import "github.com/google/uuid"

// ParallelBatch groups tasks whose dependencies are satisfied together so
// callers can dispatch and await them as a unit.
type ParallelBatch struct {
	ID    string
	Tasks []*Task
}

// NewParallelBatch creates an empty batch with a fresh id.
func NewParallelBatch() *ParallelBatch {
	return &ParallelBatch{ID: uuid.New().String()}
}

// Add appends a task to the batch.
func (b *ParallelBatch) Add(t *Task) {
	b.Tasks = append(b.Tasks, t)
}

// AllCompleted reports whether every task in the batch has reached a
// terminal status.
func (b *ParallelBatch) AllCompleted() bool {
	for _, t := range b.Tasks {
		if !t.IsTerminal() {
			return false
		}
	}
	return true
}

// Results returns each task's recorded result in batch order. A task with
// no recorded result yet is represented as nil.
func (b *ParallelBatch) Results() []*Result {
	results := make([]*Result, len(b.Tasks))
	for i, t := range b.Tasks {
		results[i] = t.Result()
	}
	return results
}
