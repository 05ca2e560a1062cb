package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapseflow/compute-orchestrator/internal/task"
)

func TestEnqueueMarksQueued(t *testing.T) {
	s := New()
	tk := task.New(task.KindToolCall, nil, task.PriorityNormal)
	s.Enqueue(tk)

	assert.Equal(t, task.StatusQueued, tk.Status())
	assert.Equal(t, 1, s.Size())
}

func TestNextBatchOrdersByPriority(t *testing.T) {
	s := New()
	low := task.New(task.KindToolCall, nil, task.PriorityLow)
	critical := task.New(task.KindToolCall, nil, task.PriorityCritical)
	normal := task.New(task.KindToolCall, nil, task.PriorityNormal)
	s.EnqueueBatch([]*task.Task{low, normal, critical})

	batch := s.NextBatch(10, nil)
	require.Len(t, batch, 3)
	assert.Equal(t, critical.ID, batch[0].ID)
	assert.Equal(t, normal.ID, batch[1].ID)
	assert.Equal(t, low.ID, batch[2].ID)
	assert.Equal(t, 0, s.Size())
}

func TestNextBatchHoldsBackNotReadyTasks(t *testing.T) {
	s := New()
	dep := task.New(task.KindToolCall, nil, task.PriorityNormal)
	blocked := task.New(task.KindToolCall, nil, task.PriorityCritical)
	blocked.DependsOn[dep.ID] = struct{}{}
	s.EnqueueBatch([]*task.Task{dep, blocked})

	batch := s.NextBatch(10, nil)
	require.Len(t, batch, 1)
	assert.Equal(t, dep.ID, batch[0].ID)
	assert.Equal(t, 1, s.Size(), "blocked task stays queued")

	batch = s.NextBatch(10, map[string]struct{}{dep.ID: {}})
	require.Len(t, batch, 1)
	assert.Equal(t, blocked.ID, batch[0].ID)
	assert.Equal(t, 0, s.Size())
}

func TestNextBatchRespectsMaxSize(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.Enqueue(task.New(task.KindToolCall, nil, task.PriorityNormal))
	}

	batch := s.NextBatch(2, nil)
	assert.Len(t, batch, 2)
	assert.Equal(t, 3, s.Size())
}

func TestRequeueKeepsSubmissionOrderWithinPriority(t *testing.T) {
	s := New()
	first := task.New(task.KindToolCall, nil, task.PriorityNormal)
	s.Enqueue(first)

	reentered := task.New(task.KindToolCall, nil, task.PriorityNormal)
	s.Requeue(reentered)

	batch := s.NextBatch(1, nil)
	require.Len(t, batch, 1)
	assert.Equal(t, first.ID, batch[0].ID, "older task of the same priority is dispensed first")
}
