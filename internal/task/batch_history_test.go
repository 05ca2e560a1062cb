package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelBatchAllCompleted(t *testing.T) {
	b := NewParallelBatch()
	require.NotEmpty(t, b.ID)

	a := New(KindToolCall, nil, PriorityNormal)
	c := New(KindToolCall, nil, PriorityNormal)
	b.Add(a)
	b.Add(c)

	assert.False(t, b.AllCompleted())

	a.MarkCompleted(&Result{Success: true})
	assert.False(t, b.AllCompleted())

	c.MarkFailed(&Result{Success: false})
	c.MarkFailed(&Result{Success: false})
	c.MarkFailed(&Result{Success: false})
	c.MarkFailed(&Result{Success: false})
	assert.True(t, b.AllCompleted())

	results := b.Results()
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
}

func TestHistoryEvictsOldestOnOverflow(t *testing.T) {
	h := NewHistory(2)

	t1 := New(KindToolCall, nil, PriorityNormal)
	t2 := New(KindToolCall, nil, PriorityNormal)
	t3 := New(KindToolCall, nil, PriorityNormal)

	h.Record(t1)
	h.Record(t2)
	h.Record(t3)

	_, ok := h.Get(t1.ID)
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = h.Get(t3.ID)
	assert.True(t, ok)
	assert.Equal(t, 3, h.ActiveCount())
}

func TestHistoryMarkInactiveAndRecentFilter(t *testing.T) {
	h := NewHistory(10)

	running := New(KindToolCall, nil, PriorityNormal)
	done := New(KindToolCall, nil, PriorityNormal)
	done.MarkCompleted(&Result{Success: true})

	h.Record(running)
	h.Record(done)
	h.MarkInactive(done.ID)

	assert.Equal(t, 1, h.ActiveCount())

	completed := h.Recent(10, StatusCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, done.ID, completed[0].ID)

	all := h.Recent(10, "")
	require.Len(t, all, 2)
	assert.Equal(t, done.ID, all[0].ID, "newest first")
}
