package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mk(id ThreadID, prio uint) *thread {
	return newThread(id, prio, 1, func(uint) {})
}

func TestReadyQueueOrdersByPriority(t *testing.T) {
	var q readyQueue
	q.insert(mk(1, 2))
	q.insert(mk(2, 5))
	q.insert(mk(3, 0))
	q.insert(mk(4, 3))

	require.Equal(t, []ThreadID{3, 1, 4, 2}, q.ids())
	require.Equal(t, ThreadID(2), q.peek().id)
}

func TestReadyQueueEqualPriorityIsFIFO(t *testing.T) {
	var q readyQueue
	q.insert(mk(1, 3))
	q.insert(mk(2, 3))
	q.insert(mk(3, 1))
	q.insert(mk(4, 3))

	// newer equal-priority entries land closer to the head
	require.Equal(t, []ThreadID{3, 4, 2, 1}, q.ids())

	var order []ThreadID
	for q.len() > 0 {
		order = append(order, q.removeNext().id)
	}
	require.Equal(t, []ThreadID{1, 2, 4, 3}, order)
}

func TestReadyQueueReinsertKeepsOthersInPlace(t *testing.T) {
	var q readyQueue
	a, b, c := mk(1, 2), mk(2, 2), mk(3, 4)
	q.insert(a)
	q.insert(b)
	q.insert(c)

	top := q.removeNext()
	require.Same(t, c, top)
	require.False(t, top.queued)

	q.insert(top)
	require.Equal(t, []ThreadID{2, 1, 3}, q.ids())
	require.True(t, top.queued)
}

func TestReadyQueueEmpty(t *testing.T) {
	var q readyQueue
	require.Nil(t, q.peek())
	require.Nil(t, q.removeNext())
	require.Zero(t, q.len())
}
