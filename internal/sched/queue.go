package sched

// readyQueue keeps ready threads in non-decreasing priority order from head
// to tail. The tail is always the next candidate.
//
// A thread is inserted in front of the first entry whose priority is greater
// than or equal to its own, so among equal priorities the longest-waiting
// thread sits closest to the tail. Insertions only ever happen from the
// goroutine that holds the processor, which is what makes slice position a
// valid arrival order.
type readyQueue struct {
	items []*thread
}

func (q *readyQueue) len() int {
	return len(q.items)
}

// position returns the index at which t belongs.
func (q *readyQueue) position(t *thread) int {
	i := 0
	for i < len(q.items) && q.items[i].priority < t.priority {
		i++
	}
	return i
}

func (q *readyQueue) insert(t *thread) {
	pos := q.position(t)
	q.items = append(q.items, nil)
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = t
	t.queued = true
}

// peek returns the highest-priority candidate without removing it.
func (q *readyQueue) peek() *thread {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[len(q.items)-1]
}

// removeNext removes and returns the highest-priority candidate.
func (q *readyQueue) removeNext() *thread {
	n := len(q.items)
	if n == 0 {
		return nil
	}
	t := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	t.queued = false
	return t
}

// ids lists queued thread IDs from head to tail.
func (q *readyQueue) ids() []ThreadID {
	out := make([]ThreadID, len(q.items))
	for i, t := range q.items {
		out[i] = t.id
	}
	return out
}
