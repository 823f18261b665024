package sched

import "fmt"

// ThreadID identifies a logical thread. IDs start at 1 and are never reused.
type ThreadID uint64

// InvalidID is returned by Spawn when it refuses to create a thread.
const InvalidID ThreadID = 0

const (
	// MaxPriority is the highest priority a logical thread may declare.
	MaxPriority = 5
	// MaxEvents is the largest number of event classes a scheduler may use.
	MaxEvents = 256

	// noEvent marks a thread that is not waiting on anything.
	noEvent = MaxEvents
)

// Handler is the body of a logical thread. It receives the thread's priority.
type Handler func(priority uint)

// State is the scheduling state of a logical thread.
type State uint8

const (
	StateNew State = iota
	StateReady
	StateRunning
	StateWaiting
	StateTerminated
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// thread is the control block of one logical thread.
type thread struct {
	id        ThreadID
	state     State
	event     uint // meaningful only while waiting
	priority  uint
	remaining uint // quantum units left in the current turn
	queued    bool // present in the ready queue
	body      Handler
	token     token
}

func newThread(id ThreadID, priority, quantum uint, body Handler) *thread {
	return &thread{
		id:        id,
		state:     StateNew,
		event:     noEvent,
		priority:  priority,
		remaining: quantum,
		body:      body,
		token:     newToken(),
	}
}

// ThreadInfo is a read-only view of a logical thread.
type ThreadInfo struct {
	ID        ThreadID
	State     State
	Priority  uint
	Remaining uint
	// Event is the event class being waited on; only valid when State is StateWaiting.
	Event uint
}

func (t *thread) info() ThreadInfo {
	return ThreadInfo{
		ID:        t.id,
		State:     t.state,
		Priority:  t.priority,
		Remaining: t.remaining,
		Event:     t.event,
	}
}
