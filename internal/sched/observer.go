package sched

// Reason explains why a logical thread changed state.
type Reason uint8

const (
	ReasonSpawn    Reason = iota + 1 // new -> ready
	ReasonDispatch                   // ready -> running
	ReasonPriority                   // running -> ready, a higher priority thread became ready
	ReasonQuantum                    // running -> ready, quantum expired with an equal-priority contender
	ReasonWait                       // running -> waiting
	ReasonSignal                     // waiting -> ready
	ReasonExit                       // running -> terminated
	ReasonStall                      // waiting -> running, nothing else was runnable
)

// String returns the string representation of Reason.
func (r Reason) String() string {
	switch r {
	case ReasonSpawn:
		return "spawn"
	case ReasonDispatch:
		return "dispatch"
	case ReasonPriority:
		return "preempt-priority"
	case ReasonQuantum:
		return "preempt-quantum"
	case ReasonWait:
		return "wait"
	case ReasonSignal:
		return "signal"
	case ReasonExit:
		return "exit"
	case ReasonStall:
		return "stall"
	default:
		return "unknown"
	}
}

// Transition records one state change of a logical thread.
type Transition struct {
	Tick     uint64 // Exec calls so far
	Thread   ThreadID
	Priority uint
	From     State
	To       State
	Reason   Reason
	Event    int // event class for wait/signal, -1 otherwise
}

// Observer receives every transition. Calls are made by whichever goroutine
// holds the processor, so they never overlap, but the observer must not call
// back into the scheduler.
type Observer interface {
	OnTransition(tr Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(tr Transition)

// OnTransition calls f(tr).
func (f ObserverFunc) OnTransition(tr Transition) { f(tr) }

// Observers fans a transition out to several observers in order.
type Observers []Observer

// OnTransition forwards tr to every non-nil observer.
func (o Observers) OnTransition(tr Transition) {
	for _, obs := range o {
		if obs != nil {
			obs.OnTransition(tr)
		}
	}
}
