package sched

import (
	"fmt"
	"strconv"

	"quanta/internal/trace"
)

// reschedule runs one decision-engine pass. It reports whether the incumbent
// gave up the processor; if so the caller must block on its own token.
//
// Everything it touches is owned by the calling goroutine until the winner's
// token is opened, so opening a token is always the last thing it does.
func (s *Scheduler) reschedule() bool {
	cur := s.current
	next := s.ready.peek()

	if next == nil {
		if cur != nil {
			s.release(cur)
		}
		return false
	}

	// Waiting and terminated incumbents cannot continue, whatever their priority.
	if cur == nil || cur.state != StateRunning {
		s.start(s.ready.removeNext())
		return true
	}

	switch {
	case cur.priority < next.priority:
		s.preempt(cur, ReasonPriority)
		return true
	case cur.remaining == 0 && cur.priority == next.priority:
		s.preempt(cur, ReasonQuantum)
		return true
	case cur.remaining == 0:
		s.resetQuantum(cur, "no equal or higher contender")
	}
	return false
}

// release lets the incumbent keep the processor when nothing else is ready.
func (s *Scheduler) release(cur *thread) {
	if cur.state == StateWaiting {
		// Nobody is left who could signal it; let the wait fall through.
		cur.state = StateRunning
		ev := cur.event
		cur.event = noEvent
		s.transitionEvent(cur, StateWaiting, ReasonStall, int(ev))
	}
	if cur.state == StateRunning && cur.remaining == 0 {
		s.resetQuantum(cur, "ready queue empty")
	}
}

// preempt moves the incumbent back to the ready queue and hands the
// processor to the queue's best candidate.
func (s *Scheduler) preempt(cur *thread, reason Reason) {
	next := s.ready.removeNext()
	cur.state = StateReady
	cur.remaining = s.quantum
	s.enqueue(cur)
	s.transition(cur, StateRunning, reason)
	s.start(next)
}

// start promotes t to the processor and opens its token.
func (s *Scheduler) start(t *thread) {
	if t == nil {
		s.fatal(fmt.Errorf("dispatch with empty ready queue"))
		return
	}
	if t.queued {
		s.fatal(fmt.Errorf("thread %d dispatched while still queued", t.id))
		return
	}
	from := t.state
	t.state = StateRunning
	t.remaining = s.quantum
	s.current = t
	s.running.Store(uint64(t.id))
	s.transition(t, from, ReasonDispatch)
	t.token.open()
}

func (s *Scheduler) enqueue(t *thread) {
	if t.queued {
		s.fatal(fmt.Errorf("thread %d inserted into the ready queue twice", t.id))
		return
	}
	s.ready.insert(t)
}

func (s *Scheduler) resetQuantum(t *thread, why string) {
	t.remaining = s.quantum
	if trace.On(s.tracer, trace.ScopeDecision) {
		s.tracer.Emit(trace.Point(trace.ScopeDecision, "quantum-reset", why, map[string]string{
			"thread": strconv.FormatUint(uint64(t.id), 10),
			"tick":   strconv.FormatUint(s.tick, 10),
		}))
	}
}

func (s *Scheduler) transition(t *thread, from State, reason Reason) {
	s.transitionEvent(t, from, reason, -1)
}

func (s *Scheduler) transitionEvent(t *thread, from State, reason Reason, ev int) {
	tr := Transition{
		Tick:     s.tick,
		Thread:   t.id,
		Priority: t.priority,
		From:     from,
		To:       t.state,
		Reason:   reason,
		Event:    ev,
	}
	if s.observer != nil {
		s.observer.OnTransition(tr)
	}

	scope := trace.ScopeThread
	if reason == ReasonDispatch || reason == ReasonPriority || reason == ReasonQuantum {
		scope = trace.ScopeDecision
	}
	if !trace.On(s.tracer, scope) {
		return
	}
	extra := map[string]string{
		"thread":   strconv.FormatUint(uint64(t.id), 10),
		"priority": strconv.FormatUint(uint64(t.priority), 10),
		"tick":     strconv.FormatUint(s.tick, 10),
	}
	if ev >= 0 {
		extra["event"] = strconv.Itoa(ev)
	}
	s.tracer.Emit(trace.Point(scope, reason.String(), from.String()+"->"+t.state.String(), extra))
}
