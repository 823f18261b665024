// Package sched multiplexes logical threads onto goroutines under a
// priority-preemptive Round-Robin policy.
//
// Each logical thread owns a goroutine, but at most one of them executes
// handler code at any instant: every goroutine blocks on its private
// hand-off token until the decision engine opens it. Scheduler state
// (the thread registry, the ready queue and the current thread) is only
// ever mutated by the goroutine that currently holds the processor, so no
// lock protects it.
//
// Preemption is a matter of policy, not timing. A handler gives up the
// processor only when it calls into the scheduler (Exec, Wait, Signal or
// Spawn); at that point the decision engine picks the highest-priority ready
// thread, rotating equal priorities once the incumbent's quantum is spent.
//
//	s, err := sched.New(sched.Config{Quantum: 2, Events: 1})
//	if err != nil {
//		return err
//	}
//	s.Spawn(func(prio uint) {
//		s.Exec()
//	}, 3)
//	s.Shutdown()
package sched
