package sched

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"quanta/internal/trace"
)

// harness collects what handlers observe. Handlers run one at a time and the
// test goroutine only reads after Shutdown, so no locking is needed.
type harness struct {
	s           *Scheduler
	log         []string
	transitions []Transition
	fatals      []error
}

func newHarness(t *testing.T, quantum, events uint) *harness {
	t.Helper()
	h := &harness{}
	s, err := New(Config{
		Quantum:  quantum,
		Events:   events,
		Observer: ObserverFunc(func(tr Transition) { h.transitions = append(h.transitions, tr) }),
		OnFatal:  func(err error) { h.fatals = append(h.fatals, err) },
	})
	require.NoError(t, err)
	h.s = s
	t.Cleanup(s.Shutdown)
	return h
}

func (h *harness) logf(format string, args ...any) {
	h.log = append(h.log, fmt.Sprintf(format, args...))
}

// steps returns a handler that logs and yields n times.
func (h *harness) steps(name string, n int) Handler {
	return func(uint) {
		for i := 0; i < n; i++ {
			h.logf("%s:%d", name, i)
			h.s.Exec()
		}
	}
}

func (h *harness) count(reason Reason) int {
	n := 0
	for _, tr := range h.transitions {
		if tr.Reason == reason {
			n++
		}
	}
	return n
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Quantum: 0, Events: 1})
	require.ErrorIs(t, err, ErrInvalidQuantum)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(Config{Quantum: 1, Events: MaxEvents + 1})
	require.ErrorIs(t, err, ErrTooManyEvents)

	s, err := New(Config{Quantum: 1, Events: MaxEvents})
	require.NoError(t, err)

	_, err = New(Config{Quantum: 1, Events: 1})
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	s.Shutdown()
	s.Shutdown()

	again, err := New(Config{Quantum: 3, Events: 0})
	require.NoError(t, err, "shutdown must allow a new scheduler")
	again.Shutdown()
}

func TestShutdownNilIsNoop(t *testing.T) {
	var s *Scheduler
	s.Shutdown()
	require.Equal(t, InvalidID, s.Current())
}

func TestSpawnValidation(t *testing.T) {
	h := newHarness(t, 1, 1)

	id, err := h.s.Spawn(nil, 1)
	require.ErrorIs(t, err, ErrNilHandler)
	require.Equal(t, InvalidID, id)

	id, err = h.s.Spawn(func(uint) {}, MaxPriority+1)
	require.ErrorIs(t, err, ErrInvalidPriority)
	require.Equal(t, InvalidID, id)

	require.Empty(t, h.s.Snapshot(), "rejected spawns must not register threads")
	require.Empty(t, h.transitions)
}

func TestRoundRobinAmongEqualPriorities(t *testing.T) {
	h := newHarness(t, 2, 1)

	var ids [2]ThreadID
	_, err := h.s.Spawn(func(uint) {
		ids[1], _ = h.s.Spawn(h.steps("H2", 4), 5)
		h.steps("H1", 4)(5)
	}, 5)
	require.NoError(t, err)
	h.s.Shutdown()

	require.Equal(t, []string{
		"H1:0",
		"H2:0", "H2:1",
		"H1:1", "H1:2",
		"H2:2", "H2:3",
		"H1:3",
	}, h.log)
	require.Equal(t, ThreadID(2), ids[1])
	require.Equal(t, 4, h.count(ReasonQuantum))
	require.Zero(t, h.count(ReasonPriority))
	require.Empty(t, h.fatals)
}

func TestHigherPriorityPreemptsMidQuantum(t *testing.T) {
	h := newHarness(t, 10, 1)

	_, err := h.s.Spawn(func(prio uint) {
		h.logf("low:start:%d", prio)
		_, _ = h.s.Spawn(func(prio uint) { h.logf("high:%d", prio) }, 4)
		h.logf("low:end")
	}, 1)
	require.NoError(t, err)
	h.s.Shutdown()

	require.Equal(t, []string{"low:start:1", "high:4", "low:end"}, h.log)
	require.Equal(t, 1, h.count(ReasonPriority))

	var preempted Transition
	for _, tr := range h.transitions {
		if tr.Reason == ReasonPriority {
			preempted = tr
		}
	}
	require.Equal(t, ThreadID(1), preempted.Thread)
	require.Equal(t, StateRunning, preempted.From)
	require.Equal(t, StateReady, preempted.To)
}

func TestQuantumExpiryWithoutContenderKeepsIncumbent(t *testing.T) {
	h := newHarness(t, 2, 1)

	_, err := h.s.Spawn(func(uint) {
		_, _ = h.s.Spawn(h.steps("low", 2), 1)
		h.steps("high", 6)(3)
		h.logf("remaining:%d", h.s.Snapshot()[0].Remaining)
	}, 3)
	require.NoError(t, err)
	h.s.Shutdown()

	require.Equal(t, []string{
		"high:0", "high:1", "high:2", "high:3", "high:4", "high:5",
		"remaining:1",
		"low:0", "low:1",
	}, h.log)
	require.Zero(t, h.count(ReasonQuantum))
	require.Zero(t, h.count(ReasonPriority))
}

func TestSingleThreadQuantumResets(t *testing.T) {
	h := newHarness(t, 1, 1)

	var remaining []uint
	_, err := h.s.Spawn(func(uint) {
		for i := 0; i < 3; i++ {
			h.s.Exec()
			remaining = append(remaining, h.s.Snapshot()[0].Remaining)
		}
	}, 0)
	require.NoError(t, err)
	h.s.Shutdown()

	require.Equal(t, []uint{1, 1, 1}, remaining)
}

func TestWaitAndSignal(t *testing.T) {
	h := newHarness(t, 5, 2)

	_, err := h.s.Spawn(func(uint) {
		_, _ = h.s.Spawn(func(uint) {
			h.logf("B:signal1")
			n, err := h.s.Signal(1)
			h.logf("B:woke %d err=%v", n, err)
			n, err = h.s.Signal(0)
			h.logf("B:woke %d err=%v", n, err)
		}, 1)
		h.logf("A:wait")
		err := h.s.Wait(0)
		h.logf("A:woken err=%v", err)
	}, 2)
	require.NoError(t, err)
	h.s.Shutdown()

	require.Equal(t, []string{
		"A:wait",
		"B:signal1",
		"B:woke 0 err=<nil>",
		"A:woken err=<nil>",
		"B:woke 1 err=<nil>",
	}, h.log)
	require.Equal(t, 1, h.count(ReasonWait))
	require.Equal(t, 1, h.count(ReasonSignal))
	require.Zero(t, h.count(ReasonStall))
}

func TestSignalWakesAllWaitersInArrivalOrder(t *testing.T) {
	h := newHarness(t, 10, 1)

	waiter := func(name string) Handler {
		return func(uint) {
			_ = h.s.Wait(0)
			h.logf("%s:woken", name)
		}
	}
	_, err := h.s.Spawn(func(uint) {
		_, _ = h.s.Spawn(waiter("W1"), 3)
		_, _ = h.s.Spawn(waiter("W2"), 3)
		_, _ = h.s.Spawn(waiter("W3"), 3)
		_, _ = h.s.Spawn(func(uint) {
			n, _ := h.s.Signal(0)
			h.logf("S:done %d", n)
		}, 1)
	}, 4)
	require.NoError(t, err)
	h.s.Shutdown()

	require.Equal(t, []string{"W1:woken", "W2:woken", "W3:woken", "S:done 3"}, h.log)
}

func TestSignalWithoutWaitersChangesNothing(t *testing.T) {
	h := newHarness(t, 4, 3)

	var before, after []State
	var woken int
	_, err := h.s.Spawn(func(uint) {
		_, _ = h.s.Spawn(func(uint) {}, 0)
		for _, ti := range h.s.Snapshot() {
			before = append(before, ti.State)
		}
		woken, _ = h.s.Signal(2)
		for _, ti := range h.s.Snapshot() {
			after = append(after, ti.State)
		}
	}, 2)
	require.NoError(t, err)
	h.s.Shutdown()

	require.Zero(t, woken)
	require.Equal(t, before, after)
	require.Equal(t, []State{StateRunning, StateReady}, before)
}

func TestSignalOnlyWakesMatchingEvent(t *testing.T) {
	h := newHarness(t, 10, 2)

	var states []State
	_, err := h.s.Spawn(func(uint) {
		_, _ = h.s.Spawn(func(uint) { _ = h.s.Wait(0) }, 3)
		_, _ = h.s.Spawn(func(uint) { _ = h.s.Wait(1) }, 3)
		_, _ = h.s.Spawn(func(uint) {
			n, _ := h.s.Signal(1)
			h.logf("woke %d", n)
			for _, ti := range h.s.Snapshot() {
				states = append(states, ti.State)
			}
			_, _ = h.s.Signal(0)
		}, 1)
	}, 4)
	require.NoError(t, err)
	h.s.Shutdown()

	require.Equal(t, []string{"woke 1"}, h.log)
	// root terminated, waiter on 0 still waiting, waiter on 1 already ran
	require.Equal(t, []State{StateTerminated, StateWaiting, StateTerminated, StateRunning}, states)
}

func TestWaitWithNothingReadyFallsThrough(t *testing.T) {
	h := newHarness(t, 3, 1)

	_, err := h.s.Spawn(func(uint) {
		err := h.s.Wait(0)
		h.logf("returned err=%v state=%s", err, h.s.Snapshot()[0].State)
	}, 2)
	require.NoError(t, err)
	h.s.Shutdown()

	require.Equal(t, []string{"returned err=<nil> state=running"}, h.log)
	require.Equal(t, 1, h.count(ReasonStall))
}

func TestInvalidArgumentsLeaveStateUnchanged(t *testing.T) {
	h := newHarness(t, 2, 1)

	var errs []error
	var before, after []ThreadInfo
	_, err := h.s.Spawn(func(uint) {
		before = h.s.Snapshot()
		errs = append(errs, h.s.Wait(1))
		_, e := h.s.Signal(7)
		errs = append(errs, e)
		_, e = h.s.Spawn(func(uint) {}, MaxPriority+1)
		errs = append(errs, e)
		after = h.s.Snapshot()
	}, 1)
	require.NoError(t, err)
	h.s.Shutdown()

	require.Len(t, errs, 3)
	require.ErrorIs(t, errs[0], ErrInvalidEvent)
	require.ErrorIs(t, errs[1], ErrInvalidEvent)
	require.ErrorIs(t, errs[2], ErrInvalidPriority)
	for _, e := range errs {
		require.True(t, errors.Is(e, ErrInvalidArgument))
	}
	require.Equal(t, before, after)
}

func TestMutualExclusion(t *testing.T) {
	h := newHarness(t, 3, 1)

	var inside, violations atomic.Int32
	shared := 0 // unsynchronized on purpose: the race detector checks the hand-off
	body := func(uint) {
		for i := 0; i < 40; i++ {
			if inside.Add(1) != 1 {
				violations.Add(1)
			}
			shared++
			inside.Add(-1)
			h.s.Exec()
		}
	}
	_, err := h.s.Spawn(func(uint) {
		for i := 0; i < 8; i++ {
			_, _ = h.s.Spawn(body, uint(i%(MaxPriority+1)))
		}
		body(0)
	}, 2)
	require.NoError(t, err)
	h.s.Shutdown()

	require.Zero(t, violations.Load())
	require.Equal(t, 9*40, shared)
}

func TestDispatchNeverSkipsHigherPriority(t *testing.T) {
	var s *Scheduler
	var bad []string
	obs := ObserverFunc(func(tr Transition) {
		if tr.Reason != ReasonDispatch {
			return
		}
		for _, q := range s.ready.items {
			if q.priority > tr.Priority {
				bad = append(bad, fmt.Sprintf("dispatched %d (prio %d) over %d (prio %d)", tr.Thread, tr.Priority, q.id, q.priority))
			}
		}
	})
	var err error
	s, err = New(Config{Quantum: 2, Events: 2, Observer: obs, OnFatal: func(error) {}})
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)

	worker := func(ev uint) Handler {
		return func(uint) {
			for i := 0; i < 5; i++ {
				s.Exec()
				if i == 2 {
					_, _ = s.Signal(ev)
				}
			}
		}
	}
	_, err = s.Spawn(func(uint) {
		for i := uint(0); i < 10; i++ {
			_, _ = s.Spawn(worker(i%2), i%(MaxPriority+1))
			s.Exec()
		}
	}, 1)
	require.NoError(t, err)
	s.Shutdown()

	require.Empty(t, bad)
}

func TestShutdownTerminatesEverything(t *testing.T) {
	h := newHarness(t, 1, 1)

	_, err := h.s.Spawn(func(uint) {
		for i := 0; i < 5; i++ {
			_, _ = h.s.Spawn(h.steps(fmt.Sprintf("t%d", i), 3), uint(i))
		}
	}, 0)
	require.NoError(t, err)
	h.s.Shutdown()

	snap := h.s.Snapshot()
	require.Len(t, snap, 6)
	for i, ti := range snap {
		require.Equal(t, ThreadID(i+1), ti.ID)
		require.Equal(t, StateTerminated, ti.State)
	}
	require.Equal(t, 6, h.count(ReasonExit))
	require.Equal(t, 6, h.count(ReasonSpawn))

	_, err = h.s.Spawn(func(uint) {}, 0)
	require.ErrorIs(t, err, ErrShutdown)
}

func TestHandlerPanicIsFatal(t *testing.T) {
	h := newHarness(t, 1, 1)

	_, err := h.s.Spawn(func(uint) {
		_, _ = h.s.Spawn(func(uint) { h.logf("after") }, 0)
		panic("boom")
	}, 1)
	require.NoError(t, err)
	h.s.Shutdown()

	require.Len(t, h.fatals, 1)
	require.Contains(t, h.fatals[0].Error(), "boom")
	require.Equal(t, []string{"after"}, h.log, "remaining threads still run")
}

func TestTracerReceivesDecisions(t *testing.T) {
	ring := trace.NewRingTracer(64, trace.LevelDecision)
	s, err := New(Config{Quantum: 1, Events: 1, Tracer: ring})
	require.NoError(t, err)

	_, err = s.Spawn(func(uint) {
		_, _ = s.Spawn(func(uint) {}, 3)
	}, 0)
	require.NoError(t, err)
	s.Shutdown()

	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Name)
	}
	joined := strings.Join(names, " ")
	require.Contains(t, joined, "init")
	require.Contains(t, joined, "preempt-priority")
	require.Contains(t, joined, "exit")
	require.Contains(t, joined, "shutdown")
}
