package sched

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"quanta/internal/trace"
)

// live guards against two schedulers existing at once.
var live atomic.Bool

// Config configures a Scheduler.
type Config struct {
	// Quantum is the number of Exec calls a thread may make per turn. Must be > 0.
	Quantum uint
	// Events is the number of event classes, at most MaxEvents.
	Events uint
	// Tracer receives scheduler events; nil means trace.Nop.
	Tracer trace.Tracer
	// Observer receives every state transition; may be nil.
	Observer Observer
	// OnFatal handles broken scheduler invariants. The default prints the
	// error and any ring trace to stderr and exits with status 1.
	OnFatal func(err error)
}

// Scheduler runs logical threads one at a time.
//
// After the first Spawn, every method except Shutdown must be called from
// inside a handler: the running handler is the sole owner of the scheduler's
// state.
type Scheduler struct {
	quantum  uint
	events   uint
	threads  []*thread // every thread ever spawned, in spawn order
	ready    readyQueue
	current  *thread
	nextID   ThreadID
	tick     uint64
	group    errgroup.Group
	tracer   trace.Tracer
	observer Observer
	onFatal  func(error)
	closed   bool
	final    []ThreadInfo

	// mirrors of current/tick that other goroutines may read
	running atomic.Uint64
	ticks   atomic.Uint64
}

// New creates the process-wide scheduler. It fails if another scheduler is
// still live or if the configuration is invalid.
func New(cfg Config) (*Scheduler, error) {
	if live.Load() {
		return nil, ErrAlreadyInitialized
	}
	if cfg.Quantum == 0 {
		return nil, ErrInvalidQuantum
	}
	if cfg.Events > MaxEvents {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyEvents, cfg.Events, MaxEvents)
	}
	if !live.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInitialized
	}

	s := &Scheduler{
		quantum:  cfg.Quantum,
		events:   cfg.Events,
		tracer:   cfg.Tracer,
		observer: cfg.Observer,
		onFatal:  cfg.OnFatal,
	}
	if s.tracer == nil {
		s.tracer = trace.Nop
	}
	if s.onFatal == nil {
		s.onFatal = s.die
	}
	if trace.On(s.tracer, trace.ScopeScheduler) {
		s.tracer.Emit(trace.Point(trace.ScopeScheduler, "init", "", map[string]string{
			"quantum": strconv.FormatUint(uint64(cfg.Quantum), 10),
			"events":  strconv.FormatUint(uint64(cfg.Events), 10),
		}))
	}
	return s, nil
}

// Quantum returns the configured time slice.
func (s *Scheduler) Quantum() uint { return s.quantum }

// Events returns the configured number of event classes.
func (s *Scheduler) Events() uint { return s.events }

// Spawn creates a logical thread running h at the given priority and returns
// its ID. When called from a running handler the caller consumes one quantum
// unit and may be preempted by the new thread.
func (s *Scheduler) Spawn(h Handler, priority uint) (ThreadID, error) {
	if s == nil || s.closed {
		return InvalidID, ErrShutdown
	}
	if h == nil {
		return InvalidID, ErrNilHandler
	}
	if priority > MaxPriority {
		return InvalidID, fmt.Errorf("%w: %d > %d", ErrInvalidPriority, priority, MaxPriority)
	}

	s.nextID++
	t := newThread(s.nextID, priority, s.quantum, h)
	id := t.id
	s.threads = append(s.threads, t)
	s.group.Go(func() error {
		s.run(t)
		return nil
	})

	t.state = StateReady
	s.enqueue(t)
	s.transition(t, StateNew, ReasonSpawn)

	if s.holding() {
		s.Exec()
	} else {
		s.reschedule()
	}
	return id, nil
}

// Wait blocks the calling thread until ev is signalled.
//
// If no other thread is ready the wait cannot be satisfied by anyone, so the
// caller keeps the processor and Wait returns immediately.
func (s *Scheduler) Wait(ev uint) error {
	if s == nil || s.closed {
		return ErrShutdown
	}
	if ev >= s.events {
		return fmt.Errorf("%w: %d (have %d)", ErrInvalidEvent, ev, s.events)
	}
	t := s.current
	if t == nil || t.state != StateRunning {
		return ErrNoCurrentThread
	}
	t.state = StateWaiting
	t.event = ev
	s.transitionEvent(t, StateRunning, ReasonWait, int(ev))
	s.Exec()
	return nil
}

// Signal wakes every thread waiting on ev and returns how many it woke.
// All woken threads are queued before the single decision pass that follows.
func (s *Scheduler) Signal(ev uint) (int, error) {
	if s == nil || s.closed {
		return 0, ErrShutdown
	}
	if ev >= s.events {
		return 0, fmt.Errorf("%w: %d (have %d)", ErrInvalidEvent, ev, s.events)
	}

	woken := 0
	for _, t := range s.threads {
		if t.state != StateWaiting || t.event != ev {
			continue
		}
		t.state = StateReady
		t.event = noEvent
		s.enqueue(t)
		s.transitionEvent(t, StateWaiting, ReasonSignal, int(ev))
		woken++
	}

	if s.holding() {
		s.Exec()
	} else {
		s.reschedule()
	}
	return woken, nil
}

// Exec consumes one quantum unit of the running thread and re-evaluates who
// should hold the processor. It returns once the caller is selected again.
func (s *Scheduler) Exec() {
	if s == nil || s.closed {
		return
	}
	t := s.current
	if t == nil || t.state == StateTerminated {
		return
	}
	s.tick++
	s.ticks.Store(s.tick)
	if t.remaining > 0 {
		t.remaining--
	}
	if s.reschedule() {
		t.token.wait()
	}
}

// Shutdown waits for every handler to return, then releases all threads and
// allows a new scheduler to be created. It is a no-op on a nil or already
// shut down scheduler.
func (s *Scheduler) Shutdown() {
	if s == nil || s.closed {
		return
	}
	span := trace.Begin(s.tracer, trace.ScopeScheduler, "shutdown", 0)

	_ = s.group.Wait()

	final := make([]ThreadInfo, len(s.threads))
	for i, t := range s.threads {
		if t.state != StateTerminated {
			s.fatal(fmt.Errorf("thread %d joined in state %s", t.id, t.state))
		}
		final[i] = t.info()
		t.token.drain()
		t.body = nil
	}

	s.final = final
	s.threads = nil
	s.ready = readyQueue{}
	s.current = nil
	s.running.Store(0)
	s.closed = true
	live.Store(false)

	span.WithExtra("threads", strconv.Itoa(len(final))).End("")
}

// Current returns the ID of the thread holding the processor, or InvalidID.
func (s *Scheduler) Current() ThreadID {
	if s == nil || s.current == nil {
		return InvalidID
	}
	return s.current.id
}

// Snapshot describes every thread in spawn order. After Shutdown it returns
// the final states.
func (s *Scheduler) Snapshot() []ThreadInfo {
	if s == nil {
		return nil
	}
	if s.closed {
		out := make([]ThreadInfo, len(s.final))
		copy(out, s.final)
		return out
	}
	out := make([]ThreadInfo, len(s.threads))
	for i, t := range s.threads {
		out[i] = t.info()
	}
	return out
}

// Probe summarizes progress; it is safe to call from any goroutine.
func (s *Scheduler) Probe() string {
	return fmt.Sprintf("running=%d tick=%d", s.running.Load(), s.ticks.Load())
}

// holding reports whether a logical thread currently owns the processor.
func (s *Scheduler) holding() bool {
	return s.current != nil && s.current.state == StateRunning
}

// run is the body of the goroutine backing t.
func (s *Scheduler) run(t *thread) {
	t.token.wait()
	s.invoke(t)
	t.state = StateTerminated
	s.transition(t, StateRunning, ReasonExit)
	s.reschedule()
}

func (s *Scheduler) invoke(t *thread) {
	defer func() {
		if r := recover(); r != nil {
			s.fatal(fmt.Errorf("thread %d: handler panicked: %v", t.id, r))
		}
	}()
	t.body(t.priority)
}

func (s *Scheduler) fatal(err error) {
	if trace.On(s.tracer, trace.ScopeScheduler) {
		s.tracer.Emit(trace.Point(trace.ScopeScheduler, "fatal", err.Error(), nil))
	}
	s.onFatal(err)
}

// die is the default fatal handler.
func (s *Scheduler) die(err error) {
	fmt.Fprintf(os.Stderr, "quanta: fatal: %v\n", err)
	if ok, _ := trace.DumpRings(s.tracer, os.Stderr, trace.FormatText); ok {
		fmt.Fprintln(os.Stderr, "quanta: end of trace dump")
	}
	os.Exit(1)
}
