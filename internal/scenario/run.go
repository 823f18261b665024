package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quanta/internal/sched"
	"quanta/internal/trace"
)

// Entry is one line of a run log.
type Entry struct {
	Thread string // instance name, e.g. "worker" or "worker#2"
	Op     Op
	Arg    uint
	Result int    // signal: threads woken
	Text   string // log instruction text
}

// String renders the entry the way [expect].log lines are written.
func (e Entry) String() string {
	switch e.Op {
	case OpExec:
		return e.Thread + ": exec"
	case OpWait:
		return fmt.Sprintf("%s: wait %d", e.Thread, e.Arg)
	case OpSignal:
		return fmt.Sprintf("%s: signal %d -> %d", e.Thread, e.Arg, e.Result)
	case OpFork:
		return fmt.Sprintf("%s: fork %s", e.Thread, e.Text)
	case OpLog:
		return fmt.Sprintf("%s: %s", e.Thread, e.Text)
	default:
		return e.Thread + ": ?"
	}
}

// ThreadResult describes one spawned instance after the run.
type ThreadResult struct {
	ID       sched.ThreadID
	Name     string
	Priority uint
	State    sched.State
}

// Result is the outcome of a scenario run.
type Result struct {
	Scenario    *Scenario
	Log         []Entry
	Threads     []ThreadResult
	Transitions []sched.Transition
}

// Lines renders the log as strings.
func (r *Result) Lines() []string {
	out := make([]string, len(r.Log))
	for i, e := range r.Log {
		out[i] = e.String()
	}
	return out
}

// Mismatch compares the log with the scenario's expectations. It returns ""
// when they agree or the scenario has none.
func (r *Result) Mismatch() string {
	if r.Scenario == nil || r.Scenario.Expect == nil {
		return ""
	}
	got := r.Lines()
	want := r.Scenario.Expect
	for i := 0; i < len(got) || i < len(want); i++ {
		var g, w string
		if i < len(got) {
			g = got[i]
		}
		if i < len(want) {
			w = want[i]
		}
		if g != w {
			return fmt.Sprintf("line %d: got %q, want %q", i+1, g, w)
		}
	}
	return ""
}

// Options tunes a run.
type Options struct {
	// Observer receives every transition in addition to the result recorder.
	Observer sched.Observer
	// Started, if set, is called with the scheduler before the root thread
	// is spawned. Only Probe is safe to call on it from other goroutines.
	Started func(*sched.Scheduler)
	// Named, if set, is called from the new thread when an instance starts.
	Named func(id sched.ThreadID, name string)
}

// runner holds interpreter state. Its fields are only touched by the goroutine
// holding the processor, and by the caller after Shutdown.
type runner struct {
	sc        *Scenario
	opts      Options
	s         *sched.Scheduler
	log       []Entry
	names     map[sched.ThreadID]string
	instances map[int]int
	fatals    []error
}

// Run executes sc on a fresh scheduler. The tracer is taken from ctx.
// It blocks until every scripted thread has finished.
func Run(ctx context.Context, sc *Scenario, opts Options) (*Result, error) {
	if sc == nil {
		return nil, errors.New("nil scenario")
	}
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeScheduler, "scenario:"+sc.Name, 0)

	res := &Result{Scenario: sc}
	r := &runner{
		sc:        sc,
		opts:      opts,
		names:     make(map[sched.ThreadID]string),
		instances: make(map[int]int),
	}
	recorder := sched.ObserverFunc(func(tr sched.Transition) {
		res.Transitions = append(res.Transitions, tr)
	})

	s, err := sched.New(sched.Config{
		Quantum:  sc.Quantum,
		Events:   sc.Events,
		Tracer:   tracer,
		Observer: sched.Observers{recorder, opts.Observer},
		OnFatal:  func(err error) { r.fatals = append(r.fatals, err) },
	})
	if err != nil {
		span.End("init failed")
		return nil, fmt.Errorf("scheduler init: %w", err)
	}
	r.s = s
	if opts.Started != nil {
		opts.Started(s)
	}

	if _, err := r.fork(sc.Root); err != nil {
		s.Shutdown()
		span.End("spawn failed")
		return nil, err
	}
	s.Shutdown()

	res.Log = r.log
	for _, ti := range s.Snapshot() {
		def := r.names[ti.ID]
		res.Threads = append(res.Threads, ThreadResult{
			ID:       ti.ID,
			Name:     def,
			Priority: ti.Priority,
			State:    ti.State,
		})
	}
	span.WithExtra("entries", fmt.Sprint(len(res.Log))).End("")

	if len(r.fatals) > 0 {
		return res, fmt.Errorf("scheduler fault: %w", errors.Join(r.fatals...))
	}
	return res, nil
}

// fork spawns an instance of the thread template at index def.
func (r *runner) fork(def int) (sched.ThreadID, error) {
	td := r.sc.Threads[def]
	r.instances[def]++
	name := td.Name
	if n := r.instances[def]; n > 1 {
		name = fmt.Sprintf("%s#%d", td.Name, n)
	}
	body := r.handler(name, td.Script)
	wrapped := func(prio uint) {
		id := r.s.Current()
		r.names[id] = name
		if r.opts.Named != nil {
			r.opts.Named(id, name)
		}
		body(prio)
	}
	id, err := r.s.Spawn(wrapped, td.Priority)
	if err != nil {
		return sched.InvalidID, fmt.Errorf("spawn %q: %w", name, err)
	}
	return id, nil
}

func (r *runner) handler(name string, script []Instr) sched.Handler {
	return func(uint) {
		for _, in := range script {
			r.step(name, in)
		}
	}
}

func (r *runner) step(name string, in Instr) {
	switch in.Op {
	case OpExec:
		for i := uint(0); i < in.Count; i++ {
			r.log = append(r.log, Entry{Thread: name, Op: OpExec})
			r.s.Exec()
		}
	case OpWait:
		r.log = append(r.log, Entry{Thread: name, Op: OpWait, Arg: in.Event})
		if err := r.s.Wait(in.Event); err != nil {
			r.fatals = append(r.fatals, fmt.Errorf("%s: wait %d: %w", name, in.Event, err))
		}
	case OpSignal:
		entry := len(r.log)
		r.log = append(r.log, Entry{Thread: name, Op: OpSignal, Arg: in.Event})
		n, err := r.s.Signal(in.Event)
		if err != nil {
			r.fatals = append(r.fatals, fmt.Errorf("%s: signal %d: %w", name, in.Event, err))
		}
		r.log[entry].Result = n
	case OpFork:
		target := r.sc.Threads[in.Target].Name
		r.log = append(r.log, Entry{Thread: name, Op: OpFork, Text: target})
		if _, err := r.fork(in.Target); err != nil {
			r.fatals = append(r.fatals, fmt.Errorf("%s: %w", name, err))
		}
	case OpLog:
		r.log = append(r.log, Entry{Thread: name, Op: OpLog, Text: in.Text})
	}
}

// Summary renders a compact per-thread table.
func (r *Result) Summary() string {
	var sb strings.Builder
	for _, th := range r.Threads {
		fmt.Fprintf(&sb, "%3d %-16s prio=%d %s\n", th.ID, th.Name, th.Priority, th.State)
	}
	return sb.String()
}
