// Package trace provides structured event tracing for the quanta scheduler.
//
// The scheduler reports lifecycle changes, per-thread transitions and
// decision-engine verdicts as trace events. A tracer is optional: when none is
// configured the scheduler falls back to Nop and pays only a level check.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	quanta run --trace=- --trace-level=decision scenario.toml
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - Nop: zero-overhead no-op tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer kept for crash dumps
//   - MultiTracer: fans out to several tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: only crash dumps
//   - LevelLifecycle: scheduler init/shutdown and CLI phases
//   - LevelThread: spawn, wait, signal, exit
//   - LevelDecision: every decision-engine verdict
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeScheduler, "run", 0)
//	defer span.End("")
package trace
