package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat periodically emits heartbeat events. A handler that never yields
// starves every other logical thread; heartbeats that keep reporting the same
// probe value make that visible in the trace.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	probe    func() string
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
}

// StartHeartbeat creates and starts a new heartbeat goroutine.
// probe may be nil; when set its result becomes the event detail and must be
// safe to call from any goroutine.
func StartHeartbeat(tracer Tracer, interval time.Duration, probe func() string) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}

	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		probe:    probe,
		stopCh:   make(chan struct{}),
		started:  true,
	}

	h.wg.Add(1)
	go h.run()

	return h
}

func (h *Heartbeat) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	beat := uint64(0)
	for {
		select {
		case <-ticker.C:
			beat++
			detail := fmt.Sprintf("#%d", beat)
			if h.probe != nil {
				detail += " " + h.probe()
			}
			h.tracer.Emit(&Event{
				Time:   time.Now(),
				Kind:   KindHeartbeat,
				Scope:  ScopeScheduler,
				GID:    getGoroutineID(),
				Name:   "heartbeat",
				Detail: detail,
			})
		case <-h.stopCh:
			return
		}
	}
}

// Stop stops the heartbeat goroutine and waits for it to finish.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}

	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return
	}
	h.started = false
	h.mu.Unlock()

	close(h.stopCh)
	h.wg.Wait()
}
