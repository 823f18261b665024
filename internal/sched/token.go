package sched

// token is a binary hand-off semaphore owned by a single logical thread.
// open never blocks and saturates at one pending permit; only the owning
// goroutine calls wait.
type token struct {
	ch chan struct{}
}

func newToken() token {
	return token{ch: make(chan struct{}, 1)}
}

func (t token) open() {
	select {
	case t.ch <- struct{}{}:
	default:
	}
}

func (t token) wait() {
	<-t.ch
}

// drain discards a pending permit, if any.
func (t token) drain() {
	select {
	case <-t.ch:
	default:
	}
}
