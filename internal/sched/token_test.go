package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenSaturatesAtOnePermit(t *testing.T) {
	tok := newToken()
	tok.open()
	tok.open()
	tok.wait()

	done := make(chan struct{})
	go func() {
		tok.wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second wait must block: open is a binary signal")
	case <-time.After(20 * time.Millisecond):
	}

	tok.open()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was not released")
	}
}

func TestTokenDrain(t *testing.T) {
	tok := newToken()
	tok.drain()
	tok.open()
	tok.drain()
	require.Len(t, tok.ch, 0)
}
