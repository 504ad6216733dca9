// Package monitor consumes the live output of the benchmark processes and
// turns it into result records. Each monitor runs in its own goroutine,
// owns its record exclusively, and hands it to the controller by value on
// a one-shot channel once it stops.
package monitor

import (
	"sync"
	"sync/atomic"
)

// Token is a one-way cancellation flag written by the controller and read
// by the server monitor. It only ever goes from unset to set; use a fresh
// Token per scenario.
type Token struct {
	cancelled atomic.Bool
	once      sync.Once
	done      chan struct{}
}

// NewToken returns an unset token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel sets the token. Idempotent.
func (t *Token) Cancel() {
	t.once.Do(func() {
		t.cancelled.Store(true)
		close(t.done)
	})
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

// Done is closed when the token is set.
func (t *Token) Done() <-chan struct{} {
	return t.done
}
