package breaker

import (
	"sync/atomic"

	"github.com/akoutsou/pipegate/internal/exchange"
	"github.com/akoutsou/pipegate/internal/pipeline"
)

// continuation wraps the caller's callback for an exchange forwarded to the
// wrapped processor. When the processor completes the exchange on another
// goroutine (doneSync false), the continuation records the outcome before
// notifying the caller; for synchronous completions the forwarding caller
// has already recorded it.
//
// The fired flag guarantees the original callback sees at most one
// invocation even when the processor both signals the callback and reports
// synchronous completion.
type continuation struct {
	breaker *CircuitBreaker
	ex      *exchange.Exchange
	done    pipeline.Callback
	fired   atomic.Bool
}

func (c *continuation) Done(doneSync bool) {
	if !doneSync {
		c.breaker.recordOutcome(c.ex)
	}

	if c.fired.CompareAndSwap(false, true) {
		c.done(doneSync)
	}
}
