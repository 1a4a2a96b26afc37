// Package breaker implements the circuit breaker pattern over the pipeline
// processor contract. A breaker wraps exactly one downstream processor and
// decides per exchange whether to forward it, reject it immediately, or
// forward it as a recovery probe.
//
// States:
//
//   - CLOSED: normal operation, exchanges are forwarded
//   - OPEN: threshold reached, exchanges are rejected until the cool-down
//     elapses
//   - HALF-OPEN: cool-down elapsed, one probe exchange has been forwarded
//
// Usage:
//
//	cb := breaker.New(target, gate, logger)
//	cb.SetThreshold(3)
//	cb.SetHalfOpenAfter(30 * time.Second)
//	sync := cb.Process(ex, func(doneSync bool) {
//	    // exchange finished; inspect ex.Error()
//	})
//
// The wrapped processor may complete an exchange either on the calling
// goroutine or later from another one; the breaker supports both without
// blocking and guarantees the caller's callback fires exactly once.
package breaker
