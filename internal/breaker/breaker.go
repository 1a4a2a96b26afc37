package breaker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/akoutsou/pipegate/internal/exchange"
	"github.com/akoutsou/pipegate/internal/lifecycle"
	"github.com/akoutsou/pipegate/internal/pipeline"
)

// State is the circuit breaker state.
type State int32

const (
	StateClosed   State = iota // Normal operation
	StateHalfOpen              // One probe in flight after cool-down
	StateOpen                  // Rejecting requests
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF-OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// Defaults applied by New; override with SetThreshold and SetHalfOpenAfter.
const (
	DefaultThreshold     = 5
	DefaultHalfOpenAfter = 30 * time.Second
)

// CircuitBreaker guards a single wrapped processor. It counts qualifying
// failures and, once the threshold is reached, rejects exchanges for the
// half-open-after cool-down before letting a probe exchange through.
//
// The state field reflects the decision last taken, not the outcome of the
// exchange it admitted: forwarding a probe sets HALF-OPEN before the probe
// finishes, and a failed probe only moves the breaker to OPEN on the next
// incoming exchange. Observers therefore see the state lag the counters by
// one decision.
//
// state and failures are independently atomic; a decision does not observe
// the triple (state, failures, lastFailure) as one consistent snapshot.
// Concurrent exchanges racing a transition may each be admitted or rejected
// based on slightly stale counters, which is acceptable for this component.
type CircuitBreaker struct {
	target pipeline.AsyncProcessor
	gate   lifecycle.Gate
	logger *slog.Logger

	failureKinds []error

	threshold     int32
	halfOpenAfter time.Duration

	state       atomic.Int32
	failures    atomic.Int32
	lastFailure atomic.Int64 // unix nanos, zero until the first failure
}

// New creates a breaker around target in the CLOSED state with zero
// failures. failureKinds restricts which errors count toward the threshold;
// with none given, any attached error counts. A nil gate always admits.
//
// Threshold and half-open-after must be configured before the first
// exchange is processed.
func New(target pipeline.AsyncProcessor, gate lifecycle.Gate, logger *slog.Logger, failureKinds ...error) *CircuitBreaker {
	return &CircuitBreaker{
		target:        target,
		gate:          gate,
		logger:        logger,
		failureKinds:  failureKinds,
		threshold:     DefaultThreshold,
		halfOpenAfter: DefaultHalfOpenAfter,
	}
}

// SetThreshold sets the number of qualifying failures that trips the breaker.
func (cb *CircuitBreaker) SetThreshold(threshold int) {
	cb.threshold = int32(threshold)
}

// Threshold returns the configured failure threshold.
func (cb *CircuitBreaker) Threshold() int {
	return int(cb.threshold)
}

// SetHalfOpenAfter sets how long a tripped breaker waits before allowing a
// probe exchange through.
func (cb *CircuitBreaker) SetHalfOpenAfter(d time.Duration) {
	cb.halfOpenAfter = d
}

// HalfOpenAfter returns the configured cool-down duration.
func (cb *CircuitBreaker) HalfOpenAfter() time.Duration {
	return cb.halfOpenAfter
}

// FailureKinds returns the configured failure filter; empty means any
// error counts as a failure.
func (cb *CircuitBreaker) FailureKinds() []error {
	return cb.failureKinds
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

// Failures returns the current qualifying-failure count.
func (cb *CircuitBreaker) Failures() int {
	return int(cb.failures.Load())
}

// LastFailure returns the time of the last qualifying failure, or the zero
// time if none has occurred.
func (cb *CircuitBreaker) LastFailure() time.Time {
	nanos := cb.lastFailure.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// Process implements pipeline.AsyncProcessor. It either rejects the
// exchange immediately, or forwards it to the wrapped processor with a
// continuation that records the outcome. The callback is invoked exactly
// once, synchronously when Process returns true and later otherwise.
func (cb *CircuitBreaker) Process(ex *exchange.Exchange, done pipeline.Callback) bool {
	if !cb.isRunAllowed() {
		cb.logger.Debug("run not allowed, rejecting exchange",
			slog.String("exchange_id", ex.ID()))
		if ex.Error() == nil {
			ex.SetError(ErrNotRunnable)
		}
		done(true)
		return true
	}

	return cb.calculateState(ex, done)
}

func (cb *CircuitBreaker) isRunAllowed() bool {
	return cb.gate == nil || cb.gate.IsRunAllowed()
}

func (cb *CircuitBreaker) calculateState(ex *exchange.Exchange, done pipeline.Callback) bool {
	switch State(cb.state.Load()) {
	case StateHalfOpen:
		if cb.failures.Load() == 0 {
			return cb.closeCircuit(ex, done)
		}
		return cb.openCircuit(ex, done)

	case StateOpen:
		if cb.failures.Load() >= cb.threshold && cb.sinceLastFailure() < cb.halfOpenAfter {
			return cb.openCircuit(ex, done)
		}
		return cb.halfOpenCircuit(ex, done)

	case StateClosed:
		if cb.failures.Load() >= cb.threshold {
			if cb.sinceLastFailure() < cb.halfOpenAfter {
				return cb.openCircuit(ex, done)
			}
			return cb.halfOpenCircuit(ex, done)
		}
		return cb.closeCircuit(ex, done)

	default:
		panic(fmt.Sprintf("unrecognized circuit breaker state %d", cb.state.Load()))
	}
}

func (cb *CircuitBreaker) openCircuit(ex *exchange.Exchange, done pipeline.Callback) bool {
	handled := cb.rejectExchange(ex, done)
	cb.state.Store(int32(StateOpen))
	cb.logState()
	return handled
}

func (cb *CircuitBreaker) halfOpenCircuit(ex *exchange.Exchange, done pipeline.Callback) bool {
	handled := cb.executeTarget(ex, done)
	cb.state.Store(int32(StateHalfOpen))
	cb.logState()
	return handled
}

func (cb *CircuitBreaker) closeCircuit(ex *exchange.Exchange, done pipeline.Callback) bool {
	handled := cb.executeTarget(ex, done)
	cb.state.Store(int32(StateClosed))
	cb.logState()
	return handled
}

func (cb *CircuitBreaker) executeTarget(ex *exchange.Exchange, done pipeline.Callback) bool {
	cont := &continuation{breaker: cb, ex: ex, done: done}

	sync := cb.target.Process(ex, cont.Done)
	if !sync {
		// The continuation records the outcome when the exchange finishes.
		cb.logger.Debug("exchange continues asynchronously",
			slog.String("exchange_id", ex.ID()))
		return false
	}

	cb.recordOutcome(ex)
	cb.logger.Debug("exchange completed synchronously",
		slog.String("exchange_id", ex.ID()))
	cont.Done(true)
	return true
}

// recordOutcome resets the failure count on success, otherwise increments
// it and stamps the failure time.
func (cb *CircuitBreaker) recordOutcome(ex *exchange.Exchange) {
	if !cb.hasFailed(ex) {
		cb.failures.Store(0)
		return
	}

	cb.failures.Add(1)
	cb.lastFailure.Store(time.Now().UnixNano())
}

// hasFailed reports whether the completed exchange counts as a qualifying
// failure.
func (cb *CircuitBreaker) hasFailed(ex *exchange.Exchange) bool {
	err := ex.Error()
	if err == nil {
		return false
	}
	if len(cb.failureKinds) == 0 {
		return true
	}

	for _, kind := range cb.failureKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func (cb *CircuitBreaker) rejectExchange(ex *exchange.Exchange, done pipeline.Callback) bool {
	ex.SetError(&OpenError{
		Failures:    int(cb.failures.Load()),
		LastFailure: cb.LastFailure(),
	})
	done(true)
	return true
}

func (cb *CircuitBreaker) sinceLastFailure() time.Duration {
	return time.Since(cb.LastFailure())
}

func (cb *CircuitBreaker) logState() {
	cb.logger.Debug("circuit breaker state",
		slog.String("state", cb.State().String()),
		slog.Int("failures", cb.Failures()),
		slog.Duration("since_last_failure", cb.sinceLastFailure()))
}

// String exposes the wrapped processor for diagnostics.
func (cb *CircuitBreaker) String() string {
	return fmt.Sprintf("CircuitBreaker[%v]", cb.target)
}

// TraceLabel implements pipeline.Traceable.
func (cb *CircuitBreaker) TraceLabel() string {
	return "circuitbreaker"
}
