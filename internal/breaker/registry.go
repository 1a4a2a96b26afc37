package breaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/akoutsou/pipegate/internal/lifecycle"
	"github.com/akoutsou/pipegate/internal/pipeline"
)

// Registry hands out one circuit breaker per named route, lazily created
// with the shared settings. Every breaker still wraps exactly one target.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker

	gate          lifecycle.Gate
	logger        *slog.Logger
	threshold     int
	halfOpenAfter time.Duration
	failureKinds  []error
}

// NewRegistry creates a registry whose breakers share the given gate,
// logger, threshold, cool-down and failure filter.
func NewRegistry(gate lifecycle.Gate, logger *slog.Logger, threshold int, halfOpenAfter time.Duration, failureKinds ...error) *Registry {
	return &Registry{
		breakers:      make(map[string]*CircuitBreaker),
		gate:          gate,
		logger:        logger,
		threshold:     threshold,
		halfOpenAfter: halfOpenAfter,
		failureKinds:  failureKinds,
	}
}

// GetBreaker returns the breaker registered under name, creating one around
// target on first use. Later calls for the same name return the existing
// breaker and ignore target.
func (r *Registry) GetBreaker(name string, target pipeline.AsyncProcessor) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	cb = New(target, r.gate, r.logger, r.failureKinds...)
	cb.SetThreshold(r.threshold)
	cb.SetHalfOpenAfter(r.halfOpenAfter)
	r.breakers[name] = cb
	return cb
}

// Reset drops all registered breakers.
func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}

// Stats returns the current state of every registered breaker by name.
func (r *Registry) Stats() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]State, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.State()
	}
	return stats
}
