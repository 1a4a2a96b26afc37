package pipeline

import (
	"github.com/akoutsou/pipegate/internal/exchange"
)

// Callback signals completion of an exchange. doneSync is true when the
// exchange finished on the goroutine that submitted it, false when it was
// completed later from another goroutine. A callback must be invoked
// exactly once per exchange.
type Callback func(doneSync bool)

// AsyncProcessor processes exchanges that may complete either inline or
// later on another goroutine. Process returns true when the exchange was
// completed synchronously; otherwise it returns false and done will be
// invoked once the exchange finishes.
type AsyncProcessor interface {
	Process(ex *exchange.Exchange, done Callback) bool
}

// AsyncProcessorFunc adapts a function to the AsyncProcessor interface.
type AsyncProcessorFunc func(ex *exchange.Exchange, done Callback) bool

// Process calls f.
func (f AsyncProcessorFunc) Process(ex *exchange.Exchange, done Callback) bool {
	return f(ex, done)
}

// Processor is the synchronous counterpart of AsyncProcessor. Process
// returns once the exchange is fully handled.
type Processor interface {
	Process(ex *exchange.Exchange)
}

// Traceable is implemented by processors that expose a fixed label for
// tracing and observability collaborators.
type Traceable interface {
	TraceLabel() string
}

// Adapt converts a synchronous Processor into an AsyncProcessor that
// always completes inline.
func Adapt(p Processor) AsyncProcessor {
	return syncAdapter{p: p}
}

type syncAdapter struct {
	p Processor
}

func (a syncAdapter) Process(ex *exchange.Exchange, done Callback) bool {
	a.p.Process(ex)
	done(true)
	return true
}
