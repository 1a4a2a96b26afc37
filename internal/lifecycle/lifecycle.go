package lifecycle

import (
	"sync/atomic"
)

// Gate is queried before an exchange is admitted into the pipeline. When it
// reports false, new work must be refused without touching downstream
// processors.
type Gate interface {
	IsRunAllowed() bool
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func() bool

// IsRunAllowed calls f.
func (f GateFunc) IsRunAllowed() bool {
	return f()
}

// Controller is the process-wide gate. It starts in the runnable phase and
// is flipped once by the shutdown path; it never becomes runnable again.
type Controller struct {
	stopping atomic.Bool
}

// NewController creates a controller in the runnable phase.
func NewController() *Controller {
	return &Controller{}
}

// IsRunAllowed implements Gate.
func (c *Controller) IsRunAllowed() bool {
	return !c.stopping.Load()
}

// BeginShutdown moves the controller out of the runnable phase. Safe to
// call more than once.
func (c *Controller) BeginShutdown() {
	c.stopping.Store(true)
}
