package exchange

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Exchange is the unit of work flowing through the pipeline. It carries an
// opaque body and, after processing, the error attached by whichever
// component failed it. Completion may land on a different goroutine than
// the one that submitted the exchange, so error and body access is guarded.
type Exchange struct {
	id string

	mutex sync.RWMutex
	body  any
	err   error
}

// New creates an empty exchange with a fresh unique ID.
func New() *Exchange {
	return &Exchange{
		id: uuid.NewString(),
	}
}

// ID returns the unique identifier of this exchange.
func (e *Exchange) ID() string {
	return e.id
}

// Body returns the payload carried by this exchange, or nil.
func (e *Exchange) Body() any {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.body
}

// SetBody replaces the payload carried by this exchange.
func (e *Exchange) SetBody(body any) {
	e.mutex.Lock()
	e.body = body
	e.mutex.Unlock()
}

// Error returns the error attached to this exchange, or nil if it has not
// failed.
func (e *Exchange) Error() error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.err
}

// SetError attaches err to this exchange, replacing any previous error.
func (e *Exchange) SetError(err error) {
	e.mutex.Lock()
	e.err = err
	e.mutex.Unlock()
}

// ErrorMatches reports whether the attached error is kind, or was caused by
// kind anywhere along its wrap chain. It returns false when no error is
// attached.
func (e *Exchange) ErrorMatches(kind error) bool {
	return errors.Is(e.Error(), kind)
}
