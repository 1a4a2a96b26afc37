package breaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotRunnable is attached to exchanges refused by the lifecycle gate. It
// never replaces an error already present on the exchange.
var ErrNotRunnable = errors.New("run is not allowed")

// OpenError is attached to exchanges rejected while the circuit is open. It
// carries the counters behind the decision for diagnostics and always
// replaces any error already on the exchange.
type OpenError struct {
	Failures    int
	LastFailure time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker open: failures: %d, last failure: %s",
		e.Failures, e.LastFailure.Format(time.RFC3339Nano))
}

// IsOpen reports whether err stems from an open-circuit rejection.
func IsOpen(err error) bool {
	var oe *OpenError
	return errors.As(err, &oe)
}
