package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/akoutsou/pipegate/internal/exchange"
)

// Failure kinds an upstream attaches to exchanges. These are the values a
// breaker failure filter can be configured with.
var (
	// ErrUnreachable wraps transport-level proxy failures.
	ErrUnreachable = errors.New("upstream unreachable")

	// ErrUnhealthy marks exchanges refused because the health checker has
	// flagged the upstream as down.
	ErrUnhealthy = errors.New("upstream unhealthy")
)

// KindFromName maps a configured failure-kind name to its sentinel error.
func KindFromName(name string) (error, bool) {
	switch name {
	case "unreachable":
		return ErrUnreachable, true
	case "unhealthy":
		return ErrUnhealthy, true
	}
	return nil, false
}

// Upstream proxies exchanges to a single upstream server. It implements
// pipeline.Processor; completion is always synchronous. Health status and
// the EWMA response time are maintained alongside for diagnostics.
type Upstream struct {
	url    *url.URL
	proxy  *httputil.ReverseProxy
	logger *slog.Logger

	mutex            sync.Mutex
	isHealthy        bool
	ewmaResponseTime time.Duration
	hasEWMA          bool
}

const ewmaAlpha = 0.2

// New creates an Upstream for the given URL. The upstream starts in a
// healthy state.
func New(u *url.URL, logger *slog.Logger) *Upstream {
	up := &Upstream{
		url:       u,
		logger:    logger,
		isHealthy: true,
	}

	proxy := httputil.NewSingleHostReverseProxy(u)
	proxy.ErrorHandler = up.proxyError
	up.proxy = proxy

	return up
}

// Process implements pipeline.Processor. The exchange body must be a *Call;
// the response is written directly to the call's writer. Transport failures
// and refusals of an unhealthy upstream are attached to the exchange.
func (u *Upstream) Process(ex *exchange.Exchange) {
	call, ok := ex.Body().(*Call)
	if !ok {
		ex.SetError(fmt.Errorf("upstream %s: exchange body is %T, want *upstream.Call", u.url, ex.Body()))
		return
	}

	if !u.IsHealthy() {
		ex.SetError(fmt.Errorf("%w: %s", ErrUnhealthy, u.url))
		return
	}

	capture := &errCapture{}
	req := call.request.WithContext(
		context.WithValue(call.request.Context(), captureKey{}, capture))

	start := time.Now()
	u.proxy.ServeHTTP(call.writer, req)
	u.RecordResponse(time.Since(start))

	if capture.err != nil {
		u.logger.Warn("proxy error",
			slog.String("upstream", u.url.String()),
			slog.String("error", capture.err.Error()))
		ex.SetError(fmt.Errorf("%w: %s: %v", ErrUnreachable, u.url, capture.err))
	}
}

// proxyError records the transport error for the in-flight call and writes
// the 502 the client sees.
func (u *Upstream) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	if capture, ok := r.Context().Value(captureKey{}).(*errCapture); ok {
		capture.err = err
	}
	w.WriteHeader(http.StatusBadGateway)
}

type captureKey struct{}

type errCapture struct {
	err error
}

// URL returns the upstream server URL.
func (u *Upstream) URL() *url.URL {
	return u.url
}

// IsHealthy returns true if the upstream is currently healthy.
func (u *Upstream) IsHealthy() bool {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.isHealthy
}

// SetHealthy updates the upstream's health status.
// Returns true if the status changed, false if it was already in that state.
func (u *Upstream) SetHealthy(healthy bool) (changed bool) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if u.isHealthy == healthy {
		return false
	}

	u.isHealthy = healthy
	return true
}

// RecordResponse updates the exponentially weighted moving average (EWMA)
// response time using the latest request duration.
func (u *Upstream) RecordResponse(duration time.Duration) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		u.ewmaResponseTime = duration
		u.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	u.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(u.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns the exponentially weighted moving average response time.
// Returns 0 if no responses have been recorded yet.
func (u *Upstream) EWMATime() time.Duration {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		return 0
	}

	return u.ewmaResponseTime
}

// String returns the upstream URL; it identifies the wrapped target in
// breaker diagnostics.
func (u *Upstream) String() string {
	return u.url.String()
}
