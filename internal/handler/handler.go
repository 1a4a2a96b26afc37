package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/akoutsou/pipegate/internal/breaker"
	"github.com/akoutsou/pipegate/internal/exchange"
	"github.com/akoutsou/pipegate/internal/metrics"
	"github.com/akoutsou/pipegate/internal/upstream"
)

// RouteHandler serves one route: it turns each HTTP request into an
// exchange, submits it through the route's circuit breaker, and renders
// rejections the upstream never saw.
type RouteHandler struct {
	logger    *slog.Logger
	route     string
	breaker   *breaker.CircuitBreaker
	collector *metrics.Collector
}

func NewRouteHandler(logger *slog.Logger, route string, cb *breaker.CircuitBreaker, collector *metrics.Collector) *RouteHandler {
	return &RouteHandler{
		logger:    logger,
		route:     route,
		breaker:   cb,
		collector: collector,
	}
}

func (h *RouteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)

	h.logger.Info("Received request",
		slog.String("route", h.route),
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	w.Header().Set("X-Pipegate-Route", h.route)

	call := upstream.NewCall(w, r)
	ex := exchange.New()
	ex.SetBody(call)

	start := time.Now()

	// The upstream completes synchronously today, but the breaker contract
	// allows completion from another goroutine; wait either way.
	completed := make(chan struct{}, 1)
	h.breaker.Process(ex, func(doneSync bool) {
		completed <- struct{}{}
	})
	<-completed

	duration := time.Since(start)
	err := ex.Error()

	switch {
	case err == nil:
		h.emitEvent(metrics.Event{
			Type:      metrics.EventExchangeForwarded,
			Timestamp: time.Now(),
			Route:     h.route,
		})
		h.emitCompleted(duration, call.StatusCode(), false)

	case breaker.IsOpen(err):
		h.logger.Warn("Circuit open, rejecting request",
			slog.String("route", h.route),
			slog.String("error", err.Error()))
		h.emitEvent(metrics.Event{
			Type:      metrics.EventExchangeRejected,
			Timestamp: time.Now(),
			Route:     h.route,
		})
		if !call.Wrote() {
			http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
		}

	case errors.Is(err, breaker.ErrNotRunnable):
		h.logger.Warn("Shutting down, rejecting request",
			slog.String("route", h.route))
		h.emitEvent(metrics.Event{
			Type:      metrics.EventExchangeRejected,
			Timestamp: time.Now(),
			Route:     h.route,
		})
		if !call.Wrote() {
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		}

	default:
		// Upstream failure; the proxy wrote the 502 where it could.
		h.emitEvent(metrics.Event{
			Type:      metrics.EventExchangeForwarded,
			Timestamp: time.Now(),
			Route:     h.route,
		})
		h.emitCompleted(duration, call.StatusCode(), true)
		if !call.Wrote() {
			http.Error(w, "Bad gateway", http.StatusBadGateway)
		}
	}
}

func (h *RouteHandler) emitCompleted(duration time.Duration, statusCode int, failed bool) {
	h.emitEvent(metrics.Event{
		Type:       metrics.EventExchangeCompleted,
		Timestamp:  time.Now(),
		Route:      h.route,
		Duration:   duration,
		StatusCode: statusCode,
		Failed:     failed,
	})
}

func (h *RouteHandler) emitEvent(event metrics.Event) {
	if h.collector == nil {
		return
	}

	state := h.breaker.State()
	event.State = state.String()
	event.StateCode = int(state)

	select {
	case h.collector.EventChannel() <- event:
	default:
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
