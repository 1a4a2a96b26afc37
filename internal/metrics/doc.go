// Package metrics collects gateway events through a buffered channel and
// exposes them as Prometheus metrics, plus a JSON status snapshot of every
// route's breaker and upstream.
package metrics
