// Package upstream implements the HTTP reverse-proxy processor guarded by
// the circuit breaker. It provides health tracking, response time
// monitoring, and request forwarding for a single upstream server.
package upstream
