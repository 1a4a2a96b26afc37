// Package handler implements the per-route HTTP request handler of the
// gateway. It bridges incoming requests onto the exchange pipeline and
// renders circuit-breaker rejections.
package handler
