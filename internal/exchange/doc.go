// Package exchange defines the message unit passed between pipeline
// processors. An exchange wraps a request payload together with the error
// state accumulated while it is processed.
package exchange
