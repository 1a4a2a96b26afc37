// Package pipeline defines the processor contracts the gateway is composed
// of. Processors receive exchanges and either complete them on the calling
// goroutine or accept them for asynchronous completion, signalling the
// outcome through a single-use callback.
package pipeline
