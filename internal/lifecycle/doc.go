// Package lifecycle coordinates admission of new work during shutdown.
package lifecycle
