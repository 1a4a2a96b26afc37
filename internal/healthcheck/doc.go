// Package healthcheck monitors upstream availability with periodic HTTP
// probes and keeps each upstream's health flag current.
package healthcheck
