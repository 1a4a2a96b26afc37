// Package config loads and validates the gateway configuration from a YAML
// file and environment variables.
package config
