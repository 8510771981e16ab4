// Package config loads, normalizes, and validates Atlas configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need: retry policies, circuit breaker limits, quality
// fingerprints, pathway allow-lists, and fetch timeouts. Components receive a
// constructed Config by reference and never read ambient environment state.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
