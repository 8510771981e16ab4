// Package daemon ties the worker pool, queue store, and content databases
// into a single lifecycle with flock-based locking to prevent multiple
// concurrent instances from sharing the same state directory.
package daemon
