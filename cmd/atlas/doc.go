// Command atlas is the operator CLI for the ingestion queue: enqueueing
// URLs, inspecting items and their fetch attempts, managing retries, and
// running maintenance sweeps.
package main
