// Package queue persists content items, tasks, fetch attempts, and circuit
// breaker state in SQLite and exposes the task scheduling API.
//
// The Store manages database connections, schema initialization, atomic task
// claiming, retry scheduling with per-category backoff, stale-claim recovery,
// and the per-worker-class circuit breakers that gate dequeue. Upstream
// collaborators enqueue discovered items here; workers dequeue, execute one
// pipeline pass, and report completion or failure back.
//
// Treat this package as the single source of truth for scheduling semantics;
// when you add statuses or task fields, update schema.sql and bump
// schemaVersion.
package queue
