// Package workflow runs the fixed-size worker pool that drains the task
// queue. Each worker owns one task at a time for its whole pipeline pass:
// dequeue, execute, report the outcome. A background reclaimer returns tasks
// whose worker died mid-flight.
package workflow
