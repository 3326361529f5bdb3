// Package task manages the lifecycle and execution of hierarchy refresh
// tasks. It provides the orchestration core: task state machine, the
// level-by-level hierarchy walk with bounded-concurrency fan-out, retry with
// exponential backoff around the external data source, weighted progress
// tracking, cooperative cancellation, and cleanup of finished tasks.
package task
