// Package commandqueue provides lane-based FIFO task execution.
//
// Invariants:
//   - Tasks on one lane run in enqueue order, never concurrently (unless the
//     lane's concurrency is raised explicitly).
//   - Different lanes are independent and proceed in parallel.
//   - Enqueue blocks the caller until its task has run and returns the
//     task's own result and error.
//
// The agent uses one lane per session to serialize overlapping turns.
package commandqueue
