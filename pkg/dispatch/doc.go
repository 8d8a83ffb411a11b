// Package dispatch executes the tool requests of a single agent round.
//
// Invariants:
//   - The returned tool messages match the request order exactly, regardless
//     of which remote call finishes first.
//   - All distinct invocations of a round run concurrently; identical
//     cacheable invocations share one remote call.
//   - A failing call yields an error-text result for that request only.
//     Failures are never cached and never abort sibling calls.
//
// The result cache is keyed on tool name plus canonical argument JSON and is
// shared across sessions. Its policy (enable, TTL, excluded tools) is
// explicit configuration.
package dispatch
