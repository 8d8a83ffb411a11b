// Package agent drives conversational turns against a model and a remote
// tool catalog.
//
// A turn is a bounded loop: the model is called with the session's recent
// history and the full tool catalog; while it answers with tool requests,
// the requests are executed (concurrently, results reinserted in request
// order) and fed back; when it answers in plain text the turn is final. A
// hard round budget guarantees termination, with a fixed fallback text when
// the model never stops requesting tools.
//
// Invariants:
//   - At most one turn runs per session at a time; overlapping ProcessQuery
//     calls for the same session queue behind each other.
//   - Only the final user/assistant pair is persisted to history; the tool
//     traffic of intermediate rounds stays within the turn.
//   - The compacted summary travels in the system prompt, not as a history
//     message, so both providers see it the same way. The model-visible
//     message list is always window + current user message.
//   - The caller always receives text for a normal turn. The only fatal
//     failure is a missing tool session or an exhausted model retry budget.
//
// Usage:
//
//	client, err := agent.NewClient(agent.Config{
//	    Store: store, Tools: toolSession, Model: model,
//	    Queue: queue, Logger: logger,
//	})
//	answer, err := client.ProcessQuery(ctx, "reset my SAP password",
//	    agent.WithSession("user-42"))
//	defer client.Cleanup()
package agent
