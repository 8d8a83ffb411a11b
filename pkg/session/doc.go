// Package session holds per-conversation state: role-tagged message history
// and a rolling summary.
//
// Invariants:
// - Every tool message's call ID pairs with a tool request from the
//   immediately preceding assistant message.
// - States are created lazily and never evicted.
// - Turn-level mutation of one session must be serialized by the caller.
//
// Usage:
//
//	store := session.NewStore(logger)
//	state := store.GetOrCreate("default")
//	state.History = append(state.History, session.UserMessage{Content: "hello"})
package session
