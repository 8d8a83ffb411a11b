// Package toolsession wraps the remote MCP tool-server connection behind the
// two capabilities the agent needs: listing tool descriptors and calling a
// tool for its textual result fragments.
//
// Invariants:
// - Operations on a closed or never-opened session return ErrNotConnected.
// - Close is idempotent.
package toolsession
