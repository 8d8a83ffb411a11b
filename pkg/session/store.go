package session

import (
	"sync"

	"github.com/deskmate-ai/deskmate/internal/observability"
	"github.com/rs/zerolog"
)

// State is the conversation state for one session: the rolling message
// history plus the current summary of everything compacted away.
type State struct {
	History []Message
	Summary string
}

// Tail returns the last n history messages (all of them when n exceeds the
// history length).
func (st *State) Tail(n int) []Message {
	if n <= 0 || len(st.History) == 0 {
		return nil
	}
	if len(st.History) <= n {
		return st.History
	}
	return st.History[len(st.History)-n:]
}

// Store maps session IDs to conversation state. Entries are created lazily
// and never evicted; growth is bounded only by process lifetime. Map access
// is guarded, but mutation of an individual State is not; callers must
// serialize turns per session (the agent queues them on a per-session lane).
type Store struct {
	mu     sync.RWMutex
	states map[string]*State
	logger zerolog.Logger
}

// NewStore creates an empty session store.
func NewStore(logger zerolog.Logger) *Store {
	observability.EnsureRegistered()

	return &Store{
		states: make(map[string]*State),
		logger: logger,
	}
}

// GetOrCreate returns the state for sessionID, creating an empty one on
// first use.
func (s *Store) GetOrCreate(sessionID string) *State {
	s.mu.RLock()
	state, ok := s.states[sessionID]
	s.mu.RUnlock()
	if ok {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.states[sessionID]; ok {
		return state
	}

	state = &State{History: nil, Summary: ""}
	s.states[sessionID] = state
	observability.SetActiveSessions(len(s.states))

	s.logger.Debug().Str("session_id", sessionID).Msg("Session created")

	return state
}

// Len reports the number of known sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Sessions lists known session IDs.
func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	return ids
}
