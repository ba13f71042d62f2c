// Package conversation keeps the in-memory per-session turn history used to
// build contextual prompts.
package conversation

import (
	"sync"
	"time"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/ports"
)

// Store implements the ConversationStore port. Sessions are partitioned by
// key; the map itself is mutex-guarded so concurrent relays for different
// sessions never interfere.
type Store struct {
	mu       sync.Mutex
	sessions map[string][]domain.Turn
	cap      int
}

// NewStore creates a Store with the given per-session turn cap.
// A cap of zero falls back to the default.
func NewStore(turnCap int) *Store {
	if turnCap <= 0 {
		turnCap = domain.SessionTurnCap
	}
	return &Store{
		sessions: make(map[string][]domain.Turn),
		cap:      turnCap,
	}
}

// Get returns a copy of the session, creating an empty one on first access.
func (s *Store) Get(sessionKey string) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.sessions[sessionKey]
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return domain.Session{Key: sessionKey, Turns: out}
}

// Append adds a turn, evicting the oldest turns past the cap.
func (s *Store) Append(sessionKey string, role domain.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.sessions[sessionKey], domain.Turn{
		Role:    role,
		Content: content,
		At:      time.Now(),
	})
	if len(turns) > s.cap {
		turns = turns[len(turns)-s.cap:]
	}
	s.sessions[sessionKey] = turns
}

// Clear resets the session to empty.
func (s *Store) Clear(sessionKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey)
}

var _ ports.ConversationStore = (*Store)(nil)
