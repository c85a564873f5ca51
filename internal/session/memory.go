package session

import (
	"log/slog"
	"sync"

	"github.com/jzfdigital/atendebot/internal/models"
)

// InMemoryStore keeps sessions in a process-lifetime map. Sessions are never
// evicted; restart loses them.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.Session)}
}

// Get returns the participant's session, creating a fresh one at the
// language-selection state on first contact.
func (s *InMemoryStore) Get(participantID string) (models.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[participantID]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	sess = models.NewSession(participantID)
	s.mu.Lock()
	// Re-check under the write lock; another goroutine may have created it.
	if existing, ok := s.sessions[participantID]; ok {
		sess = existing
	} else {
		s.sessions[participantID] = sess
	}
	s.mu.Unlock()

	slog.Debug("InMemoryStore.Get: session resolved", "participantID", participantID, "state", sess.CurrentState)
	return sess, nil
}

// Put replaces the participant's session.
func (s *InMemoryStore) Put(sess models.Session) error {
	s.mu.Lock()
	s.sessions[sess.ParticipantID] = sess
	s.mu.Unlock()
	slog.Debug("InMemoryStore.Put: session saved", "participantID", sess.ParticipantID, "state", sess.CurrentState)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// Len returns the number of tracked sessions (for tests and health info).
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
