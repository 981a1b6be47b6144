package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/rjs/exchange"
)

// Session is a connected client. Its token is presented on every call.
type Session struct {
	Token     string
	Name      string
	Slot      int
	Connected time.Time
}

// SessionStore maps client tokens to slots. Each slot has at most one
// session; a new connection to a slot replaces the old session.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	bySlot   [exchange.NumSlots]*Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Create registers a session for slot and returns it together with the
// session it replaced, if any.
func (s *SessionStore) Create(slot int, name string) (session, replaced *Session) {
	session = &Session{
		Token:     uuid.NewString(),
		Name:      name,
		Slot:      slot,
		Connected: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if replaced = s.bySlot[slot]; replaced != nil {
		delete(s.sessions, replaced.Token)
	}
	s.sessions[session.Token] = session
	s.bySlot[slot] = session
	return session, replaced
}

// Get retrieves a session by token.
func (s *SessionStore) Get(token string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	return session, ok
}

// BySlot returns the session bound to slot.
func (s *SessionStore) BySlot(slot int) (*Session, bool) {
	if slot < 0 || slot >= exchange.NumSlots {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	session := s.bySlot[slot]
	return session, session != nil
}

// Destroy removes the session of token. It reports false when the token
// is unknown.
func (s *SessionStore) Destroy(token string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, false
	}
	delete(s.sessions, token)
	if s.bySlot[session.Slot] == session {
		s.bySlot[session.Slot] = nil
	}
	return session, true
}

// All returns the current sessions.
func (s *SessionStore) All() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Session, 0, len(s.sessions))
	for _, session := range s.bySlot {
		if session != nil {
			all = append(all, session)
		}
	}
	return all
}
