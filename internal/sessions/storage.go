package sessions

import (
	"errors"
	"sync"

	"blockduel/internal/metrics"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrAlreadyInSession = errors.New("player is already in an active session")
	ErrCompleted        = errors.New("session already completed")
)

// Store holds the active sessions. A player may be party to at most one
// active session at a time; Add enforces that for both seats.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byPlayer map[string]string // player id -> session id
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		byPlayer: make(map[string]string),
	}
}

func (s *Store) Add(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.byPlayer[sess.PlayerA.ID]; busy {
		return ErrAlreadyInSession
	}
	if _, busy := s.byPlayer[sess.PlayerB.ID]; busy {
		return ErrAlreadyInSession
	}
	s.sessions[sess.ID] = sess
	s.byPlayer[sess.PlayerA.ID] = sess.ID
	s.byPlayer[sess.PlayerB.ID] = sess.ID
	metrics.ActiveSessions.Inc()
	return nil
}

func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// Remove retires a session from active storage.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	delete(s.sessions, id)
	delete(s.byPlayer, sess.PlayerA.ID)
	delete(s.byPlayer, sess.PlayerB.ID)
	metrics.ActiveSessions.Dec()
}

// HasActive reports whether the player is party to any active session.
func (s *Store) HasActive(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.byPlayer[playerID]
	return busy
}

// ForPlayer returns the player's active session, or nil.
func (s *Store) ForPlayer(playerID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPlayer[playerID]
	if !ok {
		return nil
	}
	return s.sessions[id]
}

func (s *Store) List() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	return list
}
