package challenges

import (
	"errors"
	"sort"
	"sync"
	"time"

	"blockduel/internal/game"
)

var ErrAlreadyQueued = errors.New("player already has an open challenge in this mode")

type key struct {
	playerID string
	mode     game.Mode
}

// Store holds the open challenge queue. A player may hold at most one entry
// per mode; Take is the atomic claim used when an opponent joins.
type Store struct {
	mu      sync.Mutex
	entries map[key]*Entry
}

func NewStore() *Store {
	return &Store{
		entries: make(map[key]*Entry),
	}
}

func (s *Store) Add(e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{e.PlayerID, e.Mode}
	if _, exists := s.entries[k]; exists {
		return ErrAlreadyQueued
	}
	s.entries[k] = e
	return nil
}

// Cancel removes all of the player's open entries. Not an error if none
// exist.
func (s *Store) Cancel(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if k.playerID == playerID {
			delete(s.entries, k)
		}
	}
}

// HasOpen reports whether the player holds any open entry.
func (s *Store) HasOpen(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if k.playerID == playerID {
			return true
		}
	}
	return false
}

// List returns open entries, oldest first, excluding the given player's own.
func (s *Store) List(excludingPlayerID string) []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Entry, 0, len(s.entries))
	for k, e := range s.entries {
		if k.playerID == excludingPlayerID {
			continue
		}
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Take removes and returns the entry for (playerID, mode). Exactly one of
// any number of concurrent callers gets the entry; the rest get false.
func (s *Store) Take(playerID string, mode game.Mode) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{playerID, mode}
	e, ok := s.entries[k]
	if !ok {
		return nil, false
	}
	delete(s.entries, k)
	return e, true
}

// SweepStale removes entries older than ttl and returns how many it removed.
func (s *Store) SweepStale(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for k, e := range s.entries {
		if now.Sub(e.CreatedAt) > ttl {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}
