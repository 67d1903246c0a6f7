// Package players is a minimal directory for the identities the engine
// consumes: a display name plus the shared secret used for presence
// confirmation. It stands in for the external account system.
package players

import (
	"crypto/subtle"
	"sync"
	"time"
)

type Player struct {
	ID        string
	Name      string
	CreatedAt time.Time

	secret string
}

type Directory struct {
	mu      sync.Mutex
	players map[string]*Player
}

func NewDirectory() *Directory {
	return &Directory{
		players: make(map[string]*Player),
	}
}

// Register adds or replaces a player entry.
func (d *Directory) Register(id, name, secret string) *Player {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &Player{ID: id, Name: name, CreatedAt: time.Now(), secret: secret}
	d.players[id] = p
	return p
}

func (d *Directory) Get(id string) *Player {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.players[id]
}

// VerifySecret reports whether the supplied secret matches the player's.
// Unknown players never verify.
func (d *Directory) VerifySecret(id, secret string) bool {
	d.mu.Lock()
	p := d.players[id]
	d.mu.Unlock()
	if p == nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(p.secret), []byte(secret)) == 1
}
