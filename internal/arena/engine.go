// Package arena is the matchmaking front: it owns the open challenge queue
// and the active session store, and turns a join into a session atomically.
package arena

import (
	"errors"
	"log"
	"sync"
	"time"

	"blockduel/internal/challenges"
	"blockduel/internal/db"
	"blockduel/internal/game"
	"blockduel/internal/matches"
	"blockduel/internal/metrics"
	"blockduel/internal/players"
	"blockduel/internal/rating"
	"blockduel/internal/sessions"
)

var (
	ErrSelfJoin          = errors.New("cannot join your own challenge")
	ErrChallengeNotFound = errors.New("no open challenge for that player and mode")
	ErrUnknownPlayer     = errors.New("unknown player")
)

type Engine struct {
	mu       sync.Mutex
	queue    *challenges.Store
	sessions *sessions.Store
	players  *players.Directory
	recorder *matches.Recorder
	db       *db.DB // nil when running without a database
}

func New(queue *challenges.Store, store *sessions.Store, dir *players.Directory, rec *matches.Recorder, database *db.DB) *Engine {
	return &Engine{
		queue:    queue,
		sessions: store,
		players:  dir,
		recorder: rec,
		db:       database,
	}
}

// SkillFor derives the player's current skill level from their history.
func (e *Engine) SkillFor(playerID string) int {
	avgLevel, gamesPlayed, bestScore := e.recorder.RatingInputs(playerID)
	return rating.Estimate(avgLevel, gamesPlayed, bestScore)
}

// CreateChallenge queues an open offer to play. The skill level on the
// entry is a snapshot taken now.
func (e *Engine) CreateChallenge(playerID string, mode game.Mode) (*challenges.Entry, error) {
	p := e.players.Get(playerID)
	if p == nil {
		return nil, ErrUnknownPlayer
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sessions.HasActive(playerID) {
		return nil, sessions.ErrAlreadyInSession
	}
	entry := &challenges.Entry{
		PlayerID:    playerID,
		DisplayName: p.Name,
		SkillLevel:  e.SkillFor(playerID),
		Mode:        mode,
		CreatedAt:   time.Now(),
	}
	if err := e.queue.Add(entry); err != nil {
		return nil, err
	}
	metrics.ChallengesCreated.Inc()

	if e.db != nil {
		err := e.db.InsertChallenge(db.ChallengeRow{
			PlayerID:    entry.PlayerID,
			Mode:        string(entry.Mode),
			DisplayName: entry.DisplayName,
			SkillLevel:  entry.SkillLevel,
			CreatedAt:   entry.CreatedAt,
		})
		if err != nil {
			log.Printf("[DB] InsertChallenge error: %v\n", err)
		}
	}
	return entry, nil
}

// CancelChallenge withdraws the player's open entries. A no-op when nothing
// is queued.
func (e *Engine) CancelChallenge(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue.Cancel(playerID)
	if e.db != nil {
		if err := e.db.DeleteChallengesFor(playerID); err != nil {
			log.Printf("[DB] DeleteChallengesFor error: %v\n", err)
		}
	}
}

// ListChallenges returns open offers, oldest first, excluding the caller's
// own.
func (e *Engine) ListChallenges(excludingPlayerID string) []*challenges.Entry {
	return e.queue.List(excludingPlayerID)
}

// JoinChallenge claims the target's open entry and creates a session with
// the target as challenger (player A) and the joiner as player B. Claim and
// creation happen under one lock: of two concurrent joiners, exactly one
// gets the session and the other sees ErrChallengeNotFound. Any other open
// entries either player holds are withdrawn, so nobody is queued and in a
// session at the same time.
func (e *Engine) JoinChallenge(joiningPlayerID, targetPlayerID string, mode game.Mode, playType game.PlayType) (*sessions.Session, error) {
	if joiningPlayerID == targetPlayerID {
		return nil, ErrSelfJoin
	}
	joiner := e.players.Get(joiningPlayerID)
	if joiner == nil {
		return nil, ErrUnknownPlayer
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sessions.HasActive(joiningPlayerID) {
		return nil, sessions.ErrAlreadyInSession
	}
	entry, ok := e.queue.Take(targetPlayerID, mode)
	if !ok {
		return nil, ErrChallengeNotFound
	}

	sess := sessions.New(mode, playType,
		sessions.Slot{ID: entry.PlayerID, DisplayName: entry.DisplayName, SkillLevel: entry.SkillLevel},
		sessions.Slot{ID: joiningPlayerID, DisplayName: joiner.Name, SkillLevel: e.SkillFor(joiningPlayerID)})
	if err := e.sessions.Add(sess); err != nil {
		// Shouldn't happen: a queued challenger can't also be in a session.
		// Put the offer back so it isn't lost.
		if addErr := e.queue.Add(entry); addErr != nil {
			log.Printf("[Arena] Restoring challenge for %s failed: %v\n", entry.PlayerID, addErr)
		}
		return nil, err
	}
	// Both players are in a session now; any other open offers they hold
	// are void.
	e.queue.Cancel(targetPlayerID)
	e.queue.Cancel(joiningPlayerID)
	metrics.ChallengesJoined.Inc()

	if e.db != nil {
		if err := e.db.DeleteChallengesFor(targetPlayerID); err != nil {
			log.Printf("[DB] DeleteChallengesFor error: %v\n", err)
		}
		if err := e.db.DeleteChallengesFor(joiningPlayerID); err != nil {
			log.Printf("[DB] DeleteChallengesFor error: %v\n", err)
		}
		err := e.db.InsertActiveSession(db.SessionRow{
			SessionID:    sess.ID,
			Mode:         string(sess.Mode),
			PlayType:     string(sess.PlayType),
			State:        string(sess.State),
			PlayerAID:    sess.PlayerA.ID,
			PlayerAName:  sess.PlayerA.DisplayName,
			PlayerASkill: sess.PlayerA.SkillLevel,
			PlayerBID:    sess.PlayerB.ID,
			PlayerBName:  sess.PlayerB.DisplayName,
			PlayerBSkill: sess.PlayerB.SkillLevel,
			CreatedAt:    sess.CreatedAt,
		})
		if err != nil {
			log.Printf("[DB] InsertActiveSession error: %v\n", err)
		}
	}
	return sess, nil
}

// SessionState looks up an active session. A session that already finished
// reports ErrCompleted so callers can tell the difference from one that
// never existed.
func (e *Engine) SessionState(sessionID string) (*sessions.Session, error) {
	if sess := e.sessions.Get(sessionID); sess != nil {
		return sess, nil
	}
	if e.recorder.Get(sessionID) != nil {
		return nil, sessions.ErrCompleted
	}
	return nil, sessions.ErrNotFound
}

// CompletedMatches returns the player's match history, oldest first.
func (e *Engine) CompletedMatches(playerID string) []*matches.Match {
	return e.recorder.ForPlayer(playerID)
}
