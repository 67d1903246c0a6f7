// Package turnbased drives sequential play: the joiner plays a full run
// first, then the challenger plays against that run's score.
package turnbased

import (
	"errors"
	"log"
	"sync"

	"blockduel/internal/db"
	"blockduel/internal/game"
	"blockduel/internal/matches"
	"blockduel/internal/sessions"
)

var (
	ErrNotYourTurn  = errors.New("not this player's turn")
	ErrNotTurnBased = errors.New("session is not turn-based")
)

// TurnResult is what a submit call reports back.
type TurnResult struct {
	Completed bool
	WinnerID  string // empty while open, and on a tie
}

// Pending is one open session from a player's point of view, with the score
// to beat once the opponent has already moved.
type Pending struct {
	Session *sessions.Session
	Target  *game.Stats
}

// Coordinator serializes every turn-based transition behind one mutex. The
// mover pointer only advances forward, so a stats submission can never be
// counted twice.
type Coordinator struct {
	mu       sync.Mutex
	sessions *sessions.Store
	recorder *matches.Recorder
	db       *db.DB // nil when running without a database
}

func New(store *sessions.Store, rec *matches.Recorder, database *db.DB) *Coordinator {
	return &Coordinator{
		sessions: store,
		recorder: rec,
		db:       database,
	}
}

// SubmitTurn records the mover's finished run. The first turn hands the
// mover pointer to the other player; the second completes the session,
// records the result and retires it.
func (c *Coordinator) SubmitTurn(sessionID, playerID string, stats game.Stats) (*TurnResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sessions.Get(sessionID)
	if sess == nil {
		if c.recorder.Get(sessionID) != nil {
			return nil, sessions.ErrCompleted
		}
		return nil, sessions.ErrNotFound
	}
	if sess.PlayType != game.PlayTurnBased {
		return nil, ErrNotTurnBased
	}
	if playerID != sess.CurrentMover {
		return nil, ErrNotYourTurn
	}

	sess.RecordStats(playerID, stats)
	sess.MarkOver(playerID) // a submitted run is a finished run

	switch sess.State {
	case sessions.StateAwaitingFirstTurn:
		opp, _ := sess.Opponent(playerID)
		sess.SetTurn(sessions.StateAwaitingSecondTurn, opp.ID)
		if c.db != nil {
			if err := c.db.UpdateSessionState(sess.ID, string(sess.State)); err != nil {
				log.Printf("[DB] UpdateSessionState error: %v\n", err)
			}
		}
		return &TurnResult{}, nil

	case sessions.StateAwaitingSecondTurn:
		sess.Complete()
		winnerID := ""
		switch {
		case sess.StatsA.Score > sess.StatsB.Score:
			winnerID = sess.PlayerA.ID
		case sess.StatsB.Score > sess.StatsA.Score:
			winnerID = sess.PlayerB.ID
		}
		if _, err := c.recorder.Record(sess, winnerID); err != nil {
			log.Printf("[TurnBased] Record error for session %s: %v\n", sess.ID, err)
		}
		c.sessions.Remove(sess.ID)
		return &TurnResult{Completed: true, WinnerID: winnerID}, nil
	}
	// Completed sessions are retired above; any other state is a play-type
	// mixup caught earlier.
	return nil, sessions.ErrCompleted
}

// PendingFor partitions the player's open turn-based sessions into those
// waiting on them and those waiting on the opponent. When the opponent has
// already moved, Target carries the run to beat.
func (c *Coordinator) PendingFor(playerID string) (yourMove, theirMove []Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sess := range c.sessions.List() {
		if sess.PlayType != game.PlayTurnBased || !sess.Has(playerID) {
			continue
		}
		p := Pending{Session: sess}
		if sess.CurrentMover == playerID {
			if sess.State == sessions.StateAwaitingSecondTurn {
				opp, _ := sess.Opponent(playerID)
				target := sess.StatsFor(opp.ID)
				p.Target = &target
			}
			yourMove = append(yourMove, p)
		} else {
			theirMove = append(theirMove, p)
		}
	}
	return yourMove, theirMove
}
