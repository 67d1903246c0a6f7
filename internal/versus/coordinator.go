// Package versus drives simultaneous play: both boards run at once, the
// coordinator watches both event streams and ends the match race-free.
package versus

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"blockduel/internal/board"
	"blockduel/internal/db"
	"blockduel/internal/game"
	"blockduel/internal/matches"
	"blockduel/internal/sessions"
)

var (
	ErrPresenceNotConfirmed = errors.New("presence confirmation failed")
	ErrNotSimultaneous      = errors.New("session is not simultaneous")
)

// Config carries the tunables. Zero values fall back to the mode defaults.
type Config struct {
	// UltraDuration overrides the ultra match clock. Tests shrink it.
	UltraDuration time.Duration
	// OnEnded, when set, is told the verdict of every finished session
	// (empty winner id = tie). It runs on the event path and must not call
	// back into the coordinator.
	OnEnded func(sessionID, winnerID string)
}

// Coordinator owns the live simultaneous sessions. Each session gets a
// runtime whose mutex serializes event handling, so the evaluate → snapshot
// → stop → record sequence can never interleave with another event for the
// same session. Different sessions run fully in parallel.
type Coordinator struct {
	mu       sync.Mutex
	runtimes map[string]*runtime

	sessions *sessions.Store
	recorder *matches.Recorder
	boards   board.Provider
	verify   func(playerID, secret string) bool
	db       *db.DB // nil when running without a database
	ultra    time.Duration
	onEnded  func(sessionID, winnerID string)
}

type runtime struct {
	mu        sync.Mutex
	sess      *sessions.Session
	boardA    board.Simulation
	boardB    board.Simulation
	timer     *time.Timer
	startedAt time.Time
	done      bool
}

func New(store *sessions.Store, rec *matches.Recorder, boards board.Provider, verify func(playerID, secret string) bool, database *db.DB, cfg Config) *Coordinator {
	ultra := cfg.UltraDuration
	if ultra == 0 {
		ultra = game.UltraDuration
	}
	return &Coordinator{
		runtimes: make(map[string]*runtime),
		sessions: store,
		recorder: rec,
		boards:   boards,
		verify:   verify,
		db:       database,
		ultra:    ultra,
		onEnded:  cfg.OnEnded,
	}
}

// ConfirmPresence checks the supplied secret against the challenger's and,
// on success, starts both boards. A wrong secret leaves the session waiting
// so the device can retry. Confirming an already-active session is a no-op.
func (c *Coordinator) ConfirmPresence(sessionID, secret string) error {
	c.mu.Lock()

	sess := c.sessions.Get(sessionID)
	if sess == nil {
		c.mu.Unlock()
		if c.recorder.Get(sessionID) != nil {
			return sessions.ErrCompleted
		}
		return sessions.ErrNotFound
	}
	if sess.PlayType != game.PlaySimultaneous {
		c.mu.Unlock()
		return ErrNotSimultaneous
	}
	if sess.Snapshot().State == sessions.StateActive {
		c.mu.Unlock()
		return nil
	}
	if !c.verify(sess.PlayerA.ID, secret) {
		c.mu.Unlock()
		return ErrPresenceNotConfirmed
	}

	boardA, err := c.boards.Board(sessionID, sess.PlayerA.ID)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("attaching challenger board: %w", err)
	}
	boardB, err := c.boards.Board(sessionID, sess.PlayerB.ID)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("attaching joiner board: %w", err)
	}

	rt := &runtime{
		sess:      sess,
		boardA:    boardA,
		boardB:    boardB,
		startedAt: sess.Activate(),
	}
	boardA.Attach(&observer{c: c, sessionID: sessionID, playerID: sess.PlayerA.ID})
	boardB.Attach(&observer{c: c, sessionID: sessionID, playerID: sess.PlayerB.ID})
	c.runtimes[sessionID] = rt
	c.mu.Unlock()

	if sess.Mode == game.ModeUltra {
		rt.mu.Lock()
		if !rt.done {
			rt.timer = time.AfterFunc(c.ultra, func() { c.timeUp(sessionID) })
		}
		rt.mu.Unlock()
	}
	boardA.Start()
	boardB.Start()

	if c.db != nil {
		if err := c.db.UpdateSessionState(sessionID, string(sessions.StateActive)); err != nil {
			log.Printf("[DB] UpdateSessionState error: %v\n", err)
		}
	}
	log.Printf("[Versus] Session %s active (%s)\n", sessionID, sess.Mode)
	return nil
}

// observer routes one board's events into the owning coordinator.
type observer struct {
	c         *Coordinator
	sessionID string
	playerID  string
}

func (o *observer) OnProgress(stats game.Stats) {
	o.c.handleEvent(o.sessionID, o.playerID, stats, false)
}

func (o *observer) OnGameOver(final game.Stats) {
	o.c.handleEvent(o.sessionID, o.playerID, final, true)
}

// handleEvent applies one board event and re-evaluates the win condition.
// Events for sessions that already ended are benign races and are dropped.
func (c *Coordinator) handleEvent(sessionID, playerID string, stats game.Stats, over bool) {
	c.mu.Lock()
	rt := c.runtimes[sessionID]
	c.mu.Unlock()
	if rt == nil {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.done {
		return
	}

	rt.sess.RecordStats(playerID, stats)
	if over {
		rt.sess.MarkOver(playerID)
	}

	out := game.Evaluate(rt.sess.Mode, rt.sess.StatsA, rt.sess.StatsB,
		time.Since(rt.startedAt), rt.sess.OverA, rt.sess.OverB)
	if out.Decided {
		c.finishLocked(rt, out)
	}
}

// timeUp fires when the ultra clock runs out. The completed guard makes a
// tick against a retired session a no-op.
func (c *Coordinator) timeUp(sessionID string) {
	c.mu.Lock()
	rt := c.runtimes[sessionID]
	c.mu.Unlock()
	if rt == nil {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.done {
		return
	}

	// The clock ran out, so present the full match duration to the
	// evaluator regardless of what the (possibly shortened) timer was set to.
	out := game.Evaluate(rt.sess.Mode, rt.sess.StatsA, rt.sess.StatsB,
		game.UltraDuration, rt.sess.OverA, rt.sess.OverB)
	if out.Decided {
		c.finishLocked(rt, out)
	}
}

// finishLocked ends the session. Caller holds rt.mu. Setting done first
// freezes both stat snapshots: the winner's triggering stats are already on
// the session and no later event can overwrite them.
func (c *Coordinator) finishLocked(rt *runtime, out game.Outcome) {
	rt.done = true
	rt.sess.Complete()

	winnerID := ""
	if !out.Tie {
		winnerID = rt.sess.PlayerOn(out.Winner)
	}

	if rt.timer != nil {
		rt.timer.Stop()
	}
	rt.boardA.Stop()
	rt.boardB.Stop()

	if _, err := c.recorder.Record(rt.sess, winnerID); err != nil {
		log.Printf("[Versus] Record error for session %s: %v\n", rt.sess.ID, err)
	}
	c.sessions.Remove(rt.sess.ID)

	c.mu.Lock()
	delete(c.runtimes, rt.sess.ID)
	c.mu.Unlock()

	if c.onEnded != nil {
		c.onEnded(rt.sess.ID, winnerID)
	}

	if winnerID != "" {
		log.Printf("[Versus] Session %s won by %s\n", rt.sess.ID, winnerID)
	} else {
		log.Printf("[Versus] Session %s ended in a tie\n", rt.sess.ID)
	}
}
