package sessions

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"blockduel/internal/game"
)

// State is a session's position in its play-type's state machine.
type State string

const (
	// Turn-based: the joiner plays first, then the challenger.
	StateAwaitingFirstTurn  = State("awaiting_first_turn")
	StateAwaitingSecondTurn = State("awaiting_second_turn")

	// Simultaneous: the joining device must prove the challenger is present
	// before both boards start.
	StateAwaitingConfirm = State("awaiting_confirm")
	StateActive          = State("active")

	StateCompleted = State("completed")
)

// Slot is one seat in a session. SkillLevel is a snapshot taken when the
// player entered matchmaking.
type Slot struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	SkillLevel  int    `json:"skillLevel"`
}

// Session is one matched game between two players. PlayerA is the original
// challenger, PlayerB the joiner. Only the coordinator driving the session
// mutates it, through the locked helpers below, and that coordinator
// serializes its own writes; anyone else reads via Snapshot.
type Session struct {
	ID           string
	Mode         game.Mode
	PlayType     game.PlayType
	PlayerA      Slot
	PlayerB      Slot
	State        State
	CurrentMover string // turn-based only: player id whose move is due
	StatsA       game.Stats
	StatsB       game.Stats
	OverA        bool
	OverB        bool
	CreatedAt    time.Time
	StartedAt    time.Time // simultaneous only: when play went Active

	mu sync.Mutex
}

// Snapshot is a consistent copy of a session's observable state, safe to
// hold while play continues.
type Snapshot struct {
	ID           string
	Mode         game.Mode
	PlayType     game.PlayType
	PlayerA      Slot
	PlayerB      Slot
	State        State
	CurrentMover string
	StatsA       game.Stats
	StatsB       game.Stats
	OverA        bool
	OverB        bool
	CreatedAt    time.Time
	StartedAt    time.Time
}

// New creates a session in the initial state for its play type.
func New(mode game.Mode, playType game.PlayType, challenger, joiner Slot) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		Mode:      mode,
		PlayType:  playType,
		PlayerA:   challenger,
		PlayerB:   joiner,
		CreatedAt: time.Now(),
	}
	if playType == game.PlayTurnBased {
		s.State = StateAwaitingFirstTurn
		s.CurrentMover = joiner.ID
	} else {
		s.State = StateAwaitingConfirm
	}
	return s
}

// Has reports whether the player is party to this session.
func (s *Session) Has(playerID string) bool {
	return s.PlayerA.ID == playerID || s.PlayerB.ID == playerID
}

// Opponent returns the other seat's slot.
func (s *Session) Opponent(playerID string) (Slot, bool) {
	switch playerID {
	case s.PlayerA.ID:
		return s.PlayerB, true
	case s.PlayerB.ID:
		return s.PlayerA, true
	}
	return Slot{}, false
}

// Snapshot copies the session under its lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:           s.ID,
		Mode:         s.Mode,
		PlayType:     s.PlayType,
		PlayerA:      s.PlayerA,
		PlayerB:      s.PlayerB,
		State:        s.State,
		CurrentMover: s.CurrentMover,
		StatsA:       s.StatsA,
		StatsB:       s.StatsB,
		OverA:        s.OverA,
		OverB:        s.OverB,
		CreatedAt:    s.CreatedAt,
		StartedAt:    s.StartedAt,
	}
}

// Activate marks simultaneous play started and returns the start time.
func (s *Session) Activate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = StateActive
	s.StartedAt = time.Now()
	return s.StartedAt
}

// SetTurn advances the turn-based state machine and hands the move to mover.
func (s *Session) SetTurn(state State, mover string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	s.CurrentMover = mover
}

// Complete marks the session finished. No move is due afterwards.
func (s *Session) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = StateCompleted
	s.CurrentMover = ""
}

// RecordStats stores the latest snapshot for the given player.
func (s *Session) RecordStats(playerID string, st game.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if playerID == s.PlayerA.ID {
		s.StatsA = st
	} else if playerID == s.PlayerB.ID {
		s.StatsB = st
	}
}

// MarkOver flags the given player's board as finished.
func (s *Session) MarkOver(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if playerID == s.PlayerA.ID {
		s.OverA = true
	} else if playerID == s.PlayerB.ID {
		s.OverB = true
	}
}

// StatsFor returns the latest snapshot for the given player.
func (s *Session) StatsFor(playerID string) game.Stats {
	if playerID == s.PlayerA.ID {
		return s.StatsA
	}
	return s.StatsB
}

// SideOf maps a player id to its evaluator side.
func (s *Session) SideOf(playerID string) game.Side {
	switch playerID {
	case s.PlayerA.ID:
		return game.SideA
	case s.PlayerB.ID:
		return game.SideB
	}
	return game.SideNone
}

// PlayerOn maps an evaluator side back to the seated player's id. Empty for
// SideNone.
func (s *Session) PlayerOn(side game.Side) string {
	switch side {
	case game.SideA:
		return s.PlayerA.ID
	case game.SideB:
		return s.PlayerB.ID
	}
	return ""
}
