// Package board defines the engine's view of one falling-block simulation.
// The simulation itself (grid, pieces, gravity, scoring) lives outside this
// module; the engine only starts it, stops it, and consumes its events.
package board

import "blockduel/internal/game"

// Observer receives one board's events. The coordinator owning the session
// is the single consumer; an Observer must never be shared across sessions.
type Observer interface {
	// OnProgress is called on every state change of the board.
	OnProgress(stats game.Stats)
	// OnGameOver is called once, with the board's final stats.
	OnGameOver(final game.Stats)
}

// Simulation is one player's board. Everything beyond start/stop flows
// one-way through the attached Observer.
type Simulation interface {
	Attach(obs Observer)
	Start()
	Stop()
}

// Provider hands out the Simulation bound to one player's board within a
// session.
type Provider interface {
	Board(sessionID, playerID string) (Simulation, error)
}
