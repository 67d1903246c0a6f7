package game

import "time"

const (
	// SprintLineGoal is the line count that ends a sprint match.
	SprintLineGoal = 40
	// UltraDuration is the fixed length of an ultra match.
	UltraDuration = 120 * time.Second
)

// Side names one of the two seats in a session.
type Side int

const (
	SideNone Side = iota
	SideA
	SideB
)

// Outcome is the evaluator's verdict. Decided is false while the match is
// still open; when Decided is true, either Tie is set or Winner names a side.
type Outcome struct {
	Decided bool
	Tie     bool
	Winner  Side
}

func none() Outcome         { return Outcome{} }
func winner(s Side) Outcome { return Outcome{Decided: true, Winner: s} }
func tie() Outcome          { return Outcome{Decided: true, Tie: true} }

// Evaluate maps the latest known state of both boards to a verdict. It is
// pure: identical inputs always yield the identical outcome, and callers may
// invoke it after every event from either board.
//
//   - sprint: first board to SprintLineGoal lines wins; if both cross in the
//     same pass, the higher score wins, equal scores tie.
//   - ultra: nothing decides before UltraDuration has elapsed; then the
//     higher score wins, equal scores tie.
//   - survival: a topped-out board loses to a live one; if both top out in
//     the same pass, the higher score wins, equal scores tie.
func Evaluate(mode Mode, a, b Stats, elapsed time.Duration, overA, overB bool) Outcome {
	switch mode {
	case ModeSprint:
		crossedA := a.Lines >= SprintLineGoal
		crossedB := b.Lines >= SprintLineGoal
		switch {
		case crossedA && crossedB:
			return byScore(a, b)
		case crossedA:
			return winner(SideA)
		case crossedB:
			return winner(SideB)
		}
		return none()

	case ModeUltra:
		if elapsed < UltraDuration {
			return none()
		}
		return byScore(a, b)

	case ModeSurvival:
		switch {
		case overA && overB:
			return byScore(a, b)
		case overA:
			return winner(SideB)
		case overB:
			return winner(SideA)
		}
		return none()
	}
	return none()
}

func byScore(a, b Stats) Outcome {
	switch {
	case a.Score > b.Score:
		return winner(SideA)
	case b.Score > a.Score:
		return winner(SideB)
	}
	return tie()
}
