package game

import "fmt"

// Mode selects the win rule a match is played under.
type Mode string

const (
	ModeSprint   = Mode("sprint")
	ModeUltra    = Mode("ultra")
	ModeSurvival = Mode("survival")
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSprint, ModeUltra, ModeSurvival:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// PlayType selects the play discipline: both boards live at once, or one
// player at a time against a target to beat.
type PlayType string

const (
	PlaySimultaneous = PlayType("simultaneous")
	PlayTurnBased    = PlayType("turn_based")
)

func ParsePlayType(s string) (PlayType, error) {
	switch PlayType(s) {
	case PlaySimultaneous, PlayTurnBased:
		return PlayType(s), nil
	}
	return "", fmt.Errorf("unknown play type %q", s)
}

// Stats is the latest known snapshot of one player's board.
type Stats struct {
	Score int `json:"score"`
	Level int `json:"level"`
	Lines int `json:"lines"`
}
